package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromEnvAppliesDefaults(t *testing.T) {
	t.Setenv("TOS_ENDPOINT", "tos-s3-cn-beijing.volces.com")
	t.Setenv("TOS_REGION", "cn-beijing")
	t.Setenv("TOS_ACCESS_KEY", "ak")
	t.Setenv("TOS_SECRET_KEY", "sk")

	cfg := FromEnv()
	if cfg.DefaultPartSize != defaultPartSize {
		t.Fatalf("DefaultPartSize = %d, want %d", cfg.DefaultPartSize, defaultPartSize)
	}
	if cfg.DefaultTaskCount != defaultTaskCount {
		t.Fatalf("DefaultTaskCount = %d, want %d", cfg.DefaultTaskCount, defaultTaskCount)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateReportsFirstMissingField(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err != ErrMissingEndpoint {
		t.Fatalf("got %v, want ErrMissingEndpoint", err)
	}
	cfg.Endpoint = "e"
	if err := cfg.Validate(); err != ErrMissingRegion {
		t.Fatalf("got %v, want ErrMissingRegion", err)
	}
}

func TestLoadProfileFillsOnlyBlankFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials")
	contents := "[default]\nendpoint = profile-endpoint\nregion = profile-region\naccess_key = profile-ak\nsecret_key = profile-sk\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	base := &Config{Endpoint: "env-endpoint"}
	cfg, err := LoadProfile(path, "", base)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Endpoint != "env-endpoint" {
		t.Fatalf("Endpoint was overwritten: got %s", cfg.Endpoint)
	}
	if cfg.Region != "profile-region" || cfg.AccessKey != "profile-ak" || cfg.SecretKey != "profile-sk" {
		t.Fatalf("profile fields not applied: %+v", cfg)
	}
}

func TestLoadProfileMissingFileReturnsBaseUnchanged(t *testing.T) {
	base := &Config{Endpoint: "e"}
	cfg, err := LoadProfile(filepath.Join(t.TempDir(), "absent"), "", base)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != base {
		t.Fatalf("expected base returned unchanged for a missing profile file")
	}
}
