// Package config resolves client configuration (endpoint, region,
// credentials, and transfer defaults) from environment variables and an
// optional on-disk credentials profile (an INI file with env overrides).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// Config carries everything a Requester needs to reach a TOS-compatible
// endpoint, plus the transfer engine's tunable defaults.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	// SecurityToken is the STS session token, when the credentials are
	// temporary.
	SecurityToken string

	// DefaultPartSize is used when a caller does not specify one explicitly.
	DefaultPartSize int64
	// DefaultTaskCount is the default worker pool size for a transfer.
	DefaultTaskCount int
}

// Validation errors.
var (
	ErrMissingEndpoint  = errors.New("tos: endpoint is required (set TOS_ENDPOINT or pass WithEndpoint)")
	ErrMissingRegion    = errors.New("tos: region is required (set TOS_REGION or pass WithRegion)")
	ErrMissingAccessKey = errors.New("tos: access key is required (set TOS_ACCESS_KEY or pass WithCredentials)")
	ErrMissingSecretKey = errors.New("tos: secret key is required (set TOS_SECRET_KEY or pass WithCredentials)")
)

const (
	defaultPartSize  = 20 * 1024 * 1024
	defaultTaskCount = 1
)

// FromEnv builds a Config from the TOS_* environment variables, applying the
// engine's defaults for part size and task count. It never returns an error;
// missing credentials surface later from Validate.
func FromEnv() *Config {
	return &Config{
		Endpoint:         os.Getenv("TOS_ENDPOINT"),
		Region:           os.Getenv("TOS_REGION"),
		AccessKey:        os.Getenv("TOS_ACCESS_KEY"),
		SecretKey:        os.Getenv("TOS_SECRET_KEY"),
		SecurityToken:    os.Getenv("TOS_SECURITY_TOKEN"),
		DefaultPartSize:  defaultPartSize,
		DefaultTaskCount: defaultTaskCount,
	}
}

// Validate checks that enough of Config is populated to construct a client.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return ErrMissingEndpoint
	}
	if strings.TrimSpace(c.Region) == "" {
		return ErrMissingRegion
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return ErrMissingAccessKey
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return ErrMissingSecretKey
	}
	return nil
}

// DefaultProfilePath returns ~/.tos/credentials, the shared-profile file
// LoadProfile reads by default — one INI section per named profile, mirroring
// the AWS shared-credentials-file convention.
//
//	[default]
//	endpoint = tos-s3-cn-beijing.volces.com
//	region   = cn-beijing
//	access_key = AKxxxx
//	secret_key = ...
func DefaultProfilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("tos: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".tos", "credentials"), nil
}

// LoadProfile reads profile section from the INI file at path (DefaultProfilePath
// if path is empty), overlaying it onto base. Values already set on base take
// precedence, so callers typically do config.FromEnv() then LoadProfile to
// fill in only what the environment left blank. A missing file is not an
// error: base is returned unchanged.
func LoadProfile(path, profile string, base *Config) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultProfilePath()
		if err != nil {
			return base, nil
		}
	}
	if profile == "" {
		profile = "default"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("tos: load credentials profile %s: %w", path, err)
	}
	section := iniFile.Section(profile)

	cfg := *base
	if cfg.Endpoint == "" {
		cfg.Endpoint = section.Key("endpoint").String()
	}
	if cfg.Region == "" {
		cfg.Region = section.Key("region").String()
	}
	if cfg.AccessKey == "" {
		cfg.AccessKey = section.Key("access_key").String()
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = section.Key("secret_key").String()
	}
	if cfg.SecurityToken == "" {
		cfg.SecurityToken = section.Key("security_token").String()
	}
	return &cfg, nil
}
