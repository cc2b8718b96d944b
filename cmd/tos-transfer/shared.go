package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	tos "github.com/ares89/ve-tos-go-sdk"
	"github.com/ares89/ve-tos-go-sdk/internal/logging"
)

type commonFlags struct {
	endpoint    *string
	region      *string
	accessKey   string
	secretKey   string
	partSize    int64
	taskNum     int
	checksum    bool
	profilePath string
	profile     string
}

func addCredentialFlags(cmd *cobra.Command, f *commonFlags) {
	cmd.Flags().StringVar(&f.accessKey, "access-key", "", "access key (default: $TOS_ACCESS_KEY)")
	cmd.Flags().StringVar(&f.secretKey, "secret-key", "", "secret key (default: $TOS_SECRET_KEY)")
	cmd.Flags().Int64Var(&f.partSize, "part-size", 0, "part size in bytes (default 20 MiB)")
	cmd.Flags().IntVar(&f.taskNum, "task-num", 0, "concurrent part workers (default 1)")
	cmd.Flags().BoolVar(&f.checksum, "checksum", true, "verify combined CRC64 against the server digest")
	cmd.Flags().StringVar(&f.profilePath, "profile-path", "", "credentials profile file (default: ~/.tos/credentials)")
	cmd.Flags().StringVar(&f.profile, "profile", "", "credentials profile section name (default: \"default\")")
}

func buildClient(ctx context.Context, logger *logging.Logger, endpoint, region string, f commonFlags) (*tos.Client, error) {
	opts := []tos.Option{
		tos.WithEndpoint(endpoint),
		tos.WithRegion(region),
		tos.WithLogger(logger),
		tos.WithProfile(f.profilePath, f.profile),
	}
	if f.accessKey != "" || f.secretKey != "" {
		opts = append(opts, tos.WithCredentials(f.accessKey, f.secretKey, ""))
	}
	if f.partSize > 0 {
		opts = append(opts, tos.WithDefaultPartSize(f.partSize))
	}
	if f.taskNum > 0 {
		opts = append(opts, tos.WithDefaultTaskNum(f.taskNum))
	}
	client, err := tos.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("build client: %w", err)
	}
	return client, nil
}

func logEvent(logger *logging.Logger, e tos.Event) {
	if e.Err != nil {
		logger.Warn().Str("event", string(e.Type)).Int("part", e.PartNumber).Err(e.Err).Msg("transfer event")
		return
	}
	logger.Debug().Str("event", string(e.Type)).Int("part", e.PartNumber).Msg("transfer event")
}
