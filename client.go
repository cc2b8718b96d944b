package tos

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/ares89/ve-tos-go-sdk/internal/config"
	"github.com/ares89/ve-tos-go-sdk/internal/filebackend"
	internalhttp "github.com/ares89/ve-tos-go-sdk/internal/http"
	"github.com/ares89/ve-tos-go-sdk/internal/logging"
	"github.com/ares89/ve-tos-go-sdk/internal/plan"
	"github.com/ares89/ve-tos-go-sdk/internal/ratelimit"
	"github.com/ares89/ve-tos-go-sdk/internal/requester"
)

// Client is the package's entry point: a configured connection to one
// TOS-compatible endpoint, constructed via NewClient and driving
// DownloadFile / UploadFile / CompleteMultipartUpload.
type Client struct {
	requester   requester.Requester
	fileBackend filebackend.Backend
	logger      *logging.Logger
	rateLimiter *ratelimit.Limiter

	defaultPartSize int64
	defaultTaskNum  int
}

// Option configures a Client built by NewClient.
type Option func(*clientOptions)

type clientOptions struct {
	cfg         *config.Config
	httpClient  *nethttp.Client
	logger      *logging.Logger
	rateLimiter *ratelimit.Limiter
	requester   requester.Requester

	profilePath string
	profileName string
}

// WithEndpoint sets the TOS-compatible endpoint host (scheme optional;
// https is assumed).
func WithEndpoint(endpoint string) Option {
	return func(o *clientOptions) { o.cfg.Endpoint = endpoint }
}

// WithRegion sets the signing region.
func WithRegion(region string) Option {
	return func(o *clientOptions) { o.cfg.Region = region }
}

// WithCredentials sets a static access key / secret key pair, optionally
// with a session token.
func WithCredentials(accessKey, secretKey, securityToken string) Option {
	return func(o *clientOptions) {
		o.cfg.AccessKey = accessKey
		o.cfg.SecretKey = secretKey
		o.cfg.SecurityToken = securityToken
	}
}

// WithDefaultPartSize sets the part size used when a call does not specify
// one (default 20 MiB).
func WithDefaultPartSize(size int64) Option {
	return func(o *clientOptions) { o.cfg.DefaultPartSize = size }
}

// WithDefaultTaskNum sets the worker concurrency used when a call does not
// specify one (default 1).
func WithDefaultTaskNum(n int) Option {
	return func(o *clientOptions) { o.cfg.DefaultTaskCount = n }
}

// WithLogger overrides the zerolog-backed logger used for warning/
// diagnostic paths (corrupt/invalidated checkpoints, best-effort checkpoint
// removal failures). Defaults to a stdout console logger
// (logging.NewLogger).
func WithLogger(l *logging.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithRateLimiter sets the default client-side token-bucket rate limiter
// applied to part requests when a call does not supply its own.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(o *clientOptions) { o.rateLimiter = l }
}

// WithHTTPClient overrides the HTTP client used to reach the endpoint.
// Defaults to internal/http.NewTransferClient().
func WithHTTPClient(hc *nethttp.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithRequester overrides the Requester implementation entirely, bypassing
// endpoint/region/credential options — primarily for tests.
func WithRequester(r requester.Requester) Option {
	return func(o *clientOptions) { o.requester = r }
}

// WithProfile names an on-disk credentials profile (internal/config.LoadProfile)
// to fall back on for whichever of endpoint/region/access key/secret key/
// security token the environment and other options left unset. path defaults
// to internal/config.DefaultProfilePath (~/.tos/credentials) when empty;
// profile defaults to "default" when empty.
func WithProfile(path, profile string) Option {
	return func(o *clientOptions) {
		o.profilePath = path
		o.profileName = profile
	}
}

// NewClient builds a Client from environment defaults (internal/config.FromEnv),
// overridden by the supplied options, then falls back to an on-disk
// credentials profile (internal/config.LoadProfile) for any field still
// unset — the same env-then-profile precedence the AWS SDK's shared
// credentials file uses.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	o := &clientOptions{cfg: config.FromEnv()}
	for _, opt := range opts {
		opt(o)
	}

	cfg, err := config.LoadProfile(o.profilePath, o.profileName, o.cfg)
	if err != nil {
		return nil, fmt.Errorf("tos: new client: %w", err)
	}
	o.cfg = cfg

	logger := o.logger
	if logger == nil {
		logger = logging.NewLogger()
	}

	req := o.requester
	if req == nil {
		httpClient := o.httpClient
		if httpClient == nil {
			httpClient = internalhttp.NewTransferClient()
		}
		s3req, err := requester.NewS3Requester(ctx, o.cfg, httpClient)
		if err != nil {
			return nil, fmt.Errorf("tos: new client: %w", err)
		}
		req = s3req
	}

	partSize := o.cfg.DefaultPartSize
	if partSize <= 0 {
		partSize = plan.DefaultPartSize
	}
	taskNum := o.cfg.DefaultTaskCount
	if taskNum <= 0 {
		taskNum = 1
	}

	return &Client{
		requester:       req,
		fileBackend:     filebackend.New(),
		logger:          logger,
		rateLimiter:     o.rateLimiter,
		defaultPartSize: partSize,
		defaultTaskNum:  taskNum,
	}, nil
}
