package tos

import (
	"context"
	"os"

	"github.com/ares89/ve-tos-go-sdk/internal/engine"
)

// UploadFileInput is the language-neutral UploadInput of the wire contract
// translated to Go fields.
type UploadFileInput struct {
	Bucket string
	Key    string

	// SourcePath is the local file being uploaded.
	SourcePath string

	// PartSize defaults to 20 MiB; TaskNum defaults to 1.
	PartSize int64
	TaskNum  int

	EnableCRC bool

	CheckpointPath     string
	CheckpointIsDir    bool
	InMemoryCheckpoint *Checkpoint

	SSECAlgorithm string
	SSECKeyMD5    string
	SSECKey       string

	TrafficLimit int64
	RateLimiter  *RateLimiter

	Progress     ProgressFunc
	DataTransfer DataTransferFunc
	EventChange  EventFunc
}

// UploadFileOutput reports the finished upload's identity and digest.
type UploadFileOutput struct {
	Bucket, Key   string
	UploadID      string
	ETag          string
	Location      string
	HashCrc64Ecma string
}

// UploadFile runs LOAD_CP -> VALIDATE_CP -> CreateMultipartUpload (only when
// no valid checkpoint was loaded) -> PREPARE -> RUN -> COMPLETE -> VERIFY
// against ctx, the upload-direction
// symmetric counterpart of DownloadFile (CreateMultipartUpload substitutes
// for HEAD, UploadPart for ranged GET, CompleteMultipartUpload for rename).
func (c *Client) UploadFile(ctx context.Context, in *UploadFileInput) (*UploadFileOutput, error) {
	rl := c.rateLimiter
	if in.RateLimiter != nil {
		rl = in.RateLimiter
	}

	checkpointIsDir := in.CheckpointIsDir
	if fi, err := os.Stat(in.CheckpointPath); err == nil && fi.IsDir() {
		checkpointIsDir = true
	}

	res, err := engine.Upload(ctx, &engine.UploadParams{
		Requester:   c.requester,
		FileBackend: c.fileBackend,
		Logger:      c.logger,
		RateLimiter: rl,

		Bucket:       in.Bucket,
		Key:          in.Key,
		SourcePath:   in.SourcePath,
		PartSize:     orDefault(in.PartSize, c.defaultPartSize),
		TaskNum:      orDefaultInt(in.TaskNum, c.defaultTaskNum),
		EnableCRC:    in.EnableCRC,
		TrafficLimit: in.TrafficLimit,

		CheckpointPath:     in.CheckpointPath,
		CheckpointIsDir:    checkpointIsDir,
		InMemoryCheckpoint: in.InMemoryCheckpoint,

		SSECAlgorithm: in.SSECAlgorithm,
		SSECKeyMD5:    in.SSECKeyMD5,
		SSECKey:       in.SSECKey,

		Observers: engine.Observers{
			Progress:     in.Progress,
			DataTransfer: in.DataTransfer,
			Event:        in.EventChange,
		},
	})
	if err != nil {
		return nil, err
	}

	return &UploadFileOutput{
		Bucket:        res.Bucket,
		Key:           res.Key,
		UploadID:      res.UploadID,
		ETag:          res.ETag,
		Location:      res.Location,
		HashCrc64Ecma: res.HashCrc64Ecma,
	}, nil
}
