package tos

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/ares89/ve-tos-go-sdk/internal/engine"
)

// DownloadFileInput is the language-neutral DownloadInput of the wire
// contract translated to Go fields.
type DownloadFileInput struct {
	Bucket    string
	Key       string
	VersionID string

	// FilePath is the destination; if it names an existing directory (or
	// ends in a path separator) the object key is appended.
	FilePath string
	// TempFilePath defaults to FilePath + ".temp".
	TempFilePath string

	// PartSize defaults to 20 MiB; TaskNum defaults to 1.
	PartSize int64
	TaskNum  int

	EnableCRC bool

	// CheckpointPath is either a file path (resumed/created there) or a
	// directory (default filename computed lazily); empty disables
	// checkpointing. CheckpointIsDir forces directory-placeholder mode
	// for a path that does not yet exist on disk.
	CheckpointPath     string
	CheckpointIsDir    bool
	InMemoryCheckpoint *Checkpoint

	IfMatch           string
	IfNoneMatch       string
	IfModifiedSince   time.Time
	IfUnmodifiedSince time.Time

	SSECAlgorithm string
	SSECKeyMD5    string
	SSECKey       string

	// TrafficLimit, when > 0, sets the server-side x-tos-traffic-limit
	// header (bits/sec). RateLimiter, if non-nil, overrides the Client's
	// default client-side token bucket for this call only.
	TrafficLimit int64
	RateLimiter  *RateLimiter

	// CustomRenameFileAfterDownloadCompleted overrides the temp-to-
	// destination rename performed at FINALIZE.
	CustomRenameFileAfterDownloadCompleted func(tempPath, destPath string) error

	Progress     ProgressFunc
	DataTransfer DataTransferFunc
	EventChange  EventFunc
}

// DownloadFileOutput reports the finished transfer's identity and digest.
type DownloadFileOutput struct {
	Bucket, Key, VersionID string
	FilePath               string
	ObjectSize             int64
	HashCrc64Ecma          string
}

// DownloadFile runs the HEAD -> LOAD_CP -> VALIDATE_CP -> PREPARE_FILES ->
// RUN -> VERIFY -> FINALIZE state machine against ctx, resuming from
// in.CheckpointPath/in.InMemoryCheckpoint when a valid one exists.
//
// Cancelling ctx stops the transfer at the next cancellation checkpoint
// (before claiming a part, mid-stream on a chunk, or after a part
// completes) and returns ErrCancelled; the checkpoint and temp file are
// left intact for a later resume.
func (c *Client) DownloadFile(ctx context.Context, in *DownloadFileInput) (*DownloadFileOutput, error) {
	rl := c.rateLimiter
	if in.RateLimiter != nil {
		rl = in.RateLimiter
	}

	filePath := in.FilePath
	if fi, err := os.Stat(filePath); (err == nil && fi.IsDir()) ||
		(filePath != "" && os.IsPathSeparator(filePath[len(filePath)-1])) {
		filePath = filepath.Join(filePath, in.Key)
	}
	checkpointIsDir := in.CheckpointIsDir
	if fi, err := os.Stat(in.CheckpointPath); err == nil && fi.IsDir() {
		checkpointIsDir = true
	}

	res, err := engine.Download(ctx, &engine.DownloadParams{
		Requester:   c.requester,
		FileBackend: c.fileBackend,
		Logger:      c.logger,
		RateLimiter: rl,

		Bucket:    in.Bucket,
		Key:       in.Key,
		VersionID: in.VersionID,

		FilePath:     filePath,
		TempFilePath: in.TempFilePath,
		PartSize:     orDefault(in.PartSize, c.defaultPartSize),
		TaskNum:      orDefaultInt(in.TaskNum, c.defaultTaskNum),
		EnableCRC:    in.EnableCRC,

		CheckpointPath:     in.CheckpointPath,
		CheckpointIsDir:    checkpointIsDir,
		InMemoryCheckpoint: in.InMemoryCheckpoint,
		TrafficLimit:       in.TrafficLimit,

		IfMatch:           in.IfMatch,
		IfNoneMatch:       in.IfNoneMatch,
		IfModifiedSince:   in.IfModifiedSince,
		IfUnmodifiedSince: in.IfUnmodifiedSince,

		SSECAlgorithm: in.SSECAlgorithm,
		SSECKeyMD5:    in.SSECKeyMD5,
		SSECKey:       in.SSECKey,

		RenameFile: in.CustomRenameFileAfterDownloadCompleted,

		Observers: engine.Observers{
			Progress:     in.Progress,
			DataTransfer: in.DataTransfer,
			Event:        in.EventChange,
		},
	})
	if err != nil {
		return nil, err
	}

	return &DownloadFileOutput{
		Bucket:        res.Bucket,
		Key:           res.Key,
		VersionID:     res.VersionID,
		FilePath:      res.FilePath,
		ObjectSize:    res.ObjectSize,
		HashCrc64Ecma: res.HashCrc64Ecma,
	}, nil
}

func orDefault(v, def int64) int64 {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
