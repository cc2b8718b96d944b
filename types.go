// Package tos is a Go client for TOS (Volcengine Object Storage) and other
// S3-protocol-compatible object stores, centered on a resumable multipart
// upload / ranged parallel download engine with checkpointing, bounded
// concurrency, progress reporting, and end-to-end CRC64 integrity
// verification.
package tos

import (
	"time"

	"github.com/ares89/ve-tos-go-sdk/internal/checkpoint"
	"github.com/ares89/ve-tos-go-sdk/internal/engine"
	"github.com/ares89/ve-tos-go-sdk/internal/ratelimit"
)

// RateLimiter is a client-side token bucket a caller may pass per-call (or
// install as the Client default via WithRateLimiter) to cap part-request
// throughput independent of the server-side TrafficLimit header.
type RateLimiter = ratelimit.Limiter

// NewRateLimiter builds a RateLimiter sustaining tokensPerSecond requests
// with burstSize of headroom.
func NewRateLimiter(tokensPerSecond, burstSize float64) *RateLimiter {
	return ratelimit.New(tokensPerSecond, burstSize)
}

// ObjectIdentity is an immutable handle to a (possibly versioned) object.
type ObjectIdentity struct {
	Bucket    string
	Key       string
	VersionID string
}

// ObjectInfo is a snapshot of an object's identity-relevant metadata,
// captured at HEAD (download) or CreateMultipartUpload (upload) and used
// to validate whether a checkpoint may still be resumed against it.
type ObjectInfo struct {
	ETag          string
	SizeBytes     int64
	LastModified  time.Time
	HashCrc64Ecma string
}

// PartTask is a contiguous byte range of the object processed as one unit.
type PartTask struct {
	PartNumber int
	Offset     int64
	Length     int64
}

// PartRecord is the runtime/public view of one part's completion state,
// mirroring the on-disk parts_info entry (internal/checkpoint.PartInfo).
type PartRecord struct {
	PartNumber    int
	RangeStart    int64
	RangeEnd      int64
	HashCrc64Ecma string
	Completed     bool
	ETag          string
	UploadedAt    time.Time
}

// Checkpoint is the persisted (or in-memory) resumption record for a
// transfer in progress. It is an alias of internal/checkpoint.Document, whose
// json struct tags give the normative field names shared by both download
// and upload checkpoints; UploadID is empty for downloads.
type Checkpoint = checkpoint.Document

// DataTransferType enumerates the dataTransferStatusChange observer's
// event kinds.
type DataTransferType = engine.DataTransferType

const (
	DataTransferStarted = engine.DataTransferStarted
	DataTransferRw       = engine.DataTransferRw
	DataTransferSucceed  = engine.DataTransferSucceed
	DataTransferFailed   = engine.DataTransferFailed
)

// DataTransferStatus is the payload of a dataTransferStatusChange callback.
type DataTransferStatus = engine.DataTransferStatus

// EventType enumerates the downloadEventChange / uploadEventChange
// observer's structural event kinds (spec §4.4/§4.6/§7).
type EventType = engine.EventType

const (
	EventCreateTempFileSucceed = engine.EventCreateTempFileSucceed
	EventCreateTempFileFailed  = engine.EventCreateTempFileFailed
	EventDownloadPartSucceed   = engine.EventDownloadPartSucceed
	EventDownloadPartFailed    = engine.EventDownloadPartFailed
	EventDownloadPartAborted   = engine.EventDownloadPartAborted
	EventRenameTempFileSucceed = engine.EventRenameTempFileSucceed
	EventRenameTempFileFailed  = engine.EventRenameTempFileFailed

	EventCreateMultipartUploadSucceed = engine.EventCreateMultipartUploadSucceed
	EventCreateMultipartUploadFailed  = engine.EventCreateMultipartUploadFailed
	EventUploadPartSucceed            = engine.EventUploadPartSucceed
	EventUploadPartFailed             = engine.EventUploadPartFailed
	EventUploadPartAborted            = engine.EventUploadPartAborted
	EventCompleteMultipartSucceed     = engine.EventCompleteMultipartSucceed
	EventCompleteMultipartFailed      = engine.EventCompleteMultipartFailed
)

// Event is the payload of a downloadEventChange / uploadEventChange
// callback.
type Event = engine.Event

// ProgressFunc mirrors spec §6's progress(percent, checkpoint) callback.
type ProgressFunc = engine.ProgressFunc

// DataTransferFunc mirrors dataTransferStatusChange.
type DataTransferFunc = engine.DataTransferFunc

// EventFunc mirrors downloadEventChange / uploadEventChange.
type EventFunc = engine.EventFunc
