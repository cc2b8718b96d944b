// Package requester defines the small request interface the transfer engine
// drives (head/get/create-multipart/upload-part/complete/abort) and a
// concrete implementation over a TOS-compatible S3 API.
package requester

import (
	"context"
	"io"
	"time"
)

// ObjectMeta is the subset of HeadObject/GetObject response metadata the
// engine needs to validate and (re)build a checkpoint.
type ObjectMeta struct {
	ETag          string
	HashCrc64Ecma string
	ObjectSize    int64
	LastModified  time.Time
	VersionID     string
}

// HeadObjectInput carries the preconditions a caller may attach to a
// download, mirroring the real SDK's If-Match/If-Modified-Since family.
type HeadObjectInput struct {
	Bucket    string
	Key       string
	VersionID string

	IfMatch           string
	IfModifiedSince   time.Time
	IfNoneMatch       string
	IfUnmodifiedSince time.Time

	SSECAlgorithm string
	SSECKeyMD5    string
	SSECKey       string
}

// GetObjectInput requests a single byte range [RangeStart, RangeEnd] (both
// inclusive) of an object.
type GetObjectInput struct {
	Bucket     string
	Key        string
	VersionID  string
	RangeStart int64
	RangeEnd   int64

	// IfMatch is sent as a precondition so the server rejects the range
	// request if the object has been mutated since the caller's HEAD.
	IfMatch string

	// TrafficLimit, when > 0, is passed through as the server-side
	// x-tos-traffic-limit header (bits/sec); it is independent of the
	// client-side rateLimiter token bucket.
	TrafficLimit int64

	SSECAlgorithm string
	SSECKeyMD5    string
	SSECKey       string
}

// GetObjectOutput streams the requested range; callers must Close Body.
type GetObjectOutput struct {
	Body io.ReadCloser
	Meta ObjectMeta
}

// CreateMultipartUploadInput starts an upload session.
type CreateMultipartUploadInput struct {
	Bucket string
	Key    string

	SSECAlgorithm string
	SSECKeyMD5    string
	SSECKey       string
}

// CreateMultipartUploadOutput carries the upload id the caller persists
// into its checkpoint before uploading any part.
type CreateMultipartUploadOutput struct {
	UploadID string
}

// UploadPartInput uploads exactly one part of a multipart upload. Body must
// be exactly ContentLength bytes — the engine supplies an io.Reader over the
// relevant byte range of the source file.
type UploadPartInput struct {
	Bucket        string
	Key           string
	UploadID      string
	PartNumber    int
	Body          io.Reader
	ContentLength int64

	// TrafficLimit, when > 0, is passed through as the server-side
	// x-tos-traffic-limit header (bits/sec).
	TrafficLimit int64

	SSECAlgorithm string
	SSECKeyMD5    string
	SSECKey       string
}

// UploadPartOutput carries the part's ETag, recorded into the checkpoint.
type UploadPartOutput struct {
	ETag string
}

// CompletedPart identifies one previously-uploaded part by number and ETag,
// the minimal information CompleteMultipartUpload needs to assemble the
// object server-side.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// CompleteMultipartUploadInput finalizes an upload session. Exactly one of
// CompleteAll or a non-empty Parts must be set; the caller (tos package) is
// responsible for rejecting the conflicting combination before this is
// ever constructed.
type CompleteMultipartUploadInput struct {
	Bucket          string
	Key             string
	UploadID        string
	Parts           []CompletedPart
	CompleteAll     bool
	ForbidOverwrite bool
}

// CompleteMultipartUploadOutput carries the finished object's identity.
type CompleteMultipartUploadOutput struct {
	ETag          string
	HashCrc64Ecma string
	Location      string
}

// AbortMultipartUploadInput aborts an in-progress upload session, releasing
// any parts already stored server-side.
type AbortMultipartUploadInput struct {
	Bucket   string
	Key      string
	UploadID string
}

// Requester is the abstract surface the engine drives; S3Requester is the
// default implementation, but tests and alternative backends (e.g. a TOS
// endpoint that diverges from the S3 wire protocol in some corner) can
// supply their own.
type Requester interface {
	HeadObject(ctx context.Context, in *HeadObjectInput) (*ObjectMeta, error)
	GetObject(ctx context.Context, in *GetObjectInput) (*GetObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *CreateMultipartUploadInput) (*CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *UploadPartInput) (*UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *CompleteMultipartUploadInput) (*CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *AbortMultipartUploadInput) error
}
