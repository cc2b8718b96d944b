package tos

import "github.com/ares89/ve-tos-go-sdk/internal/engine"

// The error taxonomy (spec §7) is implemented once in internal/engine,
// since the engine is what constructs and classifies these errors; the
// public package re-exports the types and sentinel so callers never need
// to import internal/engine themselves, the way the real TOS SDK's
// newTosClientError family surfaces a small set of typed client errors.
type (
	// ClientUsageError reports an invalid caller input (e.g. passing both
	// CompleteAll and Parts to CompleteMultipartUpload); raised immediately,
	// never retried.
	ClientUsageError = engine.ClientUsageError

	// CorruptCheckpointError wraps an unparseable checkpoint file; delivered
	// through an EventFunc's Event.Err before the client restarts the
	// transfer from scratch.
	CorruptCheckpointError = engine.CorruptCheckpointError

	// CheckpointInvalidatedError reports that a loaded checkpoint no longer
	// matches the object or transfer parameters it was created against;
	// delivered through an EventFunc's Event.Err before the client restarts
	// the transfer from scratch.
	CheckpointInvalidatedError = engine.CheckpointInvalidatedError

	// TransientPartError records a per-part failure classified as
	// retryable (network error, 5xx, timeout).
	TransientPartError = engine.TransientPartError

	// AbortPartError records a per-part failure the server marked
	// non-retryable (403/404/405).
	AbortPartError = engine.AbortPartError

	// CrcMismatchError reports that the combined CRC64 of all completed
	// parts disagrees with the server-declared digest.
	CrcMismatchError = engine.CrcMismatchError

	// FileIOError wraps a local filesystem failure encountered outside of
	// part execution (stat/mkdir/write/rename).
	FileIOError = engine.FileIOError
)

// ErrCancelled is returned when the caller's context is observed cancelled
// at one of the engine's cancellation checkpoints. The checkpoint and temp
// file are left intact so a later call can resume.
var ErrCancelled = engine.ErrCancelled
