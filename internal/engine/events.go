package engine

import "github.com/ares89/ve-tos-go-sdk/internal/checkpoint"

// DataTransferType enumerates the lifecycle events of the dataTransfer
// observer stream (spec §4.5 "DataTransfer observer contract").
type DataTransferType int

const (
	DataTransferStarted DataTransferType = iota
	DataTransferRw
	DataTransferSucceed
	DataTransferFailed
)

// DataTransferStatus is the payload delivered to a DataTransferFunc.
type DataTransferStatus struct {
	Type          DataTransferType
	RwOnceBytes   int64
	ConsumedBytes int64
	TotalBytes    int64
}

// EventType enumerates the structural (downloadEvent/uploadEvent) observer
// stream — one entry per named event in spec §4.4/§4.6/§7.
type EventType string

const (
	EventCreateTempFileSucceed EventType = "CreateTempFileSucceed"
	EventCreateTempFileFailed  EventType = "CreateTempFileFailed"
	EventDownloadPartSucceed   EventType = "DownloadPartSucceed"
	EventDownloadPartFailed    EventType = "DownloadPartFailed"
	EventDownloadPartAborted   EventType = "DownloadPartAborted"
	EventRenameTempFileSucceed EventType = "RenameTempFileSucceed"
	EventRenameTempFileFailed  EventType = "RenameTempFileFailed"

	// EventCheckpointCorrupt and EventCheckpointInvalidated fire when a
	// loaded checkpoint is discarded and the transfer proceeds from
	// scratch; Err carries a *CorruptCheckpointError or
	// *CheckpointInvalidatedError respectively.
	EventCheckpointCorrupt     EventType = "CheckpointCorrupt"
	EventCheckpointInvalidated EventType = "CheckpointInvalidated"

	EventCreateMultipartUploadSucceed EventType = "CreateMultipartUploadSucceed"
	EventCreateMultipartUploadFailed  EventType = "CreateMultipartUploadFailed"
	EventUploadPartSucceed            EventType = "UploadPartSucceed"
	EventUploadPartFailed             EventType = "UploadPartFailed"
	EventUploadPartAborted            EventType = "UploadPartAborted"
	EventCompleteMultipartSucceed     EventType = "CompleteMultipartUploadSucceed"
	EventCompleteMultipartFailed      EventType = "CompleteMultipartUploadFailed"
)

// Event is the payload delivered to an EventFunc.
type Event struct {
	Type       EventType
	PartNumber int // 0 when the event is not part-scoped
	Err        error
}

// ProgressFunc mirrors spec §6's progress(percent, checkpoint) callback.
// checkpoint is a defensive clone (checkpoint.Document.Clone) safe to read
// after the call returns.
type ProgressFunc func(percent float64, checkpoint *checkpoint.Document)

// DataTransferFunc mirrors dataTransferStatusChange.
type DataTransferFunc func(DataTransferStatus)

// EventFunc mirrors downloadEventChange / uploadEventChange.
type EventFunc func(Event)

// Observers bundles the three synchronous callback sinks the engine
// invokes from whichever worker goroutine triggers them. A nil field is
// simply not called — callers are never required to supply all three.
type Observers struct {
	Progress     ProgressFunc
	DataTransfer DataTransferFunc
	Event        EventFunc
}

func (o Observers) progress(percent float64, cp *checkpoint.Document) {
	if o.Progress != nil {
		o.Progress(percent, cp)
	}
}

func (o Observers) dataTransfer(s DataTransferStatus) {
	if o.DataTransfer != nil {
		o.DataTransfer(s)
	}
}

func (o Observers) event(e Event) {
	if o.Event != nil {
		o.Event(e)
	}
}
