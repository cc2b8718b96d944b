package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ares89/ve-tos-go-sdk/internal/bufpool"
	"github.com/ares89/ve-tos-go-sdk/internal/checkpoint"
	"github.com/ares89/ve-tos-go-sdk/internal/crc"
	"github.com/ares89/ve-tos-go-sdk/internal/filebackend"
	"github.com/ares89/ve-tos-go-sdk/internal/logging"
	"github.com/ares89/ve-tos-go-sdk/internal/plan"
	"github.com/ares89/ve-tos-go-sdk/internal/ratelimit"
	"github.com/ares89/ve-tos-go-sdk/internal/requester"
)

// DownloadParams is the engine's view of a downloadFile call — the
// direction-agnostic fields of spec §6's DownloadInput translated to Go
// types and collaborator handles.
type DownloadParams struct {
	Requester   requester.Requester
	FileBackend filebackend.Backend
	Logger      *logging.Logger
	RateLimiter *ratelimit.Limiter

	Bucket, Key, VersionID string
	FilePath               string
	TempFilePath           string
	PartSize               int64
	TaskNum                int
	EnableCRC              bool

	CheckpointPath      string
	CheckpointIsDir     bool
	InMemoryCheckpoint  *checkpoint.Document
	TrafficLimit        int64

	IfMatch           string
	IfNoneMatch       string
	IfModifiedSince   time.Time
	IfUnmodifiedSince time.Time

	SSECAlgorithm string
	SSECKeyMD5    string
	SSECKey       string

	// RenameFile overrides the temp-to-destination rename at FINALIZE; nil
	// uses FileBackend.Rename.
	RenameFile func(tempPath, destPath string) error

	Observers Observers
}

// DownloadResult is returned on a successful DONE transition.
type DownloadResult struct {
	Bucket, Key, VersionID string
	FilePath               string
	ObjectSize             int64
	HashCrc64Ecma          string
}

type saveRequest struct {
	apply func(*checkpoint.Document)
	done  chan *checkpoint.Document
}

// downloadEngine holds the live state of one Download call — the Go
// realization of spec §3's runtime-only TransferContext, scoped to the
// download direction.
type downloadEngine struct {
	p     *DownloadParams
	store *checkpoint.Store

	meta requester.ObjectMeta

	checkpointPath string
	freshTransfer  bool // true when no valid checkpoint existed at PREPARE_FILES

	doc    *checkpoint.Document
	saveCh chan saveRequest

	consumedBytes atomic.Int64 // advanced from any worker as bytes are streamed
	objectSize    int64
}

// Download drives the full HEAD→LOAD_CP→VALIDATE_CP→PREPARE_FILES→RUN→
// VERIFY→FINALIZE state machine of spec §4.4.
func Download(ctx context.Context, p *DownloadParams) (*DownloadResult, error) {
	if p.PartSize <= 0 {
		p.PartSize = plan.DefaultPartSize
	}
	if p.TaskNum <= 0 {
		p.TaskNum = 1
	}
	logger := p.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	d := &downloadEngine{
		p:     p,
		store: checkpoint.NewStore(p.FileBackend),
	}

	// HEAD
	headOut, err := p.Requester.HeadObject(ctx, &requester.HeadObjectInput{
		Bucket:            p.Bucket,
		Key:               p.Key,
		VersionID:         p.VersionID,
		IfMatch:           p.IfMatch,
		IfNoneMatch:       p.IfNoneMatch,
		IfModifiedSince:   p.IfModifiedSince,
		IfUnmodifiedSince: p.IfUnmodifiedSince,
		SSECAlgorithm:     p.SSECAlgorithm,
		SSECKeyMD5:        p.SSECKeyMD5,
		SSECKey:           p.SSECKey,
	})
	if err != nil {
		var badSize *requester.ErrInvalidSymlinkTargetSize
		if errors.As(err, &badSize) {
			return nil, &ClientUsageError{Message: err.Error()}
		}
		return nil, err
	}
	d.meta = *headOut
	d.objectSize = headOut.ObjectSize

	// Resolve the checkpoint path now that VersionID is known (directory
	// mode placeholders use "{bucket}_{key}.{versionId}.json").
	resolved := checkpoint.ResolvePath(p.CheckpointPath, p.CheckpointIsDir, p.InMemoryCheckpoint, p.Bucket, p.Key)
	d.checkpointPath = resolved.Finalize(false, d.meta.VersionID, "")

	// LOAD_CP
	var doc *checkpoint.Document
	if resolved.InMemory {
		doc = p.InMemoryCheckpoint
	} else if d.checkpointPath != "" {
		loaded, loadErr := d.store.Load(d.checkpointPath)
		if loadErr != nil {
			corruptErr := &CorruptCheckpointError{Path: d.checkpointPath, Err: loadErr}
			logger.Warnf("%v", corruptErr)
			p.Observers.event(Event{Type: EventCheckpointCorrupt, Err: corruptErr})
		} else {
			doc = loaded
		}
	}

	// VALIDATE_CP
	if doc != nil {
		if reason := d.checkpointInvalidReason(doc); reason != "" {
			invalidErr := &CheckpointInvalidatedError{Reason: reason}
			logger.Warnf("%v", invalidErr)
			p.Observers.event(Event{Type: EventCheckpointInvalidated, Err: invalidErr})
			doc = nil
		}
	}

	// PREPARE_FILES
	destPath := p.FilePath
	tempPath := p.TempFilePath
	if tempPath == "" {
		tempPath = destPath + ".temp"
	}
	if dir := parentDir(destPath); dir != "" {
		if err := p.FileBackend.MkdirAll(dir); err != nil {
			return nil, &FileIOError{Op: "mkdir", Path: dir, Err: err}
		}
	}

	d.freshTransfer = doc == nil
	if doc == nil {
		if err := p.FileBackend.CreateEmpty(tempPath); err != nil {
			p.Observers.event(Event{Type: EventCreateTempFileFailed, Err: err})
			return nil, &FileIOError{Op: "create temp file", Path: tempPath, Err: err}
		}
		p.Observers.event(Event{Type: EventCreateTempFileSucceed})

		doc = &checkpoint.Document{
			Bucket:    p.Bucket,
			Key:       p.Key,
			VersionID: d.meta.VersionID,
			PartSize:  p.PartSize,
			ObjectInfo: checkpoint.ObjectInfo{
				ETag:          d.meta.ETag,
				HashCrc64Ecma: d.meta.HashCrc64Ecma,
				ObjectSize:    d.meta.ObjectSize,
				LastModified:  d.meta.LastModified.UTC().Format(time.RFC3339Nano),
			},
			FileInfo: checkpoint.FileInfo{FilePath: destPath, TempFilePath: tempPath},
		}
	}
	d.doc = doc

	tasks, err := plan.Plan(d.objectSize, p.PartSize, false)
	if err != nil {
		return nil, &ClientUsageError{Message: err.Error()}
	}
	d.seedParts(tasks)

	// single-writer checkpoint persistence actor (spec §5 / §9).
	d.saveCh = make(chan saveRequest)
	actorDone := make(chan struct{})
	go func() {
		defer close(actorDone)
		for req := range d.saveCh {
			req.apply(d.doc)
			if d.checkpointPath != "" {
				if err := d.store.Persist(d.checkpointPath, d.doc); err != nil {
					logger.Warnf("persist checkpoint %s: %v", d.checkpointPath, err)
				}
			}
			req.done <- d.doc.Clone()
		}
	}()

	remaining := pendingTasks(tasks, doc)

	// RUN
	p.Observers.progress(0, d.doc.Clone())
	if d.freshTransfer {
		p.Observers.dataTransfer(DataTransferStatus{Type: DataTransferStarted, TotalBytes: d.objectSize})
	}
	d.consumedBytes.Store(doc.CompletedBytes())

	runErr := runWorkers(ctx, p.TaskNum, len(remaining), func(ctx context.Context, i int) error {
		return d.runPart(ctx, remaining[i])
	})

	close(d.saveCh)
	<-actorDone

	if runErr != nil {
		return nil, runErr
	}

	// VERIFY
	if p.EnableCRC && d.meta.HashCrc64Ecma != "" {
		computed, err := combinedCrc(d.doc)
		if err != nil {
			return nil, err
		}
		if computed != d.meta.HashCrc64Ecma {
			p.Observers.dataTransfer(DataTransferStatus{Type: DataTransferFailed, ConsumedBytes: d.consumedBytes.Load(), TotalBytes: d.objectSize})
			return nil, &CrcMismatchError{Expected: d.meta.HashCrc64Ecma, Actual: computed}
		}
	}

	// FINALIZE
	rename := p.RenameFile
	if rename == nil {
		rename = func(tmp, dst string) error { return p.FileBackend.Rename(tmp, dst) }
	}
	if err := rename(tempPath, destPath); err != nil {
		p.Observers.event(Event{Type: EventRenameTempFileFailed, Err: err})
		p.Observers.dataTransfer(DataTransferStatus{Type: DataTransferFailed, ConsumedBytes: d.consumedBytes.Load(), TotalBytes: d.objectSize})
		return nil, &FileIOError{Op: "rename", Path: tempPath, Err: err}
	}
	p.Observers.event(Event{Type: EventRenameTempFileSucceed})
	p.Observers.dataTransfer(DataTransferStatus{Type: DataTransferSucceed, ConsumedBytes: d.objectSize, TotalBytes: d.objectSize})

	if d.checkpointPath != "" {
		if err := d.store.Remove(d.checkpointPath); err != nil {
			logger.Warnf("remove checkpoint %s: %v", d.checkpointPath, err)
		}
	}

	p.Observers.progress(1, nil)

	return &DownloadResult{
		Bucket:        p.Bucket,
		Key:           p.Key,
		VersionID:     d.meta.VersionID,
		FilePath:      destPath,
		ObjectSize:    d.objectSize,
		HashCrc64Ecma: d.meta.HashCrc64Ecma,
	}, nil
}

// checkpointInvalidReason implements spec §3 invariants 4-6.
func (d *downloadEngine) checkpointInvalidReason(doc *checkpoint.Document) string {
	p := d.p
	if doc.Bucket != p.Bucket || doc.Key != p.Key || (p.VersionID != "" && doc.VersionID != p.VersionID) {
		return "object identity changed"
	}
	if doc.ObjectInfo.ETag != d.meta.ETag {
		return "etag changed"
	}
	if doc.ObjectInfo.ObjectSize != d.meta.ObjectSize {
		return "object size changed"
	}
	if doc.ObjectInfo.LastModified != d.meta.LastModified.UTC().Format(time.RFC3339Nano) {
		return "last-modified changed"
	}
	if doc.PartSize != p.PartSize {
		return "partSize changed"
	}
	if _, ok, err := p.FileBackend.Stat(doc.FileInfo.TempFilePath); err != nil || !ok {
		return "temp file missing"
	}
	return ""
}

func (d *downloadEngine) seedParts(tasks []plan.Task) {
	if len(d.doc.PartsInfo) == len(tasks) {
		return
	}
	parts := make([]checkpoint.PartInfo, len(tasks))
	existing := make(map[int]checkpoint.PartInfo, len(d.doc.PartsInfo))
	for _, pi := range d.doc.PartsInfo {
		existing[pi.PartNumber] = pi
	}
	for i, t := range tasks {
		if pi, ok := existing[t.PartNumber]; ok {
			parts[i] = pi
			continue
		}
		parts[i] = checkpoint.PartInfo{PartNumber: t.PartNumber, RangeStart: t.Offset, RangeEnd: t.RangeEnd()}
	}
	d.doc.PartsInfo = parts
}

func pendingTasks(tasks []plan.Task, doc *checkpoint.Document) []plan.Task {
	completed := make(map[int]bool, len(doc.PartsInfo))
	for _, pi := range doc.PartsInfo {
		if pi.IsCompleted {
			completed[pi.PartNumber] = true
		}
	}
	out := make([]plan.Task, 0, len(tasks))
	for _, t := range tasks {
		if !completed[t.PartNumber] {
			out = append(out, t)
		}
	}
	return out
}

// applyAndPersist funnels a mutation of d.doc through the single-writer
// actor goroutine and returns a clone of the post-mutation document.
func (d *downloadEngine) applyAndPersist(apply func(*checkpoint.Document)) *checkpoint.Document {
	done := make(chan *checkpoint.Document, 1)
	d.saveCh <- saveRequest{apply: apply, done: done}
	return <-done
}

// runPart executes one part's GET + streamed write + checkpoint update; it
// is the `work` callback handed to runWorkers.
func (d *downloadEngine) runPart(ctx context.Context, t plan.Task) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}

	if t.Length == 0 {
		d.completePartRecord(t, "0")
		d.p.Observers.event(Event{Type: EventDownloadPartSucceed, PartNumber: t.PartNumber})
		return nil
	}

	if d.p.RateLimiter != nil {
		if err := d.p.RateLimiter.Wait(ctx); err != nil {
			return ErrCancelled
		}
	}

	out, err := d.p.Requester.GetObject(ctx, &requester.GetObjectInput{
		Bucket:        d.p.Bucket,
		Key:           d.p.Key,
		VersionID:     d.p.VersionID,
		RangeStart:    t.Offset,
		RangeEnd:      t.RangeEnd(),
		IfMatch:       d.meta.ETag,
		TrafficLimit:  d.p.TrafficLimit,
		SSECAlgorithm: d.p.SSECAlgorithm,
		SSECKeyMD5:    d.p.SSECKeyMD5,
		SSECKey:       d.p.SSECKey,
	})
	if err != nil {
		return d.failPart(t, err)
	}
	defer out.Body.Close()

	w, closer, err := d.p.FileBackend.OpenForRandomWrite(d.doc.FileInfo.TempFilePath)
	if err != nil {
		return &FileIOError{Op: "open temp file", Path: d.doc.FileInfo.TempFilePath, Err: err}
	}
	defer closer.Close()
	if _, err := w.Seek(t.Offset, io.SeekStart); err != nil {
		return &FileIOError{Op: "seek temp file", Path: d.doc.FileInfo.TempFilePath, Err: err}
	}

	var stream *crc.Stream
	var src io.Reader = out.Body
	if d.p.EnableCRC {
		stream = crc.NewReader(out.Body)
		src = stream
	}

	written, err := d.copyChunked(ctx, w, src, func(n int) {
		consumed := d.consumedBytes.Add(int64(n))
		d.p.Observers.dataTransfer(DataTransferStatus{
			Type:          DataTransferRw,
			RwOnceBytes:   int64(n),
			ConsumedBytes: consumed,
			TotalBytes:    d.objectSize,
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return d.failPart(t, err)
	}
	if written != t.Length {
		return d.failPart(t, fmt.Errorf("short write: wrote %d of %d bytes", written, t.Length))
	}
	if ctx.Err() != nil {
		return ErrCancelled
	}

	digest := "0"
	if stream != nil {
		digest = stream.Digest()
	}
	d.completePartRecord(t, digest)
	d.p.Observers.event(Event{Type: EventDownloadPartSucceed, PartNumber: t.PartNumber})
	return nil
}

// completePartRecord marks t completed, persists serially, and fires
// progress() unless this success brings consumedBytes to objectSize (the
// final 1.0 is deferred to FINALIZE).
func (d *downloadEngine) completePartRecord(t plan.Task, crc64 string) {
	doc := d.applyAndPersist(func(doc *checkpoint.Document) {
		for i := range doc.PartsInfo {
			if doc.PartsInfo[i].PartNumber == t.PartNumber {
				doc.PartsInfo[i].IsCompleted = true
				doc.PartsInfo[i].HashCrc64Ecma = crc64
				break
			}
		}
	})

	consumed := d.consumedBytes.Load()
	if consumed == d.objectSize {
		return
	}
	d.p.Observers.progress(float64(consumed)/float64(maxInt64(d.objectSize, 1)), doc)
}

// failPart records a failed-but-attempted part (no completion), classifies
// it per spec §7, and returns the wrapped error for first-error capture.
func (d *downloadEngine) failPart(t plan.Task, cause error) error {
	d.applyAndPersist(func(doc *checkpoint.Document) {
		for i := range doc.PartsInfo {
			if doc.PartsInfo[i].PartNumber == t.PartNumber {
				doc.PartsInfo[i].IsCompleted = false
				break
			}
		}
	})

	if code, ok := statusCodeOf(cause); ok && IsAbortStatus(code) {
		d.p.Observers.event(Event{Type: EventDownloadPartAborted, PartNumber: t.PartNumber, Err: cause})
		return &AbortPartError{PartNumber: t.PartNumber, StatusCode: code, Err: cause}
	}
	d.p.Observers.event(Event{Type: EventDownloadPartFailed, PartNumber: t.PartNumber, Err: cause})
	return &TransientPartError{PartNumber: t.PartNumber, Err: cause}
}

// copyChunked streams src into dst in fixed-size chunks, invoking onChunk
// after each successful write and observing ctx cancellation between
// chunks (the "on each Rw chunk event" cancellation checkpoint of spec §4.7).
func (d *downloadEngine) copyChunked(ctx context.Context, dst io.Writer, src io.Reader, onChunk func(n int)) (int64, error) {
	buf := bufpool.Get()
	defer bufpool.Put(buf)
	var total int64
	for {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return total, writeErr
			}
			total += int64(n)
			onChunk(n)
		}
		if readErr != nil {
			if readErr == io.EOF {
				return total, nil
			}
			return total, readErr
		}
	}
}

func combinedCrc(doc *checkpoint.Document) (string, error) {
	parts := make([]checkpoint.PartInfo, len(doc.PartsInfo))
	copy(parts, doc.PartsInfo)
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	crcParts := make([]crc.Part, 0, len(parts))
	for _, pi := range parts {
		length := pi.RangeEnd - pi.RangeStart + 1
		if pi.RangeEnd < pi.RangeStart {
			length = 0
		}
		crcParts = append(crcParts, crc.Part{Crc64: pi.HashCrc64Ecma, Length: length})
	}
	return crc.CombineAll(crcParts)
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func statusCodeOf(err error) (int, bool) {
	type httpStatusCoder interface{ HTTPStatusCode() int }
	var coder httpStatusCoder
	for e := err; e != nil; {
		if c, ok := e.(httpStatusCoder); ok {
			coder = c
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if coder == nil {
		return 0, false
	}
	return coder.HTTPStatusCode(), true
}
