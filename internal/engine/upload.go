package engine

import (
	"context"
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ares89/ve-tos-go-sdk/internal/checkpoint"
	"github.com/ares89/ve-tos-go-sdk/internal/crc"
	"github.com/ares89/ve-tos-go-sdk/internal/filebackend"
	"github.com/ares89/ve-tos-go-sdk/internal/logging"
	"github.com/ares89/ve-tos-go-sdk/internal/plan"
	"github.com/ares89/ve-tos-go-sdk/internal/ratelimit"
	"github.com/ares89/ve-tos-go-sdk/internal/requester"
)

// UploadParams is the engine's view of an uploadFile call, symmetric to
// DownloadParams (spec §4.6 "UploadDriver (symmetric contract)").
type UploadParams struct {
	Requester   requester.Requester
	FileBackend filebackend.Backend
	Logger      *logging.Logger
	RateLimiter *ratelimit.Limiter

	Bucket, Key string
	SourcePath  string
	PartSize    int64
	TaskNum     int
	EnableCRC   bool
	TrafficLimit int64

	CheckpointPath     string
	CheckpointIsDir    bool
	InMemoryCheckpoint *checkpoint.Document

	SSECAlgorithm string
	SSECKeyMD5    string
	SSECKey       string

	Observers Observers
}

// UploadResult is returned on a successful DONE transition.
type UploadResult struct {
	Bucket, Key   string
	UploadID      string
	ETag          string
	Location      string
	HashCrc64Ecma string
}

// uploadEngine mirrors downloadEngine for the upload direction: a
// CreateMultipartUpload in place of HEAD, UploadPart in place of ranged
// GET, and CompleteMultipartUpload in place of rename.
type uploadEngine struct {
	p     *UploadParams
	store *checkpoint.Store

	sourceSize int64

	checkpointPath string
	freshTransfer  bool

	doc    *checkpoint.Document
	saveCh chan saveRequest

	consumedBytes atomic.Int64
}

// Upload drives INIT→LOAD_CP→VALIDATE_CP→CREATE_MPU (only when no valid
// checkpoint was loaded)→PREPARE→RUN→FINALIZE (CompleteMultipartUpload)→
// VERIFY, the upload-direction realization of spec §4.4/§4.6.
func Upload(ctx context.Context, p *UploadParams) (*UploadResult, error) {
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

	size, ok, err := p.FileBackend.Stat(p.SourcePath)
	if err != nil || !ok {
		return nil, &FileIOError{Op: "stat", Path: p.SourcePath, Err: err}
	}

	u := &uploadEngine{
		p:          p,
		store:      checkpoint.NewStore(p.FileBackend),
		sourceSize: size,
	}

	tasks, err := plan.Plan(size, p.PartSize, true)
	if err != nil {
		return nil, &ClientUsageError{Message: err.Error()}
	}

	resolved := checkpoint.ResolvePath(p.CheckpointPath, p.CheckpointIsDir, p.InMemoryCheckpoint, p.Bucket, p.Key)

	var doc *checkpoint.Document
	if resolved.InMemory {
		doc = p.InMemoryCheckpoint
	} else if !resolved.Placeholder && resolved.Path != "" {
		loaded, loadErr := u.store.Load(resolved.Path)
		if loadErr != nil {
			corruptErr := &CorruptCheckpointError{Path: resolved.Path, Err: loadErr}
			logger.Warnf("%v", corruptErr)
			p.Observers.event(Event{Type: EventCheckpointCorrupt, Err: corruptErr})
		} else {
			doc = loaded
		}
	}
	// Placeholder (directory-mode) checkpoints cannot be located before the
	// uploadId is known; a caller resuming a directory-mode upload must pass
	// the concrete path produced by a prior run (spec §9: "uploadId in
	// checkpoint name").

	if doc != nil {
		if reason := u.checkpointInvalidReason(doc, size); reason != "" {
			invalidErr := &CheckpointInvalidatedError{Reason: reason}
			logger.Warnf("%v", invalidErr)
			p.Observers.event(Event{Type: EventCheckpointInvalidated, Err: invalidErr})
			doc = nil
		}
	}

	u.freshTransfer = doc == nil

	if doc == nil {
		createOut, err := p.Requester.CreateMultipartUpload(ctx, &requester.CreateMultipartUploadInput{
			Bucket:        p.Bucket,
			Key:           p.Key,
			SSECAlgorithm: p.SSECAlgorithm,
			SSECKeyMD5:    p.SSECKeyMD5,
			SSECKey:       p.SSECKey,
		})
		if err != nil {
			p.Observers.event(Event{Type: EventCreateMultipartUploadFailed, Err: err})
			return nil, err
		}
		p.Observers.event(Event{Type: EventCreateMultipartUploadSucceed})

		doc = &checkpoint.Document{
			Bucket:   p.Bucket,
			Key:      p.Key,
			PartSize: p.PartSize,
			ObjectInfo: checkpoint.ObjectInfo{
				ObjectSize: size,
			},
			FileInfo: checkpoint.FileInfo{FilePath: p.SourcePath},
			UploadID: createOut.UploadID,
		}
		u.checkpointPath = resolved.Finalize(true, "", createOut.UploadID)
	} else {
		u.checkpointPath = resolved.Finalize(true, "", doc.UploadID)
	}
	u.doc = doc
	u.seedParts(tasks)

	u.saveCh = make(chan saveRequest)
	actorDone := make(chan struct{})
	go func() {
		defer close(actorDone)
		for req := range u.saveCh {
			req.apply(u.doc)
			if u.checkpointPath != "" {
				if err := u.store.Persist(u.checkpointPath, u.doc); err != nil {
					logger.Warnf("persist checkpoint %s: %v", u.checkpointPath, err)
				}
			}
			req.done <- u.doc.Clone()
		}
	}()

	remaining := pendingTasks(tasks, doc)

	p.Observers.progress(0, u.doc.Clone())
	if u.freshTransfer {
		p.Observers.dataTransfer(DataTransferStatus{Type: DataTransferStarted, TotalBytes: size})
	}
	u.consumedBytes.Store(doc.CompletedBytes())

	runErr := runWorkers(ctx, p.TaskNum, len(remaining), func(ctx context.Context, i int) error {
		return u.runPart(ctx, remaining[i])
	})

	close(u.saveCh)
	<-actorDone

	if runErr != nil {
		// A part failure ends the upload session: abort server-side so the
		// orphaned session doesn't linger, but keep the checkpoint so the
		// caller can still inspect per-part progress (spec §4.6 / SPEC_FULL
		// §4.6). A cancelled ctx skips the abort, leaving the session and the
		// checkpoint in place for a later resume.
		if ctx.Err() == nil {
			_ = p.Requester.AbortMultipartUpload(ctx, &requester.AbortMultipartUploadInput{
				Bucket: p.Bucket, Key: p.Key, UploadID: doc.UploadID,
			})
		}
		return nil, runErr
	}

	// FINALIZE
	parts := completedParts(doc)
	completeOut, err := p.Requester.CompleteMultipartUpload(ctx, &requester.CompleteMultipartUploadInput{
		Bucket:   p.Bucket,
		Key:      p.Key,
		UploadID: doc.UploadID,
		Parts:    parts,
	})
	if err != nil {
		p.Observers.event(Event{Type: EventCompleteMultipartFailed, Err: err})
		p.Observers.dataTransfer(DataTransferStatus{Type: DataTransferFailed, ConsumedBytes: u.consumedBytes.Load(), TotalBytes: size})
		return nil, err
	}

	if p.EnableCRC && completeOut.HashCrc64Ecma != "" {
		computed, cerr := combinedCrc(doc)
		if cerr != nil {
			return nil, cerr
		}
		if computed != completeOut.HashCrc64Ecma {
			p.Observers.dataTransfer(DataTransferStatus{Type: DataTransferFailed, ConsumedBytes: u.consumedBytes.Load(), TotalBytes: size})
			return nil, &CrcMismatchError{Expected: completeOut.HashCrc64Ecma, Actual: computed}
		}
	}

	p.Observers.event(Event{Type: EventCompleteMultipartSucceed})
	p.Observers.dataTransfer(DataTransferStatus{Type: DataTransferSucceed, ConsumedBytes: size, TotalBytes: size})

	if u.checkpointPath != "" {
		if err := u.store.Remove(u.checkpointPath); err != nil {
			logger.Warnf("remove checkpoint %s: %v", u.checkpointPath, err)
		}
	}

	p.Observers.progress(1, nil)

	return &UploadResult{
		Bucket:        p.Bucket,
		Key:           p.Key,
		UploadID:      doc.UploadID,
		ETag:          completeOut.ETag,
		Location:      completeOut.Location,
		HashCrc64Ecma: completeOut.HashCrc64Ecma,
	}, nil
}

func (u *uploadEngine) checkpointInvalidReason(doc *checkpoint.Document, size int64) string {
	p := u.p
	if doc.Bucket != p.Bucket || doc.Key != p.Key {
		return "object identity changed"
	}
	if doc.ObjectInfo.ObjectSize != size {
		return "source file size changed"
	}
	if doc.PartSize != p.PartSize {
		return "partSize changed"
	}
	if doc.UploadID == "" {
		return "missing upload id"
	}
	return ""
}

func (u *uploadEngine) seedParts(tasks []plan.Task) {
	if len(u.doc.PartsInfo) == len(tasks) {
		return
	}
	parts := make([]checkpoint.PartInfo, len(tasks))
	existing := make(map[int]checkpoint.PartInfo, len(u.doc.PartsInfo))
	for _, pi := range u.doc.PartsInfo {
		existing[pi.PartNumber] = pi
	}
	for i, t := range tasks {
		if pi, ok := existing[t.PartNumber]; ok {
			parts[i] = pi
			continue
		}
		parts[i] = checkpoint.PartInfo{PartNumber: t.PartNumber, RangeStart: t.Offset, RangeEnd: t.RangeEnd()}
	}
	u.doc.PartsInfo = parts
}

func (u *uploadEngine) applyAndPersist(apply func(*checkpoint.Document)) *checkpoint.Document {
	done := make(chan *checkpoint.Document, 1)
	u.saveCh <- saveRequest{apply: apply, done: done}
	return <-done
}

func (u *uploadEngine) runPart(ctx context.Context, t plan.Task) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}

	ra, closer, err := u.p.FileBackend.OpenForRandomRead(u.p.SourcePath)
	if err != nil {
		return &FileIOError{Op: "open source file", Path: u.p.SourcePath, Err: err}
	}
	defer closer.Close()

	section := io.NewSectionReader(ra, t.Offset, t.Length)

	var stream *crc.Stream
	var body io.Reader = section
	if u.p.EnableCRC {
		stream = crc.NewReader(section)
		body = stream
	}

	reporter := &countingReader{r: body, onChunk: func(n int) {
		consumed := u.consumedBytes.Add(int64(n))
		u.p.Observers.dataTransfer(DataTransferStatus{
			Type:          DataTransferRw,
			RwOnceBytes:   int64(n),
			ConsumedBytes: consumed,
			TotalBytes:    u.sourceSize,
		})
	}}

	if u.p.RateLimiter != nil {
		if err := u.p.RateLimiter.Wait(ctx); err != nil {
			return ErrCancelled
		}
	}

	out, err := u.p.Requester.UploadPart(ctx, &requester.UploadPartInput{
		Bucket:        u.p.Bucket,
		Key:           u.p.Key,
		UploadID:      u.doc.UploadID,
		PartNumber:    t.PartNumber,
		Body:          reporter,
		ContentLength: t.Length,
		TrafficLimit:  u.p.TrafficLimit,
		SSECAlgorithm: u.p.SSECAlgorithm,
		SSECKeyMD5:    u.p.SSECKeyMD5,
		SSECKey:       u.p.SSECKey,
	})
	if err != nil {
		return u.failPart(t, err)
	}
	if ctx.Err() != nil {
		return ErrCancelled
	}

	digest := "0"
	if stream != nil {
		digest = stream.Digest()
	}
	u.completePartRecord(t, digest, out.ETag)
	u.p.Observers.event(Event{Type: EventUploadPartSucceed, PartNumber: t.PartNumber})
	return nil
}

func (u *uploadEngine) completePartRecord(t plan.Task, crc64, etag string) {
	doc := u.applyAndPersist(func(doc *checkpoint.Document) {
		for i := range doc.PartsInfo {
			if doc.PartsInfo[i].PartNumber == t.PartNumber {
				doc.PartsInfo[i].IsCompleted = true
				doc.PartsInfo[i].HashCrc64Ecma = crc64
				doc.PartsInfo[i].ETag = etag
				doc.PartsInfo[i].UploadedAt = time.Now().UTC().Format(time.RFC3339Nano)
				break
			}
		}
	})

	consumed := u.consumedBytes.Load()
	if consumed == u.sourceSize {
		return
	}
	u.p.Observers.progress(float64(consumed)/float64(maxInt64(u.sourceSize, 1)), doc)
}

func (u *uploadEngine) failPart(t plan.Task, cause error) error {
	u.applyAndPersist(func(doc *checkpoint.Document) {
		for i := range doc.PartsInfo {
			if doc.PartsInfo[i].PartNumber == t.PartNumber {
				doc.PartsInfo[i].IsCompleted = false
				break
			}
		}
	})

	if code, ok := statusCodeOf(cause); ok && IsAbortStatus(code) {
		u.p.Observers.event(Event{Type: EventUploadPartAborted, PartNumber: t.PartNumber, Err: cause})
		return &AbortPartError{PartNumber: t.PartNumber, StatusCode: code, Err: cause}
	}
	u.p.Observers.event(Event{Type: EventUploadPartFailed, PartNumber: t.PartNumber, Err: cause})
	return &TransientPartError{PartNumber: t.PartNumber, Err: cause}
}

func completedParts(doc *checkpoint.Document) []requester.CompletedPart {
	infos := make([]checkpoint.PartInfo, len(doc.PartsInfo))
	copy(infos, doc.PartsInfo)
	sort.Slice(infos, func(i, j int) bool { return infos[i].PartNumber < infos[j].PartNumber })

	parts := make([]requester.CompletedPart, 0, len(infos))
	for _, pi := range infos {
		parts = append(parts, requester.CompletedPart{PartNumber: pi.PartNumber, ETag: pi.ETag})
	}
	return parts
}

// countingReader wraps an io.Reader, invoking onChunk with the byte count
// of every non-empty Read — the upload-side equivalent of the download
// driver's copyChunked callback, needed here because io.Reader (not a
// writer-side loop) is what UploadPart's Requester.Body field consumes.
type countingReader struct {
	r       io.Reader
	onChunk func(n int)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.onChunk(n)
	}
	return n, err
}
