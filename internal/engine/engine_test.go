package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"hash/crc64"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/ares89/ve-tos-go-sdk/internal/checkpoint"
	"github.com/ares89/ve-tos-go-sdk/internal/filebackend"
	"github.com/ares89/ve-tos-go-sdk/internal/requester"
)

var ecmaTable = crc64.MakeTable(crc64.ECMA)

func crc64Of(b []byte) string {
	return strconv.FormatUint(crc64.Checksum(b, ecmaTable), 10)
}

// fakeObjectStore is a fake requester.Requester backed by an in-memory byte
// slice (download side) and a part buffer (upload side). It lets tests
// inject a failure on a chosen part/attempt to exercise pause-and-resume.
type fakeObjectStore struct {
	mu sync.Mutex

	data []byte // GetObject source
	etag string

	uploadID string
	parts    map[int][]byte

	// failPartOnce, when set, returns an error the first time GetObject or
	// UploadPart is called for that part number; subsequent calls succeed.
	failPartOnce map[int]bool
	failed       map[int]bool
}

func (f *fakeObjectStore) HeadObject(ctx context.Context, in *requester.HeadObjectInput) (*requester.ObjectMeta, error) {
	return &requester.ObjectMeta{
		ETag:          f.etag,
		HashCrc64Ecma: crc64Of(f.data),
		ObjectSize:    int64(len(f.data)),
	}, nil
}

func (f *fakeObjectStore) GetObject(ctx context.Context, in *requester.GetObjectInput) (*requester.GetObjectOutput, error) {
	f.mu.Lock()
	if f.failPartOnce != nil && f.failPartOnce[int(in.RangeStart)] && !f.failed[int(in.RangeStart)] {
		f.failed[int(in.RangeStart)] = true
		f.mu.Unlock()
		return nil, errors.New("injected transient failure")
	}
	f.mu.Unlock()

	end := in.RangeEnd + 1
	if end > int64(len(f.data)) {
		end = int64(len(f.data))
	}
	chunk := f.data[in.RangeStart:end]
	return &requester.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(chunk)),
		Meta: requester.ObjectMeta{ETag: f.etag, ObjectSize: int64(len(f.data))},
	}, nil
}

func (f *fakeObjectStore) CreateMultipartUpload(ctx context.Context, in *requester.CreateMultipartUploadInput) (*requester.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadID = "upload-1"
	f.parts = make(map[int][]byte)
	return &requester.CreateMultipartUploadOutput{UploadID: f.uploadID}, nil
}

func (f *fakeObjectStore) UploadPart(ctx context.Context, in *requester.UploadPartInput) (*requester.UploadPartOutput, error) {
	f.mu.Lock()
	if f.failPartOnce != nil && f.failPartOnce[in.PartNumber] && !f.failed[in.PartNumber] {
		f.failed[in.PartNumber] = true
		f.mu.Unlock()
		return nil, errors.New("injected transient failure")
	}
	f.mu.Unlock()

	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.parts[in.PartNumber] = body
	f.mu.Unlock()
	return &requester.UploadPartOutput{ETag: "etag-" + strconv.Itoa(in.PartNumber)}, nil
}

func (f *fakeObjectStore) CompleteMultipartUpload(ctx context.Context, in *requester.CompleteMultipartUploadInput) (*requester.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var whole bytes.Buffer
	for i := 1; i <= len(in.Parts); i++ {
		whole.Write(f.parts[i])
	}
	return &requester.CompleteMultipartUploadOutput{
		ETag:          "final-etag",
		HashCrc64Ecma: crc64Of(whole.Bytes()),
	}, nil
}

func (f *fakeObjectStore) AbortMultipartUpload(ctx context.Context, in *requester.AbortMultipartUploadInput) error {
	return nil
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(42)).Read(b)
	return b
}

func TestDownloadEmptyObject(t *testing.T) {
	dir := t.TempDir()
	store := &fakeObjectStore{data: nil, etag: "etag-empty"}
	fb := filebackend.New()

	res, err := Download(context.Background(), &DownloadParams{
		Requester:      store,
		FileBackend:    fb,
		Bucket:         "b",
		Key:            "empty",
		FilePath:       filepath.Join(dir, "empty.dat"),
		CheckpointPath: filepath.Join(dir, "empty.cp.json"),
		EnableCRC:      true,
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.ObjectSize != 0 {
		t.Fatalf("ObjectSize = %d, want 0", res.ObjectSize)
	}

	size, ok, err := fb.Stat(filepath.Join(dir, "empty.dat"))
	if err != nil || !ok {
		t.Fatalf("stat destination: ok=%v err=%v", ok, err)
	}
	if size != 0 {
		t.Fatalf("destination size = %d, want 0", size)
	}
}

func TestDownloadMultiPartWithCRC(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(10 * 1024 * 1024)
	store := &fakeObjectStore{data: data, etag: "etag-1"}
	fb := filebackend.New()

	destPath := filepath.Join(dir, "object.dat")
	res, err := Download(context.Background(), &DownloadParams{
		Requester:      store,
		FileBackend:    fb,
		Bucket:         "b",
		Key:            "object",
		FilePath:       destPath,
		CheckpointPath: filepath.Join(dir, "object.cp.json"),
		PartSize:       1024 * 1024,
		TaskNum:        10,
		EnableCRC:      true,
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.ObjectSize != int64(len(data)) {
		t.Fatalf("ObjectSize = %d, want %d", res.ObjectSize, len(data))
	}

	got := readFile(t, destPath)
	if !bytes.Equal(got, data) {
		t.Fatalf("downloaded content mismatch")
	}

	if _, ok, _ := fb.Stat(filepath.Join(dir, "object.cp.json")); ok {
		t.Fatal("checkpoint should be removed after a successful download")
	}
}

func TestDownloadOddPartSize(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(10 * 1024 * 1024)
	store := &fakeObjectStore{data: data, etag: "etag-2"}
	fb := filebackend.New()

	destPath := filepath.Join(dir, "object.dat")
	_, err := Download(context.Background(), &DownloadParams{
		Requester:      store,
		FileBackend:    fb,
		Bucket:         "b",
		Key:            "object",
		FilePath:       destPath,
		CheckpointPath: filepath.Join(dir, "object.cp.json"),
		PartSize:       7177,
		TaskNum:        4,
		EnableCRC:      true,
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	got := readFile(t, destPath)
	if !bytes.Equal(got, data) {
		t.Fatalf("downloaded content mismatch with odd part size")
	}
}

func TestDownloadCrcMismatch(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(64 * 1024)
	store := &fakeObjectStore{data: data, etag: "etag-3"}

	fb := filebackend.New()
	_, err := Download(context.Background(), &DownloadParams{
		Requester:      &corruptedDigestStore{fakeObjectStore: store},
		FileBackend:    fb,
		Bucket:         "b",
		Key:            "object",
		FilePath:       filepath.Join(dir, "object.dat"),
		CheckpointPath: filepath.Join(dir, "object.cp.json"),
		PartSize:       16 * 1024,
		TaskNum:        2,
		EnableCRC:      true,
	})
	var mismatch *CrcMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("want *CrcMismatchError, got %v", err)
	}

	if _, ok, _ := fb.Stat(filepath.Join(dir, "object.cp.json")); !ok {
		t.Fatal("checkpoint must survive a CRC mismatch so the caller can inspect it")
	}
}

// corruptedDigestStore reports a HashCrc64Ecma that never matches the data
// it actually serves, forcing the VERIFY step to fail.
type corruptedDigestStore struct {
	*fakeObjectStore
}

func (c *corruptedDigestStore) HeadObject(ctx context.Context, in *requester.HeadObjectInput) (*requester.ObjectMeta, error) {
	meta, err := c.fakeObjectStore.HeadObject(ctx, in)
	if err != nil {
		return nil, err
	}
	meta.HashCrc64Ecma = "1"
	return meta, nil
}

func TestDownloadPauseAndResume(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(100 * 1024 * 1024)
	cpPath := filepath.Join(dir, "object.cp.json")
	destPath := filepath.Join(dir, "object.dat")

	// First attempt: part covering offset 10MiB fails once, taskNum=1 so
	// the remaining parts after it still get attempted and recorded.
	store := &fakeObjectStore{
		data:         data,
		etag:         "etag-resume",
		failPartOnce: map[int]bool{10 * 1024 * 1024: true},
		failed:       map[int]bool{},
	}

	_, err := Download(context.Background(), &DownloadParams{
		Requester:      store,
		FileBackend:    filebackend.New(),
		Bucket:         "b",
		Key:            "object",
		FilePath:       destPath,
		CheckpointPath: cpPath,
		PartSize:       10 * 1024 * 1024,
		TaskNum:        1,
		EnableCRC:      true,
	})
	if err == nil {
		t.Fatal("expected first attempt to fail on the injected error")
	}
	var transient *TransientPartError
	if !errors.As(err, &transient) {
		t.Fatalf("want *TransientPartError, got %v", err)
	}

	fb := filebackend.New()
	if _, ok, _ := fb.Stat(cpPath); !ok {
		t.Fatal("checkpoint must survive a failed attempt so it can be resumed")
	}

	// Resume: same checkpoint path, now-healed store (failPartOnce already
	// consumed), must complete and reuse the already-downloaded bytes.
	res, err := Download(context.Background(), &DownloadParams{
		Requester:      store,
		FileBackend:    fb,
		Bucket:         "b",
		Key:            "object",
		FilePath:       destPath,
		CheckpointPath: cpPath,
		PartSize:       10 * 1024 * 1024,
		TaskNum:        1,
		EnableCRC:      true,
	})
	if err != nil {
		t.Fatalf("resume Download: %v", err)
	}
	if res.ObjectSize != int64(len(data)) {
		t.Fatalf("ObjectSize = %d, want %d", res.ObjectSize, len(data))
	}

	got := readFile(t, destPath)
	if !bytes.Equal(got, data) {
		t.Fatal("resumed download content mismatch")
	}
}

func TestDownloadCancellationReturnsCancelledError(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(10 * 1024 * 1024)
	store := &fakeObjectStore{data: data, etag: "etag-cancel"}
	fb := filebackend.New()
	cpPath := filepath.Join(dir, "object.cp.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Download(ctx, &DownloadParams{
		Requester:      store,
		FileBackend:    fb,
		Bucket:         "b",
		Key:            "object",
		FilePath:       filepath.Join(dir, "object.dat"),
		CheckpointPath: cpPath,
		PartSize:       1024 * 1024,
		TaskNum:        2,
	})
	if !errors.Is(err, context.Canceled) && !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected a cancellation error, got %v", err)
	}
}

func TestDownloadCorruptCheckpointDiscardedAndReported(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(64 * 1024)
	store := &fakeObjectStore{data: data, etag: "etag-corrupt"}
	fb := filebackend.New()
	cpPath := filepath.Join(dir, "object.cp.json")

	if err := os.WriteFile(cpPath, []byte("{not valid json"), 0o644); err != nil {
		t.Fatal(err)
	}

	var events []Event
	_, err := Download(context.Background(), &DownloadParams{
		Requester:      store,
		FileBackend:    fb,
		Bucket:         "b",
		Key:            "object",
		FilePath:       filepath.Join(dir, "object.dat"),
		CheckpointPath: cpPath,
		PartSize:       16 * 1024,
		TaskNum:        2,
		Observers: Observers{
			Event: func(e Event) { events = append(events, e) },
		},
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	var found *CorruptCheckpointError
	for _, e := range events {
		if e.Type == EventCheckpointCorrupt {
			if !errors.As(e.Err, &found) {
				t.Fatalf("EventCheckpointCorrupt.Err = %v, want *CorruptCheckpointError", e.Err)
			}
		}
	}
	if found == nil {
		t.Fatal("expected an EventCheckpointCorrupt event")
	}
}

func TestDownloadInvalidatedCheckpointDiscardedAndReported(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(64 * 1024)
	store := &fakeObjectStore{data: data, etag: "etag-fresh"}
	fb := filebackend.New()
	destPath := filepath.Join(dir, "object.dat")
	tempPath := destPath + ".temp"
	cpPath := filepath.Join(dir, "object.cp.json")

	if err := fb.CreateEmpty(tempPath); err != nil {
		t.Fatal(err)
	}
	stale := &checkpoint.Document{
		Bucket:   "b",
		Key:      "object",
		PartSize: 16 * 1024,
		ObjectInfo: checkpoint.ObjectInfo{
			ETag:       "stale-etag", // no longer matches the store's HEAD response
			ObjectSize: int64(len(data)),
		},
		FileInfo: checkpoint.FileInfo{FilePath: destPath, TempFilePath: tempPath},
	}
	body, err := json.Marshal(stale)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cpPath, body, 0o644); err != nil {
		t.Fatal(err)
	}

	var events []Event
	_, err = Download(context.Background(), &DownloadParams{
		Requester:      store,
		FileBackend:    fb,
		Bucket:         "b",
		Key:            "object",
		FilePath:       destPath,
		CheckpointPath: cpPath,
		PartSize:       16 * 1024,
		TaskNum:        2,
		Observers: Observers{
			Event: func(e Event) { events = append(events, e) },
		},
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	var found *CheckpointInvalidatedError
	for _, e := range events {
		if e.Type == EventCheckpointInvalidated {
			if !errors.As(e.Err, &found) {
				t.Fatalf("EventCheckpointInvalidated.Err = %v, want *CheckpointInvalidatedError", e.Err)
			}
		}
	}
	if found == nil {
		t.Fatal("expected an EventCheckpointInvalidated event")
	}
}

func TestUploadMultiPartRoundTrip(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(5 * 1024 * 1024)
	srcPath := filepath.Join(dir, "source.dat")
	fb := filebackend.New()
	writeFile(t, srcPath, data)

	store := &fakeObjectStore{}

	res, err := Upload(context.Background(), &UploadParams{
		Requester:      store,
		FileBackend:    fb,
		Bucket:         "b",
		Key:            "object",
		SourcePath:     srcPath,
		CheckpointPath: filepath.Join(dir, "upload.cp.json"),
		PartSize:       1024 * 1024,
		TaskNum:        3,
		EnableCRC:      true,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.UploadID == "" {
		t.Fatal("expected a non-empty upload id")
	}

	var whole bytes.Buffer
	for i := 1; i <= 5; i++ {
		whole.Write(store.parts[i])
	}
	if !bytes.Equal(whole.Bytes(), data) {
		t.Fatal("uploaded content mismatch")
	}
}

func TestUploadAbortsOnFailure(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(3 * 1024 * 1024)
	srcPath := filepath.Join(dir, "source.dat")
	writeFile(t, srcPath, data)

	store := &fakeObjectStore{
		failPartOnce: map[int]bool{2: true},
		failed:       map[int]bool{},
	}

	_, err := Upload(context.Background(), &UploadParams{
		Requester:      store,
		FileBackend:    filebackend.New(),
		Bucket:         "b",
		Key:            "object",
		SourcePath:     srcPath,
		CheckpointPath: filepath.Join(dir, "upload.cp.json"),
		PartSize:       1024 * 1024,
		TaskNum:        1,
	})
	if err == nil {
		t.Fatal("expected the injected part failure to surface")
	}
	var transient *TransientPartError
	if !errors.As(err, &transient) {
		t.Fatalf("want *TransientPartError, got %v", err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	ra, closer, err := filebackend.New().OpenForRandomRead(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer closer.Close()
	size, ok, err := filebackend.New().Stat(path)
	if err != nil || !ok {
		t.Fatalf("stat %s: ok=%v err=%v", path, ok, err)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(ra, 0, size), buf); err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return buf
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	fb := filebackend.New()
	if err := fb.CreateEmpty(path); err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	w, closer, err := fb.OpenForRandomWrite(path)
	if err != nil {
		t.Fatalf("open %s for write: %v", path, err)
	}
	defer closer.Close()
	if _, err := w.Write(data); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
