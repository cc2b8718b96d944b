// Package checkpoint defines the on-disk checkpoint document (the wire
// schema is normative, see spec §6) and the load/validate/persist/remove
// operations the transfer engine drives it through.
//
// Writes are serialized by the engine (one in flight per checkpoint); this
// package additionally guards Persist/Remove with a per-path mutex so a
// caller who accidentally drives two engines against the same checkpoint
// path still cannot interleave partial writes.
package checkpoint

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ares89/ve-tos-go-sdk/internal/filebackend"
)

// ObjectInfo snapshots the fields of the remote object a checkpoint is valid
// against; see invariants 4-5 in the engine design.
type ObjectInfo struct {
	ETag          string `json:"etag,omitempty"`
	HashCrc64Ecma string `json:"hash_crc64ecma,omitempty"`
	ObjectSize    int64  `json:"object_size"`
	LastModified  string `json:"last_modified,omitempty"`
}

// FileInfo records the destination/source path and the scratch temp path.
type FileInfo struct {
	FilePath     string `json:"file_path"`
	TempFilePath string `json:"temp_file_path"`
}

// PartInfo is one entry of parts_info: a PartRecord as persisted on disk.
// ETag and UploadedAt are populated only for upload checkpoints.
type PartInfo struct {
	PartNumber    int    `json:"part_number"`
	RangeStart    int64  `json:"range_start"`
	RangeEnd      int64  `json:"range_end"`
	HashCrc64Ecma string `json:"hash_crc64ecma,omitempty"`
	IsCompleted   bool   `json:"is_completed"`
	ETag          string `json:"etag,omitempty"`
	UploadedAt    string `json:"uploaded_at,omitempty"`
}

// Document is the full checkpoint as persisted to disk, shared by both
// directions — UploadID is empty (and omitted) for downloads.
type Document struct {
	Bucket     string     `json:"bucket"`
	Key        string     `json:"key"`
	VersionID  string     `json:"version_id,omitempty"`
	PartSize   int64      `json:"part_size"`
	ObjectInfo ObjectInfo `json:"object_info"`
	FileInfo   FileInfo   `json:"file_info"`
	UploadID   string     `json:"upload_id,omitempty"`
	PartsInfo  []PartInfo `json:"parts_info"`
}

// Clone returns a deep copy suitable for handing to an observer callback
// without racing the engine's next mutation.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	cp := *d
	cp.PartsInfo = append([]PartInfo(nil), d.PartsInfo...)
	return &cp
}

// CompletedBytes sums the lengths of completed parts.
func (d *Document) CompletedBytes() int64 {
	var total int64
	for _, p := range d.PartsInfo {
		if p.IsCompleted {
			total += p.RangeEnd - p.RangeStart + 1
		}
	}
	return total
}

// ErrCorrupt is returned by Load when the checkpoint file exists but is not
// valid JSON.
type ErrCorrupt struct {
	Path string
	Err  error
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("checkpoint: corrupt checkpoint at %s: %v", e.Path, e.Err)
}
func (e *ErrCorrupt) Unwrap() error { return e.Err }

// Store loads, validates the shape of, persists, and removes checkpoint
// documents. It does not decide whether a loaded checkpoint is still usable
// against a fresh HEAD/CreateMultipartUpload response — that is the
// engine's job (spec invariants 4-6).
type Store struct {
	fb filebackend.Backend

	mu      sync.Mutex
	writers map[string]*sync.Mutex
}

// NewStore builds a Store backed by fb.
func NewStore(fb filebackend.Backend) *Store {
	return &Store{fb: fb, writers: make(map[string]*sync.Mutex)}
}

func (s *Store) writerLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.writers[path]
	if !ok {
		m = &sync.Mutex{}
		s.writers[path] = m
	}
	return m
}

// Load returns (nil, nil) if path does not exist, (nil, *ErrCorrupt) if it
// exists but cannot be parsed, and (*Document, nil) otherwise.
func (s *Store) Load(path string) (*Document, error) {
	if path == "" {
		return nil, nil
	}
	var doc Document
	found, err := s.fb.ReadJSON(path, &doc)
	if !found {
		return nil, nil
	}
	if err != nil {
		return nil, &ErrCorrupt{Path: path, Err: err}
	}
	return &doc, nil
}

// Persist atomically writes doc to path. Callers must already serialize
// calls per-checkpoint (the engine's single-writer queue); the per-path
// mutex here is a safety net, not the primary serialization mechanism.
func (s *Store) Persist(path string, doc *Document) error {
	if path == "" {
		return nil
	}
	lock := s.writerLock(path)
	lock.Lock()
	defer lock.Unlock()
	return s.fb.WriteJSONAtomic(path, doc)
}

// Remove deletes the checkpoint file. Failures are reported to the caller
// but are defined by the engine contract to never fail the transfer
// (spec §4.2: "best-effort; logs on failure, never fails the transfer").
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	lock := s.writerLock(path)
	lock.Lock()
	defer lock.Unlock()
	return s.fb.Remove(path)
}

// ResolvedPath is the outcome of resolving a caller-supplied checkpoint
// input to a concrete (possibly still-unknown) file path.
type ResolvedPath struct {
	// InMemory is true when the caller passed an in-memory checkpoint
	// rather than a path; no file is read or written.
	InMemory bool

	// Path is the concrete checkpoint file path. Empty when InMemory is
	// true, or when Placeholder is true and the final ID-dependent
	// component is not yet known.
	Path string

	// Placeholder is true when the caller passed a directory (or a path
	// ending in '/' or '\'), meaning the filename must be computed lazily
	// once the object's versionId (download) or uploadId (upload) is known.
	Placeholder bool
	dir         string
	bucket      string
	key         string
}

// ResolvePath implements CheckpointStore.resolvePath (spec §4.2).
//
// input is either an in-memory *Document (memoryCheckpoint != nil, pathOrDir
// ignored), or a string path. isDir tells ResolvePath whether pathOrDir names
// an existing directory (the caller stats it); a trailing '/' or '\' is
// treated as directory mode even if the path does not yet exist.
func ResolvePath(pathOrDir string, isDir bool, memoryCheckpoint *Document, bucket, key string) ResolvedPath {
	if memoryCheckpoint != nil {
		return ResolvedPath{InMemory: true}
	}
	if pathOrDir == "" {
		return ResolvedPath{InMemory: true}
	}

	trailingSlash := strings.HasSuffix(pathOrDir, "/") || strings.HasSuffix(pathOrDir, "\\")
	if isDir || trailingSlash {
		return ResolvedPath{Placeholder: true, dir: strings.TrimRight(pathOrDir, "/\\"), bucket: bucket, key: key}
	}
	return ResolvedPath{Path: pathOrDir}
}

// Finalize computes the concrete path for a Placeholder ResolvedPath once
// the direction-specific identifier (versionId for download, uploadId for
// upload) is known. It is a no-op (returns rp.Path) for non-placeholder
// resolutions.
func (rp ResolvedPath) Finalize(forUpload bool, versionID, uploadID string) string {
	if rp.InMemory || !rp.Placeholder {
		return rp.Path
	}
	id := versionID
	if forUpload {
		id = uploadID
	}
	name := sanitizeComponent(rp.bucket) + "_" + sanitizeComponent(rp.key) + "." + id + ".json"
	if rp.dir == "" {
		return name
	}
	return rp.dir + "/" + name
}

func sanitizeComponent(s string) string {
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "\\", "")
	return s
}
