// Package plan computes the deterministic, ordered list of byte-ranged part
// tasks for a given object size and part size — PartPlanner in the transfer
// engine design.
package plan

import "fmt"

// Task is a single contiguous byte range to transfer as one part.
type Task struct {
	PartNumber int   // 1-based
	Offset     int64 // inclusive start
	Length     int64 // 1..PartSize, except the single zero-size-object task
}

// DefaultPartSize is used whenever a caller does not specify one.
const DefaultPartSize int64 = 20 * 1024 * 1024

// MaxUploadParts is the hard ceiling on part count for upload plans (the
// server-side multipart upload limit).
const MaxUploadParts = 10_000

// Plan produces the ordered task list covering [0, objectSize).
//
// For objectSize == 0 it returns a single {PartNumber:1, Offset:0, Length:0}
// task — upload still needs one task to carry a (possibly empty) body.
//
// forUpload, when true, rejects plans whose part count would exceed
// MaxUploadParts.
func Plan(objectSize, partSize int64, forUpload bool) ([]Task, error) {
	if partSize < 1 {
		return nil, fmt.Errorf("plan: partSize must be >= 1, got %d", partSize)
	}
	if objectSize < 0 {
		return nil, fmt.Errorf("plan: objectSize must be >= 0, got %d", objectSize)
	}

	if objectSize == 0 {
		return []Task{{PartNumber: 1, Offset: 0, Length: 0}}, nil
	}

	count := (objectSize + partSize - 1) / partSize
	if forUpload && count > MaxUploadParts {
		return nil, fmt.Errorf("plan: object of size %d with partSize %d would need %d parts, exceeding the %d part limit", objectSize, partSize, count, MaxUploadParts)
	}

	tasks := make([]Task, 0, count)
	for i := int64(0); i < count; i++ {
		offset := i * partSize
		length := partSize
		if remaining := objectSize - offset; remaining < length {
			length = remaining
		}
		tasks = append(tasks, Task{
			PartNumber: int(i) + 1,
			Offset:     offset,
			Length:     length,
		})
	}
	return tasks, nil
}

// RangeEnd returns the inclusive end byte offset of t (RangeStart + Length - 1).
// For a zero-length task it returns Offset - 1 (an empty range).
func (t Task) RangeEnd() int64 {
	return t.Offset + t.Length - 1
}
