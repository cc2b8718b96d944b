// Package bufpool provides reusable byte buffers for the chunked copy loops
// in the download/upload drivers, reducing GC pressure from concurrent
// workers each allocating a fresh buffer per part.
package bufpool

import "sync"

// ChunkSize is the size of buffers handed out by Get — one read/write
// chunk's worth of streamed bytes.
const ChunkSize = 256 * 1024

var pool = &sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ChunkSize)
		return &buf
	},
}

// Get returns a ChunkSize-length buffer, possibly reused from a prior Put.
func Get() []byte {
	return *(pool.Get().(*[]byte))
}

// Put returns buf to the pool for reuse. buf must have been obtained from
// Get and not retained afterward.
func Put(buf []byte) {
	if cap(buf) != ChunkSize {
		return
	}
	buf = buf[:ChunkSize]
	pool.Put(&buf)
}
