// Package crc provides streaming CRC64 (ECMA-182) computation and the pure
// combination function used to derive a whole-object digest from the
// per-part digests recorded in a checkpoint.
package crc

import (
	"hash"
	"hash/crc64"
	"io"
	"strconv"
)

// ecmaTable is the polynomial table for CRC-64/ECMA-182, the same checksum
// the server reports in the x-tos-hash-crc64ecma header.
var ecmaTable = crc64.MakeTable(crc64.ECMA)

// Stream wraps a byte source with a running CRC64 checksum. It implements
// io.Reader (NewReader, which both the download and upload drivers use to
// wrap part bodies) and io.Writer (NewWriter), so a single type serves
// either side of a copy.
type Stream struct {
	checker hash.Hash64
	reader  io.Reader
	writer  io.Writer
}

// NewReader wraps r so that every byte read through the returned Stream is
// folded into the running digest.
func NewReader(r io.Reader) *Stream {
	checker := crc64.New(ecmaTable)
	return &Stream{
		checker: checker,
		reader:  io.TeeReader(r, checker),
	}
}

// NewWriter wraps w so that every byte written through the returned Stream is
// folded into the running digest before being forwarded to w.
func NewWriter(w io.Writer) *Stream {
	checker := crc64.New(ecmaTable)
	return &Stream{
		checker: checker,
		writer:  io.MultiWriter(w, checker),
	}
}

func (s *Stream) Read(p []byte) (int, error) {
	if s.reader == nil {
		return 0, io.EOF
	}
	return s.reader.Read(p)
}

func (s *Stream) Write(p []byte) (int, error) {
	if s.writer == nil {
		return 0, io.ErrClosedPipe
	}
	return s.writer.Write(p)
}

// Digest returns the current CRC64 value formatted as an unsigned decimal
// string, matching the server's textual encoding of x-tos-hash-crc64ecma.
func (s *Stream) Digest() string {
	return strconv.FormatUint(s.checker.Sum64(), 10)
}

// DigestBytes returns the raw 64-bit checksum.
func (s *Stream) DigestBytes() uint64 {
	return s.checker.Sum64()
}
