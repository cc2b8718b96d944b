package crc

import (
	"bytes"
	"hash/crc64"
	"io"
	"strconv"
	"testing"
)

func digestOf(b []byte) string {
	h := crc64.New(ecmaTable)
	h.Write(b)
	return strconv.FormatUint(h.Sum64(), 10)
}

func TestStreamReaderMatchesStdlib(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog"), 137)
	s := NewReader(bytes.NewReader(data))
	if _, err := io.Copy(io.Discard, s); err != nil {
		t.Fatalf("copy: %v", err)
	}
	want := digestOf(data)
	if got := s.Digest(); got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
}

func TestStreamWriterMatchesStdlib(t *testing.T) {
	data := []byte("some part body bytes")
	var buf bytes.Buffer
	s := NewWriter(&buf)
	if _, err := s.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != string(data) {
		t.Fatalf("writer did not forward bytes")
	}
	if got, want := s.Digest(), digestOf(data); got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
}

func TestCombineMatchesWholeStreamDigest(t *testing.T) {
	a := []byte("first part of the object, arbitrary length")
	b := []byte("second part, different length entirely here")

	wantWhole := digestOf(append(append([]byte{}, a...), b...))

	crc1 := digestOf(a)
	crc2 := digestOf(b)

	got, err := Combine(crc1, crc2, int64(len(b)))
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	if got != wantWhole {
		t.Fatalf("combine = %s, want %s", got, wantWhole)
	}
}

func TestCombineAssociativity(t *testing.T) {
	a := []byte("aaaaaaaaaaaaaaaaaaaa")
	b := []byte("bbbbbbbbbbbbbbbbbbbbbbbbb")
	c := []byte("ccccccccccccccccccccccccccccccc")

	ca, cb, cc := digestOf(a), digestOf(b), digestOf(c)

	// combine(combine(a,b,|b|), c, |c|)
	ab, err := Combine(ca, cb, int64(len(b)))
	if err != nil {
		t.Fatal(err)
	}
	left, err := Combine(ab, cc, int64(len(c)))
	if err != nil {
		t.Fatal(err)
	}

	// combine(a, combine(b,c,|c|), |b|+|c|)
	bc, err := Combine(cb, cc, int64(len(c)))
	if err != nil {
		t.Fatal(err)
	}
	right, err := Combine(ca, bc, int64(len(b)+len(c)))
	if err != nil {
		t.Fatal(err)
	}

	if left != right {
		t.Fatalf("combine not associative: %s != %s", left, right)
	}
}

func TestCombineAllEmptyObject(t *testing.T) {
	got, err := CombineAll(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "0" {
		t.Fatalf("CombineAll(nil) = %s, want 0", got)
	}
}

func TestCombineAllOrdersParts(t *testing.T) {
	a := []byte("alpha-part-bytes")
	b := []byte("beta-part-bytes-longer")
	want := digestOf(append(append([]byte{}, a...), b...))

	got, err := CombineAll([]Part{
		{Crc64: digestOf(a), Length: int64(len(a))},
		{Crc64: digestOf(b), Length: int64(len(b))},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("CombineAll = %s, want %s", got, want)
	}
}
