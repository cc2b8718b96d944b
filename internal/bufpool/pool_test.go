package bufpool

import "testing"

func TestGetReturnsChunkSizeBuffer(t *testing.T) {
	buf := Get()
	if len(buf) != ChunkSize {
		t.Fatalf("len(buf) = %d, want %d", len(buf), ChunkSize)
	}
	Put(buf)
}

func TestPutRejectsWrongCapacity(t *testing.T) {
	undersized := make([]byte, ChunkSize/2)
	Put(undersized) // must not panic, and must not be handed back by Get

	for i := 0; i < 8; i++ {
		if buf := Get(); len(buf) != ChunkSize {
			t.Fatalf("Get returned a %d-byte buffer after Put of a mismatched size", len(buf))
		} else {
			Put(buf)
		}
	}
}

func TestGetAfterPutReusesBackingArray(t *testing.T) {
	first := Get()
	first[0] = 0xAB
	Put(first)

	second := Get()
	defer Put(second)

	if &first[0] != &second[0] {
		t.Skip("pool did not reuse the same backing array this time; sync.Pool reuse is not guaranteed")
	}
	if second[0] != 0xAB {
		t.Fatalf("reused buffer was not the same backing array, got %x", second[0])
	}
}
