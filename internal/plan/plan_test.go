package plan

import "testing"

func TestPlanZeroSizeObject(t *testing.T) {
	tasks, err := Plan(0, 1024, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected exactly one task for a zero-size object, got %d", len(tasks))
	}
	if tasks[0] != (Task{PartNumber: 1, Offset: 0, Length: 0}) {
		t.Fatalf("unexpected zero-size task: %+v", tasks[0])
	}
}

func TestPlanCoversWholeObjectContiguously(t *testing.T) {
	cases := []struct {
		size, partSize int64
	}{
		{10, 3},
		{10 * 1024 * 1024, 1024 * 1024},
		{10 * 1024 * 1024, 7177},
		{1, 1},
		{5, 100},
		{100, 100},
		{101, 100},
	}

	for _, c := range cases {
		tasks, err := Plan(c.size, c.partSize, false)
		if err != nil {
			t.Fatalf("Plan(%d,%d): %v", c.size, c.partSize, err)
		}
		var covered int64
		for i, tk := range tasks {
			if tk.PartNumber != i+1 {
				t.Fatalf("Plan(%d,%d): part numbers not 1-based contiguous at %d: %+v", c.size, c.partSize, i, tk)
			}
			if tk.Offset != covered {
				t.Fatalf("Plan(%d,%d): gap/overlap at part %d: offset %d != expected %d", c.size, c.partSize, tk.PartNumber, tk.Offset, covered)
			}
			if tk.Length <= 0 || tk.Length > c.partSize {
				t.Fatalf("Plan(%d,%d): part %d length %d out of (0,%d]", c.size, c.partSize, tk.PartNumber, tk.Length, c.partSize)
			}
			covered += tk.Length
		}
		if covered != c.size {
			t.Fatalf("Plan(%d,%d): covered %d bytes, want %d", c.size, c.partSize, covered, c.size)
		}
		last := tasks[len(tasks)-1]
		if last.RangeEnd() != c.size-1 {
			t.Fatalf("Plan(%d,%d): last RangeEnd = %d, want %d", c.size, c.partSize, last.RangeEnd(), c.size-1)
		}
	}
}

func TestPlanRejectsInvalidPartSize(t *testing.T) {
	if _, err := Plan(100, 0, false); err == nil {
		t.Fatal("expected error for partSize=0")
	}
}

func TestPlanRejectsUploadPartCountOverflow(t *testing.T) {
	// 10_001 parts of 1 byte each would exceed MaxUploadParts.
	_, err := Plan(MaxUploadParts+1, 1, true)
	if err == nil {
		t.Fatal("expected error for part count exceeding MaxUploadParts")
	}

	// Same size is fine for download (no cap).
	if _, err := Plan(MaxUploadParts+1, 1, false); err != nil {
		t.Fatalf("download plan should not enforce MaxUploadParts: %v", err)
	}
}
