package upload

import "testing"

func TestAddCPUFlushedBySetUsed(t *testing.T) {
	tb := New()
	ran := false
	tb.AddCPU(func() { ran = true })

	tb.SetUsed(0)

	if !ran {
		t.Errorf("CPU cleanup did not run after SetUsed")
	}
	if len(tb.cpu) != 0 {
		t.Errorf("cpu arena not drained, len = %d", len(tb.cpu))
	}
}

func TestAddGPUStampedOnceBySetUsed(t *testing.T) {
	tb := New()
	tb.AddGPU(func() {})

	tb.SetUsed(5)
	tb.SetUsed(6) // entry is already stamped; this call must not restamp it

	if !tb.gpu[0].stamped {
		t.Fatalf("gpu entry not stamped")
	}
	if tb.gpu[0].frame != 5 {
		t.Errorf("gpu entry frame = %d, want 5 (first SetUsed wins)", tb.gpu[0].frame)
	}
}

func TestClearRunsOnlyMatchingFrame(t *testing.T) {
	tb := New()
	var ranA, ranB bool
	tb.AddGPU(func() { ranA = true })
	tb.SetUsed(1)
	tb.AddGPU(func() { ranB = true })
	tb.SetUsed(2)

	tb.Clear(1)

	if !ranA {
		t.Errorf("entry stamped frame 1 did not run on Clear(1)")
	}
	if ranB {
		t.Errorf("entry stamped frame 2 ran on Clear(1)")
	}
	if len(tb.gpu) != 1 {
		t.Fatalf("gpu arena len = %d, want 1 (frame-2 entry retained)", len(tb.gpu))
	}
	if tb.gpu[0].frame != 2 {
		t.Errorf("remaining entry frame = %d, want 2", tb.gpu[0].frame)
	}
}

func TestClearIgnoresUnstampedEntries(t *testing.T) {
	tb := New()
	ran := false
	tb.AddGPU(func() { ran = true })

	tb.Clear(0)

	if ran {
		t.Errorf("unstamped entry ran on Clear")
	}
	if len(tb.gpu) != 1 {
		t.Errorf("unstamped entry was dropped, len = %d, want 1", len(tb.gpu))
	}
}
