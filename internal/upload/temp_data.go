// Package upload implements the staging and temporary-data coordination of
// spec.md §4.D/§4.E: batching host->device copies and deferring GPU-object
// teardown until the consuming frame's fence has signaled. Grounded on
// runsys-core/vgpu's transfer-then-barrier shape for the copy/ownership
// dance, and on Carmen-Shannon-oxy-go/engine/scene's thread-pool submission
// pattern for the CPU-side memcpy work.
package upload

import "sync"

// gpuEntry is a device-object cleanup deferred until its owning frame slot's
// fence has signaled, per spec.md §4.E.
type gpuEntry struct {
	frame    int
	stamped  bool
	destroy  func()
}

// TemporaryDataBuffer holds two arenas: a CPU arena of owned blobs used only
// during upload preparation (flushed every frame submission) and a GPU
// arena of device-object teardown funcs stamped to a frame index and run
// two frames later, per the bufferCount-depth pipeline.
type TemporaryDataBuffer struct {
	mu  sync.Mutex
	cpu []func()
	gpu []gpuEntry
}

// New creates an empty TemporaryDataBuffer.
func New() *TemporaryDataBuffer {
	return &TemporaryDataBuffer{}
}

// AddCPU registers a cleanup func for a host-side blob (e.g. a staging
// scratch allocation) that only needs to live until the current frame's
// submission completes preparation.
func (t *TemporaryDataBuffer) AddCPU(destroy func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cpu = append(t.cpu, destroy)
}

// AddGPU registers a deferred teardown for a device object that must outlive
// the frame it was produced in, until SetUsed/Clear release it two frames
// later. The entry is unstamped until the next SetUsed call.
func (t *TemporaryDataBuffer) AddGPU(destroy func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gpu = append(t.gpu, gpuEntry{destroy: destroy})
}

// SetUsed stamps every unstamped GPU entry with frameIndex and flushes the
// CPU arena, per the engine's "SetUsed(i) after submitting frame i" contract.
func (t *TemporaryDataBuffer) SetUsed(frameIndex int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.gpu {
		if !t.gpu[i].stamped {
			t.gpu[i].frame = frameIndex
			t.gpu[i].stamped = true
		}
	}
	for _, fn := range t.cpu {
		fn()
	}
	t.cpu = t.cpu[:0]
}

// Clear drops and runs every GPU entry stamped frameIndex, per the engine's
// "Clear((i + bufferCount - 1) % bufferCount) after that slot's fence
// signals" contract -- guaranteeing two-frame survival across the pipeline
// depth.
func (t *TemporaryDataBuffer) Clear(frameIndex int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.gpu[:0]
	for _, e := range t.gpu {
		if e.stamped && e.frame == frameIndex {
			e.destroy()
			continue
		}
		kept = append(kept, e)
	}
	t.gpu = kept
}
