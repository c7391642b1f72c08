package gpubuf

import (
	"fmt"
	"sort"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/memory"
)

// Slot is a live sub-range handed out by a SharedBuffer, per spec.md §4.C.
type Slot struct {
	Offset vk.DeviceSize
	Size   vk.DeviceSize
}

type freeRange struct {
	offset vk.DeviceSize
	size   vk.DeviceSize
}

// SharedBuffer is a single large Buffer sub-allocated into Slots through a
// free-list, used for the vertex/index pools model bundles draw from. When
// no free range fits a request, the backing buffer grows to
// max(current*2, current+requested) and every live slot is preserved (their
// offsets are stable since growth only appends capacity), per spec.md's
// resolved Open Question on growth policy.
type SharedBuffer struct {
	device vk.Device
	mem    *memory.Manager
	usage  vk.BufferUsageFlagBits
	props  vk.MemoryPropertyFlagBits

	buf  *Buffer
	free []freeRange
	tail vk.DeviceSize // capacity not yet ever handed out

	onGrow func(old, new *Buffer, liveBytes vk.DeviceSize)
}

// SetGrowthHandler registers fn to run whenever Alloc triggers a grow. fn is
// responsible for migrating the live [0, liveBytes) content from old to new
// (e.g. by recording a vk.CmdCopyBuffer and keeping old alive in the
// temporary-data arena until that copy's frame completes) before old is
// destroyed. Buffers that are only ever written after allocation (e.g. the
// staging manager's host-visible pool) don't need a handler.
func (s *SharedBuffer) SetGrowthHandler(fn func(old, new *Buffer, liveBytes vk.DeviceSize)) {
	s.onGrow = fn
}

// NewSharedBuffer creates a SharedBuffer with an initial backing Buffer of
// capacity bytes.
func NewSharedBuffer(device vk.Device, mem *memory.Manager, capacity vk.DeviceSize, usage vk.BufferUsageFlagBits, props vk.MemoryPropertyFlagBits) (*SharedBuffer, error) {
	buf, err := NewBuffer(device, mem, capacity, usage, props)
	if err != nil {
		return nil, err
	}
	return &SharedBuffer{device: device, mem: mem, usage: usage, props: props, buf: buf}, nil
}

// Capacity returns the backing buffer's current total size.
func (s *SharedBuffer) Capacity() vk.DeviceSize { return s.buf.Size }

// MappedRange returns the host-visible byte range backing slot, or nil if
// the buffer is not host-visible.
func (s *SharedBuffer) MappedRange(slot Slot) []byte {
	full := s.buf.MappedPointer()
	if full == nil {
		return nil
	}
	return full[slot.Offset : slot.Offset+slot.Size]
}

// Buffer returns the current backing vk.Buffer handle. Callers must re-fetch
// this after any Alloc that triggers growth, since growth replaces the
// handle.
func (s *SharedBuffer) Buffer() vk.Buffer { return s.buf.Handle }

// BackingBuffer returns the current backing *Buffer, e.g. for passing to
// upload.Manager.Enqueue as a copy destination. Like Buffer, callers must
// re-fetch after any Alloc that triggers growth.
func (s *SharedBuffer) BackingBuffer() *Buffer { return s.buf }

// Alloc reserves size bytes aligned to alignment, first trying the
// free-list, then the ungranted tail, then growing the backing buffer.
func (s *SharedBuffer) Alloc(size, alignment vk.DeviceSize) (Slot, error) {
	if size == 0 {
		return Slot{}, fmt.Errorf("gpubuf: zero-size slot requested")
	}

	for i, r := range s.free {
		aligned := alignUp(r.offset, alignment)
		pad := aligned - r.offset
		if aligned+size <= r.offset+r.size {
			remaining := r.offset + r.size - (aligned + size)
			s.free = append(s.free[:i], s.free[i+1:]...)
			if pad > 0 {
				s.free = append(s.free, freeRange{offset: r.offset, size: pad})
			}
			if remaining > 0 {
				s.free = append(s.free, freeRange{offset: aligned + size, size: remaining})
			}
			return Slot{Offset: aligned, Size: size}, nil
		}
	}

	aligned := alignUp(s.tail, alignment)
	pad := aligned - s.tail
	if aligned+size <= s.buf.Size {
		if pad > 0 {
			s.free = append(s.free, freeRange{offset: s.tail, size: pad})
		}
		s.tail = aligned + size
		return Slot{Offset: aligned, Size: size}, nil
	}

	if err := s.grow(aligned + size); err != nil {
		return Slot{}, err
	}
	if pad > 0 {
		s.free = append(s.free, freeRange{offset: s.tail, size: pad})
	}
	s.tail = aligned + size
	return Slot{Offset: aligned, Size: size}, nil
}

// grow replaces the backing buffer with one of at least need bytes (the end
// offset the triggering Alloc requires), following the
// max(current*2, current+requested) policy, where requested is what that
// Alloc adds past the current tail, alignment padding included. If a growth handler is
// registered, it takes ownership of migrating and eventually destroying the
// old buffer (per spec.md §4.C: "copy old contents via an enqueued staging
// copy, return the old buffer to the temporary-data arena of the current
// frame"); otherwise the old buffer is destroyed immediately, which is only
// safe when nothing has been written into it yet (the staging manager's
// host-visible pool: Alloc always precedes the memcpy that fills a slot).
func (s *SharedBuffer) grow(need vk.DeviceSize) error {
	current := s.buf.Size
	target := current * 2
	if grown := current + (need - s.tail); grown > target {
		target = grown
	}
	if target < need {
		target = need
	}

	newBuf, err := NewBuffer(s.device, s.mem, target, s.usage, s.props)
	if err != nil {
		return fmt.Errorf("gpubuf: grow shared buffer: %w", err)
	}

	old := s.buf
	liveBytes := s.tail
	s.buf = newBuf
	if s.onGrow != nil {
		s.onGrow(old, newBuf, liveBytes)
	} else {
		old.Destroy()
	}
	return nil
}

// Release returns slot's range to the free-list, coalescing with adjacent
// free ranges to curb fragmentation.
func (s *SharedBuffer) Release(slot Slot) {
	s.free = append(s.free, freeRange{offset: slot.Offset, size: slot.Size})
	s.coalesce()
}

func (s *SharedBuffer) coalesce() {
	sort.Slice(s.free, func(i, j int) bool { return s.free[i].offset < s.free[j].offset })
	merged := s.free[:0]
	for _, r := range s.free {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.offset+last.size == r.offset {
				last.size += r.size
				continue
			}
		}
		merged = append(merged, r)
	}
	s.free = merged
}

// Destroy releases the backing buffer.
func (s *SharedBuffer) Destroy() {
	s.buf.Destroy()
}

func alignUp(v, alignment vk.DeviceSize) vk.DeviceSize {
	if alignment == 0 {
		return v
	}
	rem := v % alignment
	if rem == 0 {
		return v
	}
	return v + (alignment - rem)
}
