// Package gpubuf implements GPU-resident Buffer and Texture resources
// (spec.md §4.B) and the SharedBuffer free-list sub-allocator (spec.md
// §4.C). Grounded on vulkan-go-asche's buffers.go and image.go for
// vk.Buffer/vk.Image creation shape, generalized to route every allocation
// through internal/memory instead of one vk.AllocateMemory call per
// resource.
package gpubuf

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/memory"
	"github.com/andewx/terra/internal/vkcore"
)

// Buffer is a GPU buffer resource bound to a memory.Allocation, per spec.md §3.
type Buffer struct {
	device  vk.Device
	mem     *memory.Manager
	Handle  vk.Buffer
	Alloc   memory.Allocation
	Size    vk.DeviceSize
	Usage   vk.BufferUsageFlagBits
}

// NewBuffer creates a vk.Buffer of size bytes with the given usage flags and
// binds it to a fresh sub-allocation from mem with the requested property
// flags (e.g. host-visible for staging, device-local for vertex/index/UBO).
func NewBuffer(device vk.Device, mem *memory.Manager, size vk.DeviceSize, usage vk.BufferUsageFlagBits, properties vk.MemoryPropertyFlagBits) (*Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("gpubuf: zero-size buffer requested")
	}

	var handle vk.Buffer
	ret := vk.CreateBuffer(device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &handle)
	if err := vkcore.NewError(ret); err != nil {
		return nil, fmt.Errorf("gpubuf: create buffer: %w", err)
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, handle, &reqs)
	reqs.Deref()

	alloc, err := mem.Allocate(reqs.Size, reqs.Alignment, reqs.MemoryTypeBits, properties)
	if err != nil {
		vk.DestroyBuffer(device, handle, nil)
		return nil, err
	}

	blockMem, ok := mem.Block(alloc)
	if !ok {
		vk.DestroyBuffer(device, handle, nil)
		return nil, fmt.Errorf("gpubuf: resolved allocation has no backing block")
	}
	if err := vkcore.NewError(vk.BindBufferMemory(device, handle, blockMem, alloc.Offset)); err != nil {
		vk.DestroyBuffer(device, handle, nil)
		mem.Free(alloc)
		return nil, fmt.Errorf("gpubuf: bind buffer memory: %w", err)
	}

	return &Buffer{device: device, mem: mem, Handle: handle, Alloc: alloc, Size: size, Usage: usage}, nil
}

// MappedPointer returns the host-visible pointer backing b, or nil if the
// buffer's backing memory is not host-visible.
func (b *Buffer) MappedPointer() []byte {
	ptr := b.mem.MappedPointer(b.Alloc)
	if ptr == nil {
		return nil
	}
	return unsafeBytes(ptr, int(b.Size))
}

// Destroy releases the Vulkan buffer handle and its memory sub-allocation.
func (b *Buffer) Destroy() {
	vk.DestroyBuffer(b.device, b.Handle, nil)
	b.mem.Free(b.Alloc)
}
