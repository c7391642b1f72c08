// Package memory implements the GPU sub-allocator (spec.md §4.A): large
// blocks of device/host-visible memory, bump-allocated per
// {memory-type-index} pool. Grounded on vulkan-go-asche/extensions.go's
// FindRequiredMemoryType for type resolution and on
// runsys-core/vgpu/memory.go's Memory/MemBuff split between host staging
// and device-local allocation for the block/allocation bookkeeping shape.
package memory

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/vkcore"
)

// Default block sizes, per spec.md §4.A. Either may be overridden per
// allocation request when the requested size exceeds it.
const (
	DefaultGPUBlock = 2 * 1024 * 1024
	DefaultCPUBlock = 200 * 1024
)

var (
	errUnsupportedType = fmt.Errorf("no memory type supports the requested mask/property combination")
	errOutOfMemory     = fmt.Errorf("device memory allocation rejected")
)

// Allocation is a live sub-range of one MemoryBlock, per spec.md §3.
type Allocation struct {
	BlockID   int
	Offset    vk.DeviceSize
	Size      vk.DeviceSize
	Alignment vk.DeviceSize
	typeIndex uint32
}

// MemoryBlock is one GPU allocation bound to a memory-type index, optionally
// host-mapped, per spec.md §3.
type MemoryBlock struct {
	id          int
	typeIndex   uint32
	handle      vk.DeviceMemory
	size        vk.DeviceSize
	tail        vk.DeviceSize // bump-allocation watermark
	liveAllocs  int
	hostVisible bool
	mapped      unsafe.Pointer
}

// MappedPointer returns the block's persistent host mapping, or nil if the
// block is not host-visible.
func (b *MemoryBlock) MappedPointer() unsafe.Pointer { return b.mapped }

type pool struct {
	typeIndex uint32
	blocks    []*MemoryBlock
}

// Manager is the MemoryManager of spec.md §4.A. It owns every MemoryBlock
// exclusively; Buffers/Textures hold only a weak (index) link back to their
// block, per the ownership model in spec.md §3.
type Manager struct {
	device vk.Device
	props  vk.PhysicalDeviceMemoryProperties

	mu       sync.Mutex
	pools    map[uint32]*pool // keyed by memory-type index
	nextID   int
	gpuBlock vk.DeviceSize
	cpuBlock vk.DeviceSize
}

// NewManager constructs a Manager bound to a logical device and its memory
// properties. Block sizes default to DefaultGPUBlock/DefaultCPUBlock.
func NewManager(device vk.Device, props vk.PhysicalDeviceMemoryProperties) *Manager {
	return &Manager{
		device:   device,
		props:    props,
		pools:    make(map[uint32]*pool),
		gpuBlock: DefaultGPUBlock,
		cpuBlock: DefaultCPUBlock,
	}
}

// Allocate resolves a memory-type index from typeMask/propertyFlags and
// returns a sub-allocation of the requested size/alignment, per spec.md
// §4.A's four-step algorithm.
func (m *Manager) Allocate(size, alignment vk.DeviceSize, typeMask uint32, propertyFlags vk.MemoryPropertyFlagBits) (Allocation, error) {
	if size == 0 {
		return Allocation{}, fmt.Errorf("memory: zero-size allocation requested")
	}

	typeIndex, ok := vkcore.FindMemoryTypeIndex(m.props, typeMask, propertyFlags)
	if !ok {
		return Allocation{}, fmt.Errorf("memory: %w", errUnsupportedType)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[typeIndex]
	if !ok {
		p = &pool{typeIndex: typeIndex}
		m.pools[typeIndex] = p
	}

	hostVisible := propertyFlags&vk.MemoryPropertyHostVisibleBit != 0

	for _, blk := range p.blocks {
		offset := alignUp(blk.tail, alignment)
		if offset+size <= blk.size {
			blk.tail = offset + size
			blk.liveAllocs++
			return Allocation{BlockID: blk.id, Offset: offset, Size: size, Alignment: alignment, typeIndex: typeIndex}, nil
		}
	}

	defaultSize := m.gpuBlock
	if hostVisible {
		defaultSize = m.cpuBlock
	}
	blockSize := size + alignment
	if blockSize < defaultSize {
		blockSize = defaultSize
	}

	blk, err := m.newBlock(typeIndex, blockSize, hostVisible)
	if err != nil {
		return Allocation{}, err
	}
	p.blocks = append(p.blocks, blk)

	offset := alignUp(blk.tail, alignment)
	blk.tail = offset + size
	blk.liveAllocs++
	return Allocation{BlockID: blk.id, Offset: offset, Size: size, Alignment: alignment, typeIndex: typeIndex}, nil
}

func (m *Manager) newBlock(typeIndex uint32, size vk.DeviceSize, hostVisible bool) (*MemoryBlock, error) {
	var handle vk.DeviceMemory
	ret := vk.AllocateMemory(m.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  size,
		MemoryTypeIndex: typeIndex,
	}, nil, &handle)
	if err := vkcore.NewError(ret); err != nil {
		return nil, fmt.Errorf("memory: %w: %v", errOutOfMemory, err)
	}

	m.nextID++
	blk := &MemoryBlock{
		id:          m.nextID,
		typeIndex:   typeIndex,
		handle:      handle,
		size:        size,
		hostVisible: hostVisible,
	}

	if hostVisible {
		var mapped unsafe.Pointer
		ret := vk.MapMemory(m.device, handle, 0, size, 0, &mapped)
		if err := vkcore.NewError(ret); err != nil {
			vk.FreeMemory(m.device, handle, nil)
			return nil, fmt.Errorf("memory: map block: %w", err)
		}
		blk.mapped = mapped
	}
	return blk, nil
}

// Free returns a's range to its block's free accounting. The simple
// bump-allocator variant described in spec.md §4.A does not coalesce;
// blocks are only destroyed at Manager teardown.
func (m *Manager) Free(a Allocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[a.typeIndex]
	if !ok {
		return
	}
	for _, blk := range p.blocks {
		if blk.id == a.BlockID {
			if blk.liveAllocs > 0 {
				blk.liveAllocs--
			}
			return
		}
	}
}

// Block resolves an Allocation's backing MemoryBlock handle, for binding.
func (m *Manager) Block(a Allocation) (vk.DeviceMemory, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[a.typeIndex]
	if !ok {
		return nil, false
	}
	for _, blk := range p.blocks {
		if blk.id == a.BlockID {
			return blk.handle, true
		}
	}
	return nil, false
}

// MappedPointer returns the host pointer for a, offset-adjusted, or nil if
// the backing block is not host-visible.
func (m *Manager) MappedPointer(a Allocation) unsafe.Pointer {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[a.typeIndex]
	if !ok {
		return nil
	}
	for _, blk := range p.blocks {
		if blk.id == a.BlockID {
			if blk.mapped == nil {
				return nil
			}
			return unsafe.Add(blk.mapped, a.Offset)
		}
	}
	return nil
}

// Destroy frees every block in every pool. Only safe once every Buffer and
// Texture created against this Manager has been destroyed.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pools {
		for _, blk := range p.blocks {
			if blk.mapped != nil {
				vk.UnmapMemory(m.device, blk.handle)
			}
			vk.FreeMemory(m.device, blk.handle, nil)
		}
	}
	m.pools = make(map[uint32]*pool)
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
