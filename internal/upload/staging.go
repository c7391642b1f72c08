package upload

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/gpubuf"
	"github.com/andewx/terra/internal/memory"
	"github.com/andewx/terra/internal/vkcore"
	"github.com/andewx/terra/internal/workpool"
)

const defaultStagingCapacity = 4 * 1024 * 1024

type pendingBufferCopy struct {
	slot      gpubuf.Slot
	dst       vk.Buffer
	dstOffset vk.DeviceSize
	size      vk.DeviceSize
}

type pendingTextureCopy struct {
	slot   gpubuf.Slot
	dst    vk.Image
	width  uint32
	height uint32
}

// Manager is the StagingBufferManager of spec.md §4.D. It owns one
// host-visible SharedBuffer that every pending copy sub-allocates from, and
// offloads the CPU-side memcpy into that sub-range to the thread pool.
type Manager struct {
	device vk.Device
	pool   workpool.Pool
	host   *gpubuf.SharedBuffer

	bufferCopies  []pendingBufferCopy
	textureCopies []pendingTextureCopy
	jobErr        chan error
	jobCount      int
}

// NewManager creates a StagingBufferManager with a host-visible SharedBuffer
// of the given initial capacity.
func NewManager(device vk.Device, mem *memory.Manager, pool workpool.Pool, capacity vk.DeviceSize) (*Manager, error) {
	if capacity == 0 {
		capacity = defaultStagingCapacity
	}
	host, err := gpubuf.NewSharedBuffer(device, mem, capacity,
		vk.BufferUsageFlagBits(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, fmt.Errorf("upload: create staging buffer: %w", err)
	}
	return &Manager{device: device, pool: pool, host: host}, nil
}

// Enqueue records a host->buffer copy: src is copied into a staging
// sub-range on a thread-pool job, and a CopyBuffer is recorded against
// dstOffset on the next Flush.
func (m *Manager) Enqueue(src []byte, dst *gpubuf.Buffer, dstOffset vk.DeviceSize) error {
	if len(src) == 0 {
		return nil
	}
	slot, err := m.host.Alloc(vk.DeviceSize(len(src)), 4)
	if err != nil {
		return fmt.Errorf("upload: enqueue buffer copy: %w", err)
	}
	m.submitCopy(src, slot)
	m.bufferCopies = append(m.bufferCopies, pendingBufferCopy{
		slot: slot, dst: dst.Handle, dstOffset: dstOffset, size: vk.DeviceSize(len(src)),
	})
	return nil
}

// EnqueueTexture records a host->image copy targeting dst's full extent.
func (m *Manager) EnqueueTexture(src []byte, dst *gpubuf.Texture) error {
	if len(src) == 0 {
		return nil
	}
	slot, err := m.host.Alloc(vk.DeviceSize(len(src)), 4)
	if err != nil {
		return fmt.Errorf("upload: enqueue texture copy: %w", err)
	}
	m.submitCopy(src, slot)
	m.textureCopies = append(m.textureCopies, pendingTextureCopy{
		slot: slot, dst: dst.Handle, width: dst.Width, height: dst.Height,
	})
	return nil
}

func (m *Manager) submitCopy(src []byte, slot gpubuf.Slot) {
	m.jobCount++
	m.pool.Submit(func() error {
		dst := m.host.MappedRange(slot)
		if dst == nil {
			return fmt.Errorf("upload: staging buffer is not host-mapped")
		}
		copy(dst, src)
		return nil
	})
}

// HasPending reports whether Flush has any buffer or texture copy to
// record, letting the caller decide whether to submit the transfer command
// buffer and wait on its done-semaphore at all.
func (m *Manager) HasPending() bool {
	return len(m.bufferCopies) > 0 || len(m.textureCopies) > 0
}

// Flush waits on every outstanding memcpy job, then records the device-side
// copies on transferCmd and, if transfer and graphics queue families
// differ, emits the matching release/acquire barrier pair on transferCmd
// and graphicsCmd. Staging sub-ranges are handed to temp for release two
// frames later. A zero-pending Flush is a no-op returning successfully, per
// spec.md §4.D's edge-case policy.
func (m *Manager) Flush(transferCmd, graphicsCmd vk.CommandBuffer, families vkcore.QueueFamilies, temp *TemporaryDataBuffer, frameIndex int) error {
	if len(m.bufferCopies) == 0 && len(m.textureCopies) == 0 {
		return nil
	}
	if err := m.pool.Wait(); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	crossQueue := families.Transfer != families.Graphics

	for _, c := range m.bufferCopies {
		vk.CmdCopyBuffer(transferCmd, m.host.Buffer(), c.dst, 1, []vk.BufferCopy{{
			SrcOffset: c.slot.Offset, DstOffset: c.dstOffset, Size: c.size,
		}})
		if crossQueue {
			emitBufferBarrier(transferCmd, c.dst, families.Transfer, families.Graphics,
				vk.AccessFlags(vk.AccessTransferWriteBit), 0,
				vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit))
			emitBufferBarrier(graphicsCmd, c.dst, families.Transfer, families.Graphics,
				0, vk.AccessFlags(vk.AccessShaderReadBit|vk.AccessVertexAttributeReadBit),
				vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageVertexInputBit|vk.PipelineStageFragmentShaderBit))
		}
	}

	for _, c := range m.textureCopies {
		transitionImage(transferCmd, c.dst, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
			0, vk.AccessFlags(vk.AccessTransferWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

		vk.CmdCopyBufferToImage(transferCmd, m.host.Buffer(), c.dst, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
			BufferOffset: c.slot.Offset,
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: c.width, Height: c.height, Depth: 1},
		}})

		transitionImage(transferCmd, c.dst, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
			vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit))

		if crossQueue {
			emitImageBarrier(transferCmd, c.dst, families.Transfer, families.Graphics,
				vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
				vk.AccessFlags(vk.AccessTransferWriteBit), 0,
				vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit))
			emitImageBarrier(graphicsCmd, c.dst, families.Transfer, families.Graphics,
				vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
				0, vk.AccessFlags(vk.AccessShaderReadBit),
				vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit))
		}
	}

	host := m.host
	slots := make([]gpubuf.Slot, 0, len(m.bufferCopies)+len(m.textureCopies))
	for _, c := range m.bufferCopies {
		slots = append(slots, c.slot)
	}
	for _, c := range m.textureCopies {
		slots = append(slots, c.slot)
	}
	temp.AddGPU(func() {
		for _, s := range slots {
			host.Release(s)
		}
	})

	m.bufferCopies = m.bufferCopies[:0]
	m.textureCopies = m.textureCopies[:0]
	return nil
}

// Destroy releases the staging SharedBuffer.
func (m *Manager) Destroy() {
	m.host.Destroy()
}

func emitBufferBarrier(cmd vk.CommandBuffer, buf vk.Buffer, srcFamily, dstFamily uint32, srcAccess, dstAccess vk.AccessFlags, srcStage, dstStage vk.PipelineStageFlags) {
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil,
		1, []vk.BufferMemoryBarrier{{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       srcAccess,
			DstAccessMask:       dstAccess,
			SrcQueueFamilyIndex: srcFamily,
			DstQueueFamilyIndex: dstFamily,
			Buffer:              buf,
			Size:                vk.DeviceSize(vk.WholeSize),
		}}, 0, nil)
}

func transitionImage(cmd vk.CommandBuffer, img vk.Image, oldLayout, newLayout vk.ImageLayout, srcAccess, dstAccess vk.AccessFlags, srcStage, dstStage vk.PipelineStageFlags) {
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil,
		1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       srcAccess,
			DstAccessMask:       dstAccess,
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
}

func emitImageBarrier(cmd vk.CommandBuffer, img vk.Image, srcFamily, dstFamily uint32, oldLayout, newLayout vk.ImageLayout, srcAccess, dstAccess vk.AccessFlags, srcStage, dstStage vk.PipelineStageFlags) {
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil,
		1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       srcAccess,
			DstAccessMask:       dstAccess,
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: srcFamily,
			DstQueueFamilyIndex: dstFamily,
			Image:               img,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
}
