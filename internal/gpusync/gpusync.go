// Package gpusync implements the command queue/buffer pool and the
// fence/semaphore frame-slot rings of spec.md §4.K. Grounded on
// vulkan-go-asche's pools.go's CorePool (command pool creation with
// the reset-command-buffer flag) and queue.go's family-indexed queue
// bookkeeping, with one pool per queue family shared by every frame slot;
// each slot's command buffers are reset individually.
package gpusync

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/vkcore"
)

// commandPoolResetFlag is VK_COMMAND_POOL_CREATE_RESET_COMMAND_BUFFER_BIT.
const commandPoolResetFlag = 0x00000002

// CommandPool wraps one vk.CommandPool created against a queue family, able
// to allocate and individually reset primary command buffers.
type CommandPool struct {
	device vk.Device
	Handle vk.CommandPool
}

// NewCommandPool creates a CommandPool for familyIndex with the
// reset-command-buffer flag set, so individual buffers allocated from it
// can be reset without resetting the whole pool.
func NewCommandPool(device vk.Device, familyIndex uint32) (*CommandPool, error) {
	var handle vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: familyIndex,
		Flags:            vk.CommandPoolCreateFlags(commandPoolResetFlag),
	}, nil, &handle)
	if err := vkcore.NewError(ret); err != nil {
		return nil, fmt.Errorf("gpusync: create command pool: %w", err)
	}
	return &CommandPool{device: device, Handle: handle}, nil
}

// Allocate allocates count primary command buffers from the pool.
func (p *CommandPool) Allocate(count uint32) ([]vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(p.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.Handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}, buffers)
	if err := vkcore.NewError(ret); err != nil {
		return nil, fmt.Errorf("gpusync: allocate command buffers: %w", err)
	}
	return buffers, nil
}

// Destroy destroys the pool and every buffer allocated from it.
func (p *CommandPool) Destroy() {
	vk.DestroyCommandPool(p.device, p.Handle, nil)
}

// FrameSlot holds the synchronization and command-recording state for one
// in-flight frame, per spec.md §3's FrameSlot entity. At most one frame per
// slot is ever in flight, enforced by waiting on GraphicsFence before reuse.
type FrameSlot struct {
	GraphicsFence          vk.Fence
	ImageAvailableSemaphore vk.Semaphore
	RenderFinishedSemaphore vk.Semaphore
	TransferDoneSemaphore   vk.Semaphore
	GraphicsCmd             vk.CommandBuffer
	TransferCmd             vk.CommandBuffer
}

// NewFrameSlots creates count FrameSlots, each with its own fence
// (signaled, per spec.md §5's "fences are created SIGNALED on the first
// use" deadlock-avoidance invariant) and three semaphores, and one
// graphics + one transfer command buffer drawn from the given pools.
func NewFrameSlots(device vk.Device, count uint32, graphicsPool, transferPool *CommandPool) ([]FrameSlot, error) {
	graphicsCmds, err := graphicsPool.Allocate(count)
	if err != nil {
		return nil, err
	}
	transferCmds, err := transferPool.Allocate(count)
	if err != nil {
		return nil, err
	}

	slots := make([]FrameSlot, count)
	for i := uint32(0); i < count; i++ {
		var fence vk.Fence
		ret := vk.CreateFence(device, &vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}, nil, &fence)
		if err := vkcore.NewError(ret); err != nil {
			return nil, fmt.Errorf("gpusync: create fence: %w", err)
		}

		sems := make([]vk.Semaphore, 3)
		for s := range sems {
			ret := vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &sems[s])
			if err := vkcore.NewError(ret); err != nil {
				return nil, fmt.Errorf("gpusync: create semaphore: %w", err)
			}
		}

		slots[i] = FrameSlot{
			GraphicsFence:           fence,
			ImageAvailableSemaphore: sems[0],
			RenderFinishedSemaphore: sems[1],
			TransferDoneSemaphore:   sems[2],
			GraphicsCmd:             graphicsCmds[i],
			TransferCmd:             transferCmds[i],
		}
	}
	return slots, nil
}

// Destroy destroys a slot's fence and semaphores. Its command buffers are
// owned by the pool they were allocated from and freed with that pool.
func (s *FrameSlot) Destroy(device vk.Device) {
	vk.DestroyFence(device, s.GraphicsFence, nil)
	vk.DestroySemaphore(device, s.ImageAvailableSemaphore, nil)
	vk.DestroySemaphore(device, s.RenderFinishedSemaphore, nil)
	vk.DestroySemaphore(device, s.TransferDoneSemaphore, nil)
}

// WaitAndReset blocks until the slot's fence signals, then resets it.
// Callers must only call this after the slot has been submitted at least
// once (its fence is created already-signaled so the first call returns
// immediately).
func WaitAndReset(device vk.Device, fence vk.Fence) error {
	if err := vkcore.NewError(vk.WaitForFences(device, 1, []vk.Fence{fence}, vk.True, ^uint64(0))); err != nil {
		return fmt.Errorf("gpusync: wait for fence: %w", err)
	}
	if err := vkcore.NewError(vk.ResetFences(device, 1, []vk.Fence{fence})); err != nil {
		return fmt.Errorf("gpusync: reset fence: %w", err)
	}
	return nil
}

// SubmitGraphics submits cmd on queue, waiting on waitSemaphores at
// waitStages and signaling signalSemaphores, fencing on fence.
func SubmitGraphics(queue vk.Queue, cmd vk.CommandBuffer, waitSemaphores []vk.Semaphore, waitStages []vk.PipelineStageFlags, signalSemaphores []vk.Semaphore, fence vk.Fence) error {
	info := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waitSemaphores)),
		PWaitSemaphores:      waitSemaphores,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd},
		SignalSemaphoreCount: uint32(len(signalSemaphores)),
		PSignalSemaphores:    signalSemaphores,
	}
	if err := vkcore.NewError(vk.QueueSubmit(queue, 1, []vk.SubmitInfo{info}, fence)); err != nil {
		return fmt.Errorf("gpusync: submit: %w", err)
	}
	return nil
}
