// Package engine implements the RenderEngine frame loop of spec.md §4.M:
// per-frame-slot fence wait, temporary-data reclamation, staging flush,
// render-pass recording, and submission with the correct wait/signal
// semaphores. Grounded on vulkan-go-asche's queue.go and
// instance.go's per-frame submit sequence, generalized from one fixed
// command buffer to the transfer+graphics pair spec.md's frame slot needs.
package engine

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/display"
	"github.com/andewx/terra/internal/gpusync"
	"github.com/andewx/terra/internal/model"
	"github.com/andewx/terra/internal/swapchain"
	"github.com/andewx/terra/internal/upload"
	"github.com/andewx/terra/internal/vkcore"
)

// Engine drives the per-frame-slot RenderFrame sequence of spec.md §4.M.
type Engine struct {
	device      *vkcore.Device
	swapchain   *swapchain.Swapchain
	slots       []gpusync.FrameSlot
	bufferCount int

	staging *upload.Manager
	temp    *upload.TemporaryDataBuffer
	models  *model.ModelManager

	clearColor [4]float32
}

// Config collects Engine's dependencies, one instance per terra.Renderer.
type Config struct {
	Device      *vkcore.Device
	Swapchain   *swapchain.Swapchain
	Slots       []gpusync.FrameSlot
	Staging     *upload.Manager
	Temp        *upload.TemporaryDataBuffer
	Models      *model.ModelManager
}

// New creates an Engine over the given frame slots.
func New(cfg Config) *Engine {
	return &Engine{
		device:      cfg.Device,
		swapchain:   cfg.Swapchain,
		slots:       cfg.Slots,
		bufferCount: len(cfg.Slots),
		staging:     cfg.Staging,
		temp:        cfg.Temp,
		models:      cfg.Models,
		clearColor:  [4]float32{0, 0, 0, 1},
	}
}

// SetBackgroundColor updates the render pass clear color for subsequent frames.
func (e *Engine) SetBackgroundColor(c [4]float32) { e.clearColor = c }

// RenderFrame runs the 10-step sequence of spec.md §4.M against slot
// frameIndex, recording into framebuffer imageIndex and waiting on
// imageWaitSemaphore before the graphics submission. descSet is the
// frame's camera/material descriptor set. Returns the render-finished
// semaphore the caller presents against.
func (e *Engine) RenderFrame(frameIndex int, imageIndex uint32, imageWaitSemaphore vk.Semaphore, descSet vk.DescriptorSet) (vk.Semaphore, error) {
	slot := &e.slots[frameIndex]

	// 1. Wait on slot i's fence; reset it.
	if err := gpusync.WaitAndReset(e.device.Logical, slot.GraphicsFence); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	// 2. Free data from two frames ago.
	priorSlot := (frameIndex + e.bufferCount - 1) % e.bufferCount
	e.temp.Clear(priorSlot)

	// 3. Reset slot i's command buffers.
	if err := vkcore.NewError(vk.ResetCommandBuffer(slot.TransferCmd, 0)); err != nil {
		return nil, fmt.Errorf("engine: reset transfer command buffer: %w", err)
	}
	if err := vkcore.NewError(vk.ResetCommandBuffer(slot.GraphicsCmd, 0)); err != nil {
		return nil, fmt.Errorf("engine: reset graphics command buffer: %w", err)
	}

	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vkcore.NewError(vk.BeginCommandBuffer(slot.TransferCmd, beginInfo)); err != nil {
		return nil, fmt.Errorf("engine: begin transfer command buffer: %w", err)
	}
	if err := vkcore.NewError(vk.BeginCommandBuffer(slot.GraphicsCmd, beginInfo)); err != nil {
		return nil, fmt.Errorf("engine: begin graphics command buffer: %w", err)
	}

	// 4. Flush pending staging copies.
	hadPending := e.staging.HasPending()
	if err := e.staging.Flush(slot.TransferCmd, slot.GraphicsCmd, e.device.Families, e.temp, frameIndex); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	waits := []vk.Semaphore{imageWaitSemaphore}
	stages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	if hadPending {
		if err := vkcore.NewError(vk.EndCommandBuffer(slot.TransferCmd)); err != nil {
			return nil, fmt.Errorf("engine: end transfer command buffer: %w", err)
		}
		if err := gpusync.SubmitGraphics(e.device.TransferQueue, slot.TransferCmd, nil, nil,
			[]vk.Semaphore{slot.TransferDoneSemaphore}, vk.NullFence); err != nil {
			return nil, fmt.Errorf("engine: submit transfer: %w", err)
		}
		waits = append(waits, slot.TransferDoneSemaphore)
		stages = append(stages, vk.PipelineStageFlags(vk.PipelineStageVertexInputBit))
	} else {
		if err := vkcore.NewError(vk.EndCommandBuffer(slot.TransferCmd)); err != nil {
			return nil, fmt.Errorf("engine: end transfer command buffer: %w", err)
		}
	}

	// 5. Begin render pass.
	clear := []vk.ClearValue{
		vk.NewClearValue([]float32{e.clearColor[0], e.clearColor[1], e.clearColor[2], e.clearColor[3]}),
		vk.NewClearDepthStencil(1.0, 0),
	}
	vk.CmdBeginRenderPass(slot.GraphicsCmd, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      e.swapchain.RenderPass,
		Framebuffer:     e.swapchain.Framebuffer(imageIndex),
		RenderArea:      vk.Rect2D{Extent: e.swapchain.Extent},
		ClearValueCount: uint32(len(clear)),
		PClearValues:    clear,
	}, vk.SubpassContentsInline)

	// 6. Bind viewport/scissor (every pipeline declares these dynamic, per
	// internal/pipeline), then draw every pipeline's bundles.
	viewport, scissor := display.ViewportAndScissor(e.swapchain.Extent)
	vk.CmdSetViewport(slot.GraphicsCmd, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(slot.GraphicsCmd, 0, 1, []vk.Rect2D{scissor})
	e.models.Render(slot.GraphicsCmd, descSet)

	// 7. End render pass. Close command buffer.
	vk.CmdEndRenderPass(slot.GraphicsCmd)
	if err := vkcore.NewError(vk.EndCommandBuffer(slot.GraphicsCmd)); err != nil {
		return nil, fmt.Errorf("engine: end graphics command buffer: %w", err)
	}

	// 8. Submit.
	if err := gpusync.SubmitGraphics(e.device.GraphicsQueue, slot.GraphicsCmd, waits, stages,
		[]vk.Semaphore{slot.RenderFinishedSemaphore}, slot.GraphicsFence); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	// 9. Mark temporary data used by this frame.
	e.temp.SetUsed(frameIndex)

	// 10. Return render-finished semaphore for presentation.
	return slot.RenderFinishedSemaphore, nil
}
