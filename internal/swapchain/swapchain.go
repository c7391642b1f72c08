package swapchain

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/gpubuf"
	"github.com/andewx/terra/internal/memory"
	"github.com/andewx/terra/internal/vkcore"
)

// Swapchain owns the vk.Swapchain, its color image views, a shared depth
// texture, the render pass, and one framebuffer per swapchain image, per
// spec.md §4.L. Resize tears down and recreates every one of these against
// the new extent, reusing the old swapchain handle as OldSwapchain for a
// smoother transition.
type Swapchain struct {
	device        vk.Device
	physical      vk.PhysicalDevice
	surface       vk.Surface
	mem           *memory.Manager

	Handle      vk.Swapchain
	RenderPass  vk.RenderPass
	ColorFormat vk.Format
	DepthFormat vk.Format
	Extent      vk.Extent2D

	images       []vk.Image
	imageViews   []vk.ImageView
	framebuffers []vk.Framebuffer
	depth        *gpubuf.Texture
}

// New negotiates a surface format/present mode/extent and builds the
// swapchain, render pass, depth texture, and framebuffers for the given
// physical device and surface.
func New(device vk.Device, physical vk.PhysicalDevice, surface vk.Surface, mem *memory.Manager, width, height uint32) (*Swapchain, error) {
	s := &Swapchain{device: device, physical: physical, surface: surface, mem: mem}
	if err := s.rebuild(width, height, vk.NullSwapchain); err != nil {
		return nil, err
	}
	return s, nil
}

// Resize tears down the current framebuffers/depth/image-views and rebuilds
// the swapchain at the new extent, passing the current handle as
// OldSwapchain. Rejects a (0,0) extent with an error the caller maps to
// InvalidArgument, per spec.md §8's boundary test.
func (s *Swapchain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("swapchain: resize to zero extent")
	}
	old := s.Handle
	s.destroyViews()
	if err := s.rebuild(width, height, old); err != nil {
		return err
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(s.device, old, nil)
	}
	return nil
}

func (s *Swapchain) rebuild(width, height uint32, old vk.Swapchain) error {
	var caps vk.SurfaceCapabilities
	if err := vkcore.NewError(vk.GetPhysicalDeviceSurfaceCapabilities(s.physical, s.surface, &caps)); err != nil {
		return fmt.Errorf("swapchain: query capabilities: %w", err)
	}
	caps.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(s.physical, s.surface, &formatCount, nil)
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(s.physical, s.surface, &formatCount, formats)
	if formatCount == 0 {
		return fmt.Errorf("swapchain: no surface formats available")
	}
	formats[0].Deref()
	format := formats[0]
	if format.Format == vk.FormatUndefined {
		format.Format = vk.FormatB8g8r8a8Srgb
	}

	extent := vk.Extent2D{Width: width, Height: height}
	caps.CurrentExtent.Deref()
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		extent = caps.CurrentExtent
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	preTransform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		preTransform = vk.SurfaceTransformIdentityBit
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, candidate := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit, vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit, vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(candidate) != 0 {
			compositeAlpha = candidate
			break
		}
	}

	presentMode := vk.PresentModeFifo
	var modeCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(s.physical, s.surface, &modeCount, nil)
	modes := make([]vk.PresentMode, modeCount)
	vk.GetPhysicalDeviceSurfacePresentModes(s.physical, s.surface, &modeCount, modes)
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	var handle vk.Swapchain
	ret := vk.CreateSwapchain(s.device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &handle)
	if err := vkcore.NewError(ret); err != nil {
		return fmt.Errorf("swapchain: create swapchain: %w", err)
	}

	var count uint32
	vk.GetSwapchainImages(s.device, handle, &count, nil)
	images := make([]vk.Image, count)
	vk.GetSwapchainImages(s.device, handle, &count, images)

	views := make([]vk.ImageView, count)
	for i, img := range images {
		var view vk.ImageView
		ret := vk.CreateImageView(s.device, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   format.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}, nil, &view)
		if err := vkcore.NewError(ret); err != nil {
			return fmt.Errorf("swapchain: create image view: %w", err)
		}
		views[i] = view
	}

	depthFormat := vk.FormatD32Sfloat
	depth, err := gpubuf.NewTexture(s.device, s.mem, depthFormat, extent.Width, extent.Height)
	if err != nil {
		return fmt.Errorf("swapchain: create depth texture: %w", err)
	}

	renderPass, err := NewRenderPass(s.device, format.Format, depthFormat)
	if err != nil {
		depth.Destroy()
		return err
	}

	framebuffers := make([]vk.Framebuffer, count)
	for i, view := range views {
		var fb vk.Framebuffer
		ret := vk.CreateFramebuffer(s.device, &vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      renderPass,
			AttachmentCount: 2,
			PAttachments:    []vk.ImageView{view, depth.View},
			Width:           extent.Width,
			Height:          extent.Height,
			Layers:          1,
		}, nil, &fb)
		if err := vkcore.NewError(ret); err != nil {
			return fmt.Errorf("swapchain: create framebuffer: %w", err)
		}
		framebuffers[i] = fb
	}

	s.Handle = handle
	s.ColorFormat = format.Format
	s.DepthFormat = depthFormat
	s.Extent = extent
	s.images = images
	s.imageViews = views
	s.framebuffers = framebuffers
	s.depth = depth
	s.RenderPass = renderPass
	return nil
}

// AcquireNext acquires the next presentable image index, signaling
// imageAvailable. Returns ErrStale (mapped by the caller to SwapchainStale)
// when the result is OUT_OF_DATE or SUBOPTIMAL.
func (s *Swapchain) AcquireNext(imageAvailable vk.Semaphore) (uint32, error) {
	var index uint32
	ret := vk.AcquireNextImage(s.device, s.Handle, ^uint64(0), imageAvailable, vk.NullFence, &index)
	switch ret {
	case vk.Success:
		return index, nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		return index, ErrStale
	default:
		return index, vkcore.NewError(ret)
	}
}

// Present queues imageIndex for presentation on queue, waiting on
// waitSemaphore. Returns ErrStale on OUT_OF_DATE/SUBOPTIMAL.
func (s *Swapchain) Present(queue vk.Queue, waitSemaphore vk.Semaphore, imageIndex uint32) error {
	ret := vk.QueuePresent(queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{waitSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.Handle},
		PImageIndices:      []uint32{imageIndex},
	})
	switch ret {
	case vk.Success:
		return nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		return ErrStale
	default:
		return vkcore.NewError(ret)
	}
}

// Framebuffer returns the framebuffer for the given swapchain image index.
func (s *Swapchain) Framebuffer(index uint32) vk.Framebuffer { return s.framebuffers[index] }

func (s *Swapchain) destroyViews() {
	for _, fb := range s.framebuffers {
		vk.DestroyFramebuffer(s.device, fb, nil)
	}
	for _, view := range s.imageViews {
		vk.DestroyImageView(s.device, view, nil)
	}
	if s.depth != nil {
		s.depth.Destroy()
	}
	if s.RenderPass != nil {
		vk.DestroyRenderPass(s.device, s.RenderPass, nil)
	}
	s.framebuffers = nil
	s.imageViews = nil
	s.depth = nil
}

// Destroy tears down every owned object, including the swapchain itself.
func (s *Swapchain) Destroy() {
	s.destroyViews()
	if s.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.device, s.Handle, nil)
	}
}
