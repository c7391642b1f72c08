package gpubuf

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/memory"
	"github.com/andewx/terra/internal/vkcore"
)

// Texture is a device-local sampled image plus its view, per spec.md §4.B.
// Grounded on vulkan-go-asche's image.go's CoreImage maps,
// generalized to one struct per texture with an owned allocation.
type Texture struct {
	device vk.Device
	mem    *memory.Manager

	Handle vk.Image
	Alloc  memory.Allocation
	View   vk.ImageView
	Format vk.Format
	Width  uint32
	Height uint32
}

// NewTexture creates a 2D sampled+transfer-dst image of the given format and
// extent, backs it with a device-local allocation from mem, and creates its
// default 2D color image view.
func NewTexture(device vk.Device, mem *memory.Manager, format vk.Format, width, height uint32) (*Texture, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("gpubuf: zero-extent texture requested")
	}

	var handle vk.Image
	ret := vk.CreateImage(device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent:    vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels: 1,
		ArrayLayers: 1,
		Samples:   vk.SampleCount1Bit,
		Tiling:    vk.ImageTilingOptimal,
		Usage:     vk.ImageUsageFlags(vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &handle)
	if err := vkcore.NewError(ret); err != nil {
		return nil, fmt.Errorf("gpubuf: create image: %w", err)
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &reqs)
	reqs.Deref()

	alloc, err := mem.Allocate(reqs.Size, reqs.Alignment, reqs.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(device, handle, nil)
		return nil, err
	}
	blockMem, ok := mem.Block(alloc)
	if !ok {
		vk.DestroyImage(device, handle, nil)
		return nil, fmt.Errorf("gpubuf: resolved allocation has no backing block")
	}
	if err := vkcore.NewError(vk.BindImageMemory(device, handle, blockMem, alloc.Offset)); err != nil {
		vk.DestroyImage(device, handle, nil)
		mem.Free(alloc)
		return nil, fmt.Errorf("gpubuf: bind image memory: %w", err)
	}

	var view vk.ImageView
	ret = vk.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount:     1,
			LayerCount:     1,
		},
	}, nil, &view)
	if err := vkcore.NewError(ret); err != nil {
		vk.DestroyImage(device, handle, nil)
		mem.Free(alloc)
		return nil, fmt.Errorf("gpubuf: create image view: %w", err)
	}

	return &Texture{
		device: device, mem: mem,
		Handle: handle, Alloc: alloc, View: view,
		Format: format, Width: width, Height: height,
	}, nil
}

// Destroy releases the image view, image handle, and memory sub-allocation.
func (t *Texture) Destroy() {
	vk.DestroyImageView(t.device, t.View, nil)
	vk.DestroyImage(t.device, t.Handle, nil)
	t.mem.Free(t.Alloc)
}
