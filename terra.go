// Package terra implements a Vulkan rendering runtime: frame scheduling and
// synchronization, GPU memory and resource lifetime management, three
// interchangeable draw-path pipelines, and staging/upload coordination.
// Renderer is the single public entry point, created by CreateTerraInstance
// and holding every internal subsystem for its lifetime.
package terra

import (
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/descriptor"
	"github.com/andewx/terra/internal/display"
	"github.com/andewx/terra/internal/engine"
	"github.com/andewx/terra/internal/event"
	"github.com/andewx/terra/internal/gpubuf"
	"github.com/andewx/terra/internal/gpusync"
	"github.com/andewx/terra/internal/memory"
	"github.com/andewx/terra/internal/model"
	"github.com/andewx/terra/internal/pipeline"
	"github.com/andewx/terra/internal/swapchain"
	"github.com/andewx/terra/internal/upload"
	"github.com/andewx/terra/internal/vkcore"
	"github.com/andewx/terra/internal/workpool"
)

const (
	defaultVertexPoolCapacity   = vk.DeviceSize(1 * 1024 * 1024)
	defaultIndexPoolCapacity    = vk.DeviceSize(512 * 1024)
	defaultMeshletPoolCapacity  = vk.DeviceSize(256 * 1024)
	defaultConstantPoolCapacity = vk.DeviceSize(64 * 1024)

	maxTextures    = 256
	textureFormat  = vk.FormatR8g8b8a8Unorm
	cameraBinding  = 0
	constsBinding  = 1
	texturesBinding = 2
)

// Renderer is Terra's top-level public handle, per spec.md §4.N. It owns
// every subsystem the package builds (device, memory, staging, swapchain,
// pipelines, models) and exposes the library's entire external surface.
// Grounded on vulkan-go-asche's context.go's VulkanSwapchain,
// generalized from one monolithic struct to a thin owner over the package's
// component boundaries.
type Renderer struct {
	log *slog.Logger

	device    *vkcore.Device
	mem       *memory.Manager
	pool      workpool.Pool
	staging   *upload.Manager
	temp      *upload.TemporaryDataBuffer
	swapchain *swapchain.Swapchain
	display   *display.Manager
	events    *event.Dispatcher

	graphicsPool *gpusync.CommandPool
	transferPool *gpusync.CommandPool
	slots        []gpusync.FrameSlot
	bufferCount  int
	currentFrame int

	cameraBuffers []*gpubuf.Buffer
	camera        Camera

	descLayout *descriptor.Layout
	descSets   *descriptor.Buffer

	sampler  vk.Sampler
	textures []*gpubuf.Texture

	loader *pipeline.Loader

	vertexPool  *gpubuf.SharedBuffer
	indexPool   *gpubuf.SharedBuffer
	meshletPool *gpubuf.SharedBuffer
	constants   *gpubuf.SharedBuffer

	meshes  *model.MeshManager
	models  *model.ModelManager
	bundles [][]model.ModelID

	engine     *engine.Engine
	engineType EngineType

	poisoned *Error
}

// CreateTerraInstance is Terra's library entry point, per spec.md §6: given
// an application name, opaque native window/module handles, an initial
// extent, a draw-path variant, and a frame-slot count, it builds the
// Vulkan instance/device, every GPU subsystem, and returns a ready
// Renderer. Thread pool and logger are ambient-stack injection points
// supplied via Option (see options.go) rather than positional arguments.
func CreateTerraInstance(appName string, windowHandle, moduleHandle unsafe.Pointer, width, height uint32, engineType EngineType, bufferCount uint32, opts ...Option) (*Renderer, error) {
	if width == 0 || height == 0 {
		return nil, newErr(ErrInvalidArgument, "CreateTerraInstance", fmt.Errorf("zero extent %dx%d", width, height))
	}
	if bufferCount == 0 {
		bufferCount = 2
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	log := o.logger
	if log == nil {
		log = slog.Default()
	}
	pool := o.pool
	if pool == nil {
		pool = workpool.New(o.poolWorkers)
	}

	surface := &vkcore.NativeWindowSurface{Window: windowHandle, Module: moduleHandle, Width: width, Height: height}
	device, err := vkcore.New(vkcore.Config{
		AppName:          appName,
		InstanceExts:     o.instanceExts,
		DeviceExts:       append([]string{"VK_KHR_swapchain"}, o.deviceExts...),
		ValidationLayers: o.validationLayers,
		EnableValidation: o.enableValidation,
		Surface:          surface,
		Logger:           log,
	})
	if err != nil {
		return nil, newErr(ErrInternal, "CreateTerraInstance", err)
	}

	mem := memory.NewManager(device.Logical, device.MemoryProps)

	staging, err := upload.NewManager(device.Logical, mem, pool, 0)
	if err != nil {
		device.Destroy()
		return nil, newErr(ErrOutOfMemory, "CreateTerraInstance", err)
	}
	temp := upload.New()

	sc, err := swapchain.New(device.Logical, device.Physical, device.Surface, mem, width, height)
	if err != nil {
		staging.Destroy()
		device.Destroy()
		return nil, newErr(ErrInternal, "CreateTerraInstance", err)
	}

	graphicsPool, err := gpusync.NewCommandPool(device.Logical, device.Families.Graphics)
	if err != nil {
		sc.Destroy()
		staging.Destroy()
		device.Destroy()
		return nil, newErr(ErrInternal, "CreateTerraInstance", err)
	}
	transferPool, err := gpusync.NewCommandPool(device.Logical, device.Families.Transfer)
	if err != nil {
		graphicsPool.Destroy()
		sc.Destroy()
		staging.Destroy()
		device.Destroy()
		return nil, newErr(ErrInternal, "CreateTerraInstance", err)
	}
	slots, err := gpusync.NewFrameSlots(device.Logical, bufferCount, graphicsPool, transferPool)
	if err != nil {
		transferPool.Destroy()
		graphicsPool.Destroy()
		sc.Destroy()
		staging.Destroy()
		device.Destroy()
		return nil, newErr(ErrInternal, "CreateTerraInstance", err)
	}

	vertexPool, err := gpubuf.NewSharedBuffer(device.Logical, mem, defaultVertexPoolCapacity,
		vk.BufferUsageFlagBits(vk.BufferUsageVertexBufferBit|vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, newErr(ErrOutOfMemory, "CreateTerraInstance", err)
	}
	indexPool, err := gpubuf.NewSharedBuffer(device.Logical, mem, defaultIndexPoolCapacity,
		vk.BufferUsageFlagBits(vk.BufferUsageIndexBufferBit|vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, newErr(ErrOutOfMemory, "CreateTerraInstance", err)
	}
	var meshletPool *gpubuf.SharedBuffer
	if engineType == MeshDraw {
		meshletPool, err = gpubuf.NewSharedBuffer(device.Logical, mem, defaultMeshletPoolCapacity,
			vk.BufferUsageFlagBits(vk.BufferUsageStorageBufferBit|vk.BufferUsageTransferDstBit),
			vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit))
		if err != nil {
			return nil, newErr(ErrOutOfMemory, "CreateTerraInstance", err)
		}
	}
	constants, err := gpubuf.NewSharedBuffer(device.Logical, mem, defaultConstantPoolCapacity,
		vk.BufferUsageFlagBits(vk.BufferUsageStorageBufferBit|vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, newErr(ErrOutOfMemory, "CreateTerraInstance", err)
	}

	cameraBuffers := make([]*gpubuf.Buffer, bufferCount)
	for i := range cameraBuffers {
		cb, err := gpubuf.NewBuffer(device.Logical, mem, vk.DeviceSize(unsafe.Sizeof(Camera{})),
			vk.BufferUsageFlagBits(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
		if err != nil {
			return nil, newErr(ErrOutOfMemory, "CreateTerraInstance", err)
		}
		cameraBuffers[i] = cb
	}

	descLayout, err := descriptor.NewLayout(device.Logical, []descriptor.Binding{
		{Index: cameraBinding, Type: vk.DescriptorTypeUniformBuffer, Count: 1,
			Stages: vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit},
		{Index: constsBinding, Type: vk.DescriptorTypeStorageBuffer, Count: 1,
			Stages: vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit},
		{Index: texturesBinding, Type: vk.DescriptorTypeCombinedImageSampler, Count: maxTextures,
			Stages: vk.ShaderStageFragmentBit, UpdateAfterBind: true},
	})
	if err != nil {
		return nil, newErr(ErrInternal, "CreateTerraInstance", err)
	}
	descSets, err := descriptor.NewBuffer(device.Logical, descLayout, bufferCount)
	if err != nil {
		return nil, newErr(ErrInternal, "CreateTerraInstance", err)
	}
	for i := 0; i < int(bufferCount); i++ {
		descSets.BindBuffer(i, cameraBinding, vk.DescriptorTypeUniformBuffer,
			cameraBuffers[i].Handle, 0, vk.DeviceSize(unsafe.Sizeof(Camera{})))
		descSets.BindBuffer(i, constsBinding, vk.DescriptorTypeStorageBuffer,
			constants.Buffer(), 0, constants.Capacity())
	}

	sampler, err := createSampler(device.Logical)
	if err != nil {
		return nil, newErr(ErrInternal, "CreateTerraInstance", err)
	}

	loader := pipeline.NewLoader(device.Logical, o.shaderPath)
	meshes := model.NewMeshManager(vertexPool, indexPool, meshletPool, staging)

	vsName, taskName := shaderNamesFor(engineType)
	models := model.NewModelManager(model.Config{
		Device:           device.Logical,
		Variant:          engineType.variant(),
		RenderPass:       sc.RenderPass,
		Subpass:          0,
		Extent:           sc.Extent,
		DescriptorLayout: descLayout,
		ShaderLoader:     loader,
		VertexShaderName: vsName,
		TaskShaderName:   taskName,
		Constants:        constants,
		Staging:          staging,
		Meshes:           meshes,
		VertexBindings:   vertexBindingDescriptions(),
		VertexAttributes: vertexAttributeDescriptions(),
	})

	disp := display.NewManager(surface)
	eng := engine.New(engine.Config{
		Device:    device,
		Swapchain: sc,
		Slots:     slots,
		Staging:   staging,
		Temp:      temp,
		Models:    models,
	})

	return &Renderer{
		log:           log,
		device:        device,
		mem:           mem,
		pool:          pool,
		staging:       staging,
		temp:          temp,
		swapchain:     sc,
		display:       disp,
		events:        event.New(),
		graphicsPool:  graphicsPool,
		transferPool:  transferPool,
		slots:         slots,
		bufferCount:   int(bufferCount),
		cameraBuffers: cameraBuffers,
		descLayout:    descLayout,
		descSets:      descSets,
		sampler:       sampler,
		loader:        loader,
		vertexPool:    vertexPool,
		indexPool:     indexPool,
		meshletPool:   meshletPool,
		constants:     constants,
		meshes:        meshes,
		models:        models,
		engine:        eng,
		engineType:    engineType,
	}, nil
}

// shaderNamesFor resolves the fixed per-engine shader names of spec.md §6.
// model.ModelManager loads its mesh-shader module through the same
// VertexShaderName field VariantIndividual/VariantIndirect use, so MS's
// entry here is the mesh shader, not a separate field.
func shaderNamesFor(e EngineType) (vertexOrMesh, task string) {
	switch e {
	case IndirectDraw:
		return "VertexShaderIndirect", ""
	case MeshDraw:
		return "MeshShaderMSIndividual", "MeshShaderTSIndividual"
	default:
		return "VertexShaderIndividual", ""
	}
}

func vertexBindingDescriptions() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}}
}

func vertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 24},
	}
}

func createSampler(device vk.Device) (vk.Sampler, error) {
	var sampler vk.Sampler
	ret := vk.CreateSampler(device, &vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		MipmapMode:   vk.SamplerMipmapModeLinear,
		AddressModeU: vk.SamplerAddressModeRepeat,
		AddressModeV: vk.SamplerAddressModeRepeat,
		AddressModeW: vk.SamplerAddressModeRepeat,
		MaxAnisotropy: 1.0,
		BorderColor:  vk.BorderColorIntOpaqueBlack,
		CompareOp:    vk.CompareOpAlways,
	}, nil, &sampler)
	if err := vkcore.NewError(ret); err != nil {
		return nil, fmt.Errorf("terra: create sampler: %w", err)
	}
	return sampler, nil
}

func cameraBytes(c *Camera) []byte {
	const size = int(unsafe.Sizeof(Camera{}))
	return unsafe.Slice((*byte)(unsafe.Pointer(c)), size)
}

// SetBackgroundColor updates the render pass clear color, infallible per
// spec.md §4.N.
func (r *Renderer) SetBackgroundColor(c [4]float32) { r.engine.SetBackgroundColor(c) }

// SetShaderPath updates the root path shader names resolve against,
// infallible per spec.md §4.N.
func (r *Renderer) SetShaderPath(path string) { r.loader.SetPath(path) }

// SetCamera stores the camera state the next Update call copies into the
// current frame's host-visible camera buffer. Terra has no scene graph of
// its own (spec.md §1's Non-goals exclude "camera controls"), so the
// caller drives this directly.
func (r *Renderer) SetCamera(c Camera) { r.camera = c }

// AddMeshBundle registers mesh data and reserves its vertex/index (and,
// for the mesh-shader engine, meshlet) sub-ranges, per spec.md §4.N. Fails
// with ErrInvalidArgument on empty vertex/index data.
func (r *Renderer) AddMeshBundle(in MeshInput) (MeshID, error) {
	if r.poisoned != nil {
		return 0, r.poisoned
	}
	id, err := r.meshes.AddMeshBundle(in)
	if err != nil {
		return 0, newErr(ErrInvalidArgument, "AddMeshBundle", err)
	}
	return id, nil
}

// AddModelBundle registers one model bundle: one or more per-instance
// constants drawing mesh through the pipeline for fragmentShaderName,
// returning a single BundleID for the group, per spec.md §3's
// ModelBundle{models: [Model], mesh_id, fragment_shader_name,
// pipeline_index}. Fails with ErrUnknownMesh or ErrShaderNotFound/Invalid.
func (r *Renderer) AddModelBundle(models []ModelConstant, fragmentShaderName string, meshID MeshID) (BundleID, error) {
	if r.poisoned != nil {
		return 0, r.poisoned
	}
	if len(models) == 0 {
		return 0, newErr(ErrInvalidArgument, "AddModelBundle", fmt.Errorf("empty model list"))
	}

	ids := make([]model.ModelID, 0, len(models))
	for i := range models {
		id, err := r.models.AddModelBundle(meshID, fragmentShaderName, models[i])
		if err != nil {
			return 0, mapModelBundleError(err)
		}
		ids = append(ids, id)
	}

	bundleID := BundleID(len(r.bundles))
	r.bundles = append(r.bundles, ids)
	return bundleID, nil
}

func mapModelBundleError(err error) *Error {
	if errors.Is(err, model.ErrUnknownMesh) {
		return newErr(ErrUnknownMesh, "AddModelBundle", err)
	}
	var loadErr *pipeline.LoadError
	if errors.As(err, &loadErr) {
		if loadErr.Kind == pipeline.ErrNotFound {
			return newErr(ErrShaderNotFound, "AddModelBundle", err)
		}
		return newErr(ErrShaderInvalid, "AddModelBundle", err)
	}
	return newErr(ErrInternal, "AddModelBundle", err)
}

// AddTexture uploads pixels (tightly packed RGBA8) as a new sampled
// texture, returning a TextureID usable as ModelConstant.TextureIndex.
// Fails with ErrInvalidArgument on zero extent or a pixel buffer whose
// length doesn't match width*height*4.
func (r *Renderer) AddTexture(pixels []byte, width, height uint32) (TextureID, error) {
	if r.poisoned != nil {
		return 0, r.poisoned
	}
	if width == 0 || height == 0 {
		return 0, newErr(ErrInvalidArgument, "AddTexture", fmt.Errorf("zero extent %dx%d", width, height))
	}
	want := int(width) * int(height) * 4
	if len(pixels) != want {
		return 0, newErr(ErrInvalidArgument, "AddTexture",
			fmt.Errorf("pixel buffer length %d does not match %dx%d RGBA8 (%d)", len(pixels), width, height, want))
	}
	if len(r.textures) >= maxTextures {
		return 0, newErr(ErrInvalidArgument, "AddTexture", fmt.Errorf("texture slots exhausted (max %d)", maxTextures))
	}

	tex, err := gpubuf.NewTexture(r.device.Logical, r.mem, textureFormat, width, height)
	if err != nil {
		return 0, newErr(ErrOutOfMemory, "AddTexture", err)
	}
	if err := r.staging.EnqueueTexture(pixels, tex); err != nil {
		tex.Destroy()
		return 0, newErr(ErrIOError, "AddTexture", err)
	}

	id := TextureID(len(r.textures))
	r.textures = append(r.textures, tex)
	for i := 0; i < r.bufferCount; i++ {
		r.descSets.BindImageAt(i, texturesBinding, uint32(id), tex.View, r.sampler, vk.ImageLayoutShaderReadOnlyOptimal)
	}
	return id, nil
}

// Update refreshes per-frame dynamic data: the current camera is copied
// into the current frame slot's host-visible camera buffer, per spec.md
// §4.N.
func (r *Renderer) Update() {
	if r.poisoned != nil {
		return
	}
	dst := r.cameraBuffers[r.currentFrame].MappedPointer()
	copy(dst, cameraBytes(&r.camera))
}

// Render runs one frame: acquire, record, submit, present, per spec.md
// §4.M/§4.N. A stale swapchain surfaces ErrSwapchainStale; the caller MUST
// follow with Resize. Any other failure is treated as device-lost and
// poisons the Renderer.
func (r *Renderer) Render() error {
	if r.poisoned != nil {
		return r.poisoned
	}

	frameIndex := r.currentFrame
	slot := &r.slots[frameIndex]

	imageIndex, err := r.swapchain.AcquireNext(slot.ImageAvailableSemaphore)
	if err != nil {
		if errors.Is(err, swapchain.ErrStale) {
			return newErr(ErrSwapchainStale, "Render", err)
		}
		return r.poison(newErr(ErrDeviceLost, "Render", err))
	}

	renderFinished, err := r.engine.RenderFrame(frameIndex, imageIndex, slot.ImageAvailableSemaphore, r.descSets.Sets[frameIndex])
	if err != nil {
		return r.poison(newErr(ErrDeviceLost, "Render", err))
	}

	if err := r.swapchain.Present(r.device.PresentQueue, renderFinished, imageIndex); err != nil {
		r.currentFrame = (frameIndex + 1) % r.bufferCount
		if errors.Is(err, swapchain.ErrStale) {
			return newErr(ErrSwapchainStale, "Render", err)
		}
		return r.poison(newErr(ErrDeviceLost, "Render", err))
	}

	r.currentFrame = (frameIndex + 1) % r.bufferCount
	r.events.Emit(event.Event{Type: event.QueueExecutionFinished, Frame: frameIndex})
	return nil
}

func (r *Renderer) poison(err *Error) *Error {
	r.poisoned = err
	return err
}

// Resize waits the device idle and rebuilds the swapchain's framebuffer
// chain, per spec.md §4.L. The caller must call this after Render returns
// ErrSwapchainStale.
func (r *Renderer) Resize(width, height uint32) error {
	if r.poisoned != nil {
		return r.poisoned
	}
	if width == 0 || height == 0 {
		return newErr(ErrInvalidArgument, "Resize", fmt.Errorf("zero extent %dx%d", width, height))
	}
	if err := r.device.WaitIdle(); err != nil {
		return r.poison(newErr(ErrDeviceLost, "Resize", err))
	}
	if err := r.swapchain.Resize(width, height); err != nil {
		return r.poison(newErr(ErrInternal, "Resize", err))
	}
	return nil
}

// WaitForAsyncTasks blocks until the thread pool is quiescent and every
// device queue is idle, per spec.md §4.N.
func (r *Renderer) WaitForAsyncTasks() error {
	if r.poisoned != nil {
		return r.poisoned
	}
	if err := r.pool.Wait(); err != nil {
		return newErr(ErrIOError, "WaitForAsyncTasks", err)
	}
	if err := r.device.WaitIdle(); err != nil {
		return r.poison(newErr(ErrDeviceLost, "WaitForAsyncTasks", err))
	}
	return nil
}

// GetFirstDisplayResolution returns the first enumerated display's
// resolution, per spec.md §4.N.
func (r *Renderer) GetFirstDisplayResolution() (uint32, uint32, error) {
	if r.poisoned != nil {
		return 0, 0, r.poisoned
	}
	w, h, err := r.display.GetDisplayResolution(0)
	if err != nil {
		return 0, 0, newErr(ErrInvalidArgument, "GetFirstDisplayResolution", err)
	}
	return w, h, nil
}

// Destroy waits for every queue to go idle and releases every owned
// resource, per spec.md §3's teardown sequence: wait all queues idle →
// drop engines → drop memory manager last.
func (r *Renderer) Destroy() error {
	if err := r.device.WaitIdle(); err != nil {
		return newErr(ErrDeviceLost, "Destroy", err)
	}

	for i := range r.slots {
		r.slots[i].Destroy(r.device.Logical)
	}
	r.graphicsPool.Destroy()
	r.transferPool.Destroy()

	r.models.Destroy()
	r.swapchain.Destroy()

	for _, tex := range r.textures {
		tex.Destroy()
	}
	vk.DestroySampler(r.device.Logical, r.sampler, nil)

	r.descSets.Destroy()
	r.descLayout.Destroy()

	for _, cb := range r.cameraBuffers {
		cb.Destroy()
	}

	r.vertexPool.Destroy()
	r.indexPool.Destroy()
	if r.meshletPool != nil {
		r.meshletPool.Destroy()
	}
	r.constants.Destroy()
	r.staging.Destroy()

	r.mem.Destroy()
	r.device.Destroy()
	return nil
}
