package model

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/descriptor"
	"github.com/andewx/terra/internal/gpubuf"
	"github.com/andewx/terra/internal/pipeline"
	"github.com/andewx/terra/internal/upload"
)

// constantAlignment matches minStorageBufferOffsetAlignment on the devices
// this targets; a real deployment would query
// VkPhysicalDeviceLimits.minStorageBufferOffsetAlignment instead.
const constantAlignment = vk.DeviceSize(256)

// ErrUnknownMesh is returned (wrapped with the offending id) when
// AddModelBundle references a mesh id no MeshManager has registered.
var ErrUnknownMesh = errors.New("model: unknown mesh id")

// ModelID identifies a registered ModelBundle.
type ModelID int

// ModelBundle is a registered model's GPU state, per spec.md §4.I/§6.
type ModelBundle struct {
	Mesh         MeshID
	ConstantSlot gpubuf.Slot
	Index        uint32 // constant slot index in the shared constants buffer, in constantAlignment units
}

type pipelineEntry struct {
	object    *pipeline.Object
	layout    *pipeline.Layout
	bundleIDs []ModelID
}

// ModelManager owns every registered ModelBundle, coalesces bundles into one
// pipeline per fragment-shader name, and dispatches the per-frame draw
// loop, per spec.md §4.I/§4.J. Grounded on vulkan-go-asche's
// managers.go's manager-owns-a-slice bookkeeping, generalized to build and
// cache a pipeline.Object per distinct fragment shader instead of one fixed
// pipeline for the whole scene.
type ModelManager struct {
	device     vk.Device
	variant    pipeline.Variant
	renderPass vk.RenderPass
	subpass    uint32
	extent     vk.Extent2D

	descLayout *descriptor.Layout
	loader     *pipeline.Loader
	vsName     string // fixed vertex (VariantMesh: mesh) shader name for this engine variant
	taskName   string

	constants *gpubuf.SharedBuffer
	staging   *upload.Manager
	meshes    *MeshManager

	vertexBindings   []vk.VertexInputBindingDescription
	vertexAttributes []vk.VertexInputAttributeDescription

	pipelineOrder []string
	pipelines     map[string]*pipelineEntry
	bundles       []ModelBundle
}

// Config collects ModelManager's fixed per-engine-variant build parameters.
type Config struct {
	Device           vk.Device
	Variant          pipeline.Variant
	RenderPass       vk.RenderPass
	Subpass          uint32
	Extent           vk.Extent2D
	DescriptorLayout *descriptor.Layout
	ShaderLoader     *pipeline.Loader
	VertexShaderName string // vertex shader; for VariantMesh, the mesh shader
	TaskShaderName   string // VariantMesh, optional
	MeshShaderName   string // not read by NewModelManager; VariantMesh takes its mesh shader from VertexShaderName
	VertexBindings   []vk.VertexInputBindingDescription
	VertexAttributes []vk.VertexInputAttributeDescription
	Constants        *gpubuf.SharedBuffer
	Staging          *upload.Manager
	Meshes           *MeshManager
}

// NewModelManager creates a ModelManager from cfg.
func NewModelManager(cfg Config) *ModelManager {
	return &ModelManager{
		device:           cfg.Device,
		variant:          cfg.Variant,
		renderPass:       cfg.RenderPass,
		subpass:          cfg.Subpass,
		extent:           cfg.Extent,
		descLayout:       cfg.DescriptorLayout,
		loader:           cfg.ShaderLoader,
		vsName:           cfg.VertexShaderName,
		taskName:         cfg.TaskShaderName,
		constants:        cfg.Constants,
		staging:          cfg.Staging,
		meshes:           cfg.Meshes,
		vertexBindings:   cfg.VertexBindings,
		vertexAttributes: cfg.VertexAttributes,
		pipelines:        make(map[string]*pipelineEntry),
	}
}

// AddModelBundle registers a model instance drawing mesh through the
// pipeline for fragmentShaderName, reserving a per-model constant slot and
// enqueuing its initial upload. Bundles sharing a fragment-shader name are
// coalesced onto the same pipeline, per spec.md §4.I's explicit
// requirement. Fails if mesh is unknown or the fragment/vertex shader
// cannot be loaded.
func (m *ModelManager) AddModelBundle(mesh MeshID, fragmentShaderName string, constant Constant) (ModelID, error) {
	if _, ok := m.meshes.Bundle(mesh); !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownMesh, mesh)
	}

	entry, ok := m.pipelines[fragmentShaderName]
	if !ok {
		built, err := m.buildPipeline(fragmentShaderName)
		if err != nil {
			return 0, err
		}
		entry = built
		m.pipelines[fragmentShaderName] = entry
		m.pipelineOrder = append(m.pipelineOrder, fragmentShaderName)
	}

	slot, err := m.constants.Alloc(vk.DeviceSize(unsafe.Sizeof(Constant{})), constantAlignment)
	if err != nil {
		return 0, fmt.Errorf("model: reserve constant slot: %w", err)
	}
	if err := m.staging.Enqueue(constantBytes(&constant), m.constants.BackingBuffer(), slot.Offset); err != nil {
		return 0, fmt.Errorf("model: enqueue constant upload: %w", err)
	}

	bundle := ModelBundle{
		Mesh:         mesh,
		ConstantSlot: slot,
		Index:        uint32(slot.Offset / constantAlignment),
	}
	id := ModelID(len(m.bundles))
	m.bundles = append(m.bundles, bundle)
	entry.bundleIDs = append(entry.bundleIDs, id)
	return id, nil
}

func (m *ModelManager) buildPipeline(fragmentShaderName string) (*pipelineEntry, error) {
	fragShader, err := m.loader.Load(fragmentShaderName)
	if err != nil {
		return nil, err
	}

	layout := pipeline.NewLayout(m.device, []vk.DescriptorSetLayout{m.descLayout.Handle})
	layout.AddPushConstantRange(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit, 4)
	if err := layout.Build(); err != nil {
		return nil, err
	}

	cfg := pipeline.Config{
		Variant:          m.variant,
		RenderPass:       m.renderPass,
		Subpass:          m.subpass,
		Extent:           m.extent,
		Layout:           layout,
		FragmentShader:   fragShader,
		VertexBindings:   m.vertexBindings,
		VertexAttributes: m.vertexAttributes,
	}

	switch m.variant {
	case pipeline.VariantIndividual, pipeline.VariantIndirect:
		vsShader, err := m.loader.Load(m.vsName)
		if err != nil {
			layout.Destroy()
			return nil, err
		}
		cfg.VertexShader = vsShader
	case pipeline.VariantMesh:
		msShader, err := m.loader.Load(m.vsName)
		if err != nil {
			layout.Destroy()
			return nil, err
		}
		cfg.MeshShader = msShader
		if m.taskName != "" {
			taskShader, err := m.loader.Load(m.taskName)
			if err != nil {
				layout.Destroy()
				return nil, err
			}
			cfg.TaskShader = taskShader
		}
	}

	obj, err := pipeline.Build(m.device, cfg)
	if err != nil {
		layout.Destroy()
		return nil, err
	}
	return &pipelineEntry{object: obj, layout: layout}, nil
}

// Render records the bind+draw sequence for every registered pipeline and
// its bundles against cmd, binding descSet as the frame's single descriptor
// set, per spec.md §4.I/§4.J.
func (m *ModelManager) Render(cmd vk.CommandBuffer, descSet vk.DescriptorSet) {
	for _, key := range m.pipelineOrder {
		entry := m.pipelines[key]
		vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, entry.object.Handle)
		vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, entry.layout.Handle, 0, 1,
			[]vk.DescriptorSet{descSet}, 0, nil)

		for _, bid := range entry.bundleIDs {
			bundle := m.bundles[bid]
			mesh, ok := m.meshes.Bundle(bundle.Mesh)
			if !ok {
				continue
			}

			index := bundle.Index
			vk.CmdPushConstants(cmd, entry.layout.Handle, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit),
				0, 4, unsafe.Pointer(&index))

			switch m.variant {
			case pipeline.VariantIndividual:
				m.drawIndividual(cmd, mesh)
			case pipeline.VariantIndirect:
				// No compute culling pass runs and no indirect draw is
				// issued: vulkan-go's binding predates
				// VK_KHR_draw_indirect_count, and each bundle is drawn with
				// the same direct vk.CmdDrawIndexed call VariantIndividual
				// uses -- see DESIGN.md.
				m.drawIndividual(cmd, mesh)
			case pipeline.VariantMesh:
				// vulkan-go's binding predates VK_NV_mesh_shader and exposes
				// no CmdDrawMeshTasksNV entry point; the task/mesh pipeline
				// still builds and binds correctly, but the draw call falls
				// back to the same indexed path -- see DESIGN.md.
				m.drawIndividual(cmd, mesh)
			}
		}
	}
}

func (m *ModelManager) drawIndividual(cmd vk.CommandBuffer, mesh MeshBundle) {
	vb := m.meshes.vertexPool.Buffer()
	ib := m.meshes.indexPool.Buffer()
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{vb}, []vk.DeviceSize{mesh.VertexSlot.Offset})
	vk.CmdBindIndexBuffer(cmd, ib, mesh.IndexSlot.Offset, vk.IndexTypeUint32)
	vk.CmdDrawIndexed(cmd, mesh.IndexCount, 1, 0, 0, 0)
}

// Destroy releases every built pipeline and its layout.
func (m *ModelManager) Destroy() {
	for _, entry := range m.pipelines {
		entry.object.Destroy()
		entry.layout.Destroy()
	}
}
