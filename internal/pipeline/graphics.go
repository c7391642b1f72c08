package pipeline

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/vkcore"
)

// Variant names the three draw-path pipeline arrangements of spec.md §4.I.
type Variant int

const (
	VariantIndividual Variant = iota // VS-individual: one DrawIndexed per mesh
	VariantIndirect                  // VS-indirect: vertex+fragment stages; drawn with CmdDrawIndexed by ModelManager.Render
	VariantMesh                      // MS: task+mesh shader stages; drawn with CmdDrawIndexed by ModelManager.Render
)

// Mesh/task shader stage bits, per the Vulkan spec's VK_NV_mesh_shader
// extension (0x40 / 0x80); the vulkan-go binding predates the extension, so
// they're declared locally rather than imported.
const (
	ShaderStageTaskBitNV vk.ShaderStageFlagBits = 0x00000040
	ShaderStageMeshBitNV vk.ShaderStageFlagBits = 0x00000080
)

// Object is one built vk.Pipeline plus the layout it was built against, per
// spec.md §4.G's PipelineObject.
type Object struct {
	device  vk.Device
	Handle  vk.Pipeline
	Layout  *Layout
	Variant Variant
}

// Config collects the per-pipeline-variant build parameters. VertexBindings
// and VertexAttributes are only used for VariantIndividual/VariantIndirect;
// VariantMesh carries no vertex input state (the mesh shader reads storage
// buffers directly).
type Config struct {
	Variant          Variant
	RenderPass       vk.RenderPass
	Subpass          uint32
	Extent           vk.Extent2D
	Layout           *Layout
	VertexShader     vk.ShaderModule // unused for VariantMesh
	TaskShader       vk.ShaderModule // VariantMesh only, optional
	MeshShader       vk.ShaderModule // VariantMesh only
	FragmentShader   vk.ShaderModule
	VertexBindings   []vk.VertexInputBindingDescription
	VertexAttributes []vk.VertexInputAttributeDescription
}

// Build creates a graphics pipeline for the given variant, following
// vulkan-go-asche's pipeline.go's PipelineBuilder defaults
// (triangle-list topology, fill mode, no blend, single-sample) with the
// shader stage list and vertex-input state swapped per variant.
func Build(device vk.Device, cfg Config) (*Object, error) {
	var stages []vk.PipelineShaderStageCreateInfo
	var vertexInput vk.PipelineVertexInputStateCreateInfo

	switch cfg.Variant {
	case VariantIndividual, VariantIndirect:
		stages = []vk.PipelineShaderStageCreateInfo{
			stage(vk.ShaderStageVertexBit, cfg.VertexShader),
			stage(vk.ShaderStageFragmentBit, cfg.FragmentShader),
		}
		vertexInput = vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(cfg.VertexBindings)),
			PVertexBindingDescriptions:      cfg.VertexBindings,
			VertexAttributeDescriptionCount: uint32(len(cfg.VertexAttributes)),
			PVertexAttributeDescriptions:    cfg.VertexAttributes,
		}
	case VariantMesh:
		if cfg.TaskShader != nil {
			stages = append(stages, rawStage(ShaderStageTaskBitNV, cfg.TaskShader))
		}
		stages = append(stages, rawStage(ShaderStageMeshBitNV, cfg.MeshShader))
		stages = append(stages, stage(vk.ShaderStageFragmentBit, cfg.FragmentShader))
		vertexInput = vk.PipelineVertexInputStateCreateInfo{SType: vk.StructureTypePipelineVertexInputStateCreateInfo}
	default:
		return nil, fmt.Errorf("pipeline: unknown variant %d", cfg.Variant)
	}

	assembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.True,
		DepthWriteEnable: vk.True,
		DepthCompareOp:   vk.CompareOpLess,
	}
	// Viewport and scissor are left dynamic (set per-frame via
	// CmdSetViewport/CmdSetScissor against display.ViewportAndScissor's
	// Y-flipped viewport) rather than baked in at creation, so Resize never
	// needs to rebuild pipelines just because the extent changed.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: 2,
		PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &assembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PColorBlendState:    &colorBlend,
		PDepthStencilState:  &depthStencil,
		PDynamicState:       &dynamicState,
		Layout:              cfg.Layout.Handle,
		RenderPass:          cfg.RenderPass,
		Subpass:             cfg.Subpass,
	}

	pipelines := []vk.Pipeline{vk.NullPipeline}
	ret := vk.CreateGraphicsPipelines(device, nil, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if err := vkcore.NewError(ret); err != nil {
		return nil, fmt.Errorf("pipeline: create graphics pipeline: %w", err)
	}

	return &Object{device: device, Handle: pipelines[0], Layout: cfg.Layout, Variant: cfg.Variant}, nil
}

func stage(bit vk.ShaderStageFlagBits, module vk.ShaderModule) vk.PipelineShaderStageCreateInfo {
	return rawStage(bit, module)
}

func rawStage(bit vk.ShaderStageFlagBits, module vk.ShaderModule) vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  bit,
		Module: module,
		PName:  vkcore.SafeString("main"),
	}
}

// Destroy releases the pipeline handle (not its layout, which is owned and
// shared by the caller).
func (o *Object) Destroy() {
	vk.DestroyPipeline(o.device, o.Handle, nil)
}
