package pipeline

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/vkcore"
)

// BuildCompute creates a compute pipeline from a single shader module,
// tagged VariantIndirect. No render path calls it: VariantIndirect draws
// without a compute culling pass or an indirect draw count buffer.
func BuildCompute(device vk.Device, layout *Layout, shader vk.ShaderModule) (*Object, error) {
	info := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  rawStage(vk.ShaderStageComputeBit, shader),
		Layout: layout.Handle,
	}
	pipelines := []vk.Pipeline{vk.NullPipeline}
	ret := vk.CreateComputePipelines(device, nil, 1, []vk.ComputePipelineCreateInfo{info}, nil, pipelines)
	if err := vkcore.NewError(ret); err != nil {
		return nil, fmt.Errorf("pipeline: create compute pipeline: %w", err)
	}
	return &Object{device: device, Handle: pipelines[0], Layout: layout, Variant: VariantIndirect}, nil
}
