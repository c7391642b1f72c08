package pipeline

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/vkcore"
)

// Layout aggregates descriptor-set layouts and accumulated push-constant
// ranges, per spec.md §4.G. Each AddPushConstantRange appends a range at the
// current offset and advances the offset by its size -- ranges are
// contiguous by construction.
type Layout struct {
	device      vk.Device
	descSets    []vk.DescriptorSetLayout
	ranges      []vk.PushConstantRange
	nextOffset  uint32
	Handle      vk.PipelineLayout
}

// NewLayout builds a Layout handle from the given descriptor-set layouts
// and the push-constant ranges accumulated via AddPushConstantRange calls
// on a pending builder; call Build once all ranges are added.
func NewLayout(device vk.Device, descSets []vk.DescriptorSetLayout) *Layout {
	return &Layout{device: device, descSets: descSets}
}

// AddPushConstantRange appends a push-constant range at the builder's
// current offset and advances the offset by size, per spec.md §4.G.
func (l *Layout) AddPushConstantRange(stage vk.ShaderStageFlagBits, size uint32) {
	l.ranges = append(l.ranges, vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(stage),
		Offset:     l.nextOffset,
		Size:       size,
	})
	l.nextOffset += size
}

// Build creates the vk.PipelineLayout from the accumulated descriptor-set
// layouts and push-constant ranges.
func (l *Layout) Build() error {
	var handle vk.PipelineLayout
	ret := vk.CreatePipelineLayout(l.device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(l.descSets)),
		PSetLayouts:            l.descSets,
		PushConstantRangeCount: uint32(len(l.ranges)),
		PPushConstantRanges:    l.ranges,
	}, nil, &handle)
	if err := vkcore.NewError(ret); err != nil {
		return fmt.Errorf("pipeline: create layout: %w", err)
	}
	l.Handle = handle
	return nil
}

// Destroy releases the pipeline layout handle.
func (l *Layout) Destroy() {
	if l.Handle != nil {
		vk.DestroyPipelineLayout(l.device, l.Handle, nil)
	}
}
