// Package descriptor implements DescriptorSetLayout and DescriptorBuffer of
// spec.md §4.F: binding buffers/images to descriptor slots. Grounded on
// vulkan-go-asche's buffers.go's NewCoreUniformBuffer, which builds
// one DescriptorSetLayoutBinding plus a DescriptorSetLayoutCreateInfo per
// uniform buffer; generalized into a reusable multi-binding layout builder
// and a classic pool+set DescriptorBuffer (spec.md allows either a physical
// buffer or a descriptor pool+set implementation -- the pool+set variant is
// used here since vulkan-go's binding surface matches the classic
// descriptor API, not VK_EXT_descriptor_buffer).
package descriptor

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/vkcore"
)

// Binding describes one slot in a DescriptorSetLayout, per spec.md §4.F.
type Binding struct {
	Index        uint32
	Type         vk.DescriptorType
	Count        uint32
	Stages       vk.ShaderStageFlagBits
	UpdateAfterBind bool
}

// Layout is one vk.DescriptorSetLayout built from a fixed binding list,
// created once per render-engine variant.
type Layout struct {
	device  vk.Device
	Handle  vk.DescriptorSetLayout
	bindings []Binding
}

// NewLayout creates a DescriptorSetLayout from bindings.
func NewLayout(device vk.Device, bindings []Binding) (*Layout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	var bindingFlags []vk.DescriptorBindingFlags
	hasFlags := false
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Index,
			DescriptorType:  b.Type,
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
		var flags vk.DescriptorBindingFlags
		if b.UpdateAfterBind {
			flags = vk.DescriptorBindingFlags(vk.DescriptorBindingUpdateAfterBindBit)
			hasFlags = true
		}
		bindingFlags = append(bindingFlags, flags)
	}

	create := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	if hasFlags {
		create.Flags = vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreateUpdateAfterBindPoolBit)
		create.PNext = &vk.DescriptorSetLayoutBindingFlagsCreateInfo{
			SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
			BindingCount:  uint32(len(bindingFlags)),
			PBindingFlags: bindingFlags,
		}
	}

	var handle vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(device, &create, nil, &handle)
	if err := vkcore.NewError(ret); err != nil {
		return nil, fmt.Errorf("descriptor: create layout: %w", err)
	}
	return &Layout{device: device, Handle: handle, bindings: bindings}, nil
}

// Destroy releases the layout handle.
func (l *Layout) Destroy() {
	vk.DestroyDescriptorSetLayout(l.device, l.Handle, nil)
}

// Buffer holds one descriptor pool and the sets allocated from it against a
// Layout, and exposes BindBuffer/BindImage writes, per spec.md §4.F.
type Buffer struct {
	device vk.Device
	pool   vk.DescriptorPool
	layout *Layout
	Sets   []vk.DescriptorSet
}

// NewBuffer allocates setCount descriptor sets against layout from a fresh
// pool sized for layout's bindings.
func NewBuffer(device vk.Device, layout *Layout, setCount uint32) (*Buffer, error) {
	var sizes []vk.DescriptorPoolSize
	for _, b := range layout.bindings {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: b.Type, DescriptorCount: b.Count * setCount})
	}

	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateUpdateAfterBindBit),
		MaxSets:       setCount,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &pool)
	if err := vkcore.NewError(ret); err != nil {
		return nil, fmt.Errorf("descriptor: create pool: %w", err)
	}

	layouts := make([]vk.DescriptorSetLayout, setCount)
	for i := range layouts {
		layouts[i] = layout.Handle
	}
	sets := make([]vk.DescriptorSet, setCount)
	ret = vk.AllocateDescriptorSets(device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: setCount,
		PSetLayouts:        layouts,
	}, sets)
	if err := vkcore.NewError(ret); err != nil {
		vk.DestroyDescriptorPool(device, pool, nil)
		return nil, fmt.Errorf("descriptor: allocate sets: %w", err)
	}

	return &Buffer{device: device, pool: pool, layout: layout, Sets: sets}, nil
}

// BindBuffer writes a buffer-range descriptor to the given binding on set
// index, per spec.md §4.F.
func (b *Buffer) BindBuffer(setIndex int, binding uint32, descType vk.DescriptorType, buf vk.Buffer, offset, size vk.DeviceSize) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          b.Sets[setIndex],
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  descType,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buf, Offset: offset, Range: size,
		}},
	}
	vk.UpdateDescriptorSets(b.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// BindImage writes a combined-image-sampler descriptor to the given
// binding on set index, per spec.md §4.F.
func (b *Buffer) BindImage(setIndex int, binding uint32, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          b.Sets[setIndex],
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler: sampler, ImageView: view, ImageLayout: layout,
		}},
	}
	vk.UpdateDescriptorSets(b.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// BindImageAt writes a combined-image-sampler descriptor at a specific
// array element of a variable-count binding (e.g. a texture array bound
// UPDATE_AFTER_BIND), per spec.md §4.F's binding-flags invariant.
func (b *Buffer) BindImageAt(setIndex int, binding, arrayElement uint32, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          b.Sets[setIndex],
		DstBinding:      binding,
		DstArrayElement: arrayElement,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler: sampler, ImageView: view, ImageLayout: layout,
		}},
	}
	vk.UpdateDescriptorSets(b.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// Destroy releases the descriptor pool (and implicitly every set allocated
// from it).
func (b *Buffer) Destroy() {
	vk.DestroyDescriptorPool(b.device, b.pool, nil)
}
