// Package model implements ModelManager and MeshManager (spec.md §4.J):
// owning per-bundle model data, reserving shared-pool sub-ranges for
// vertex/index/constant data, coalescing bundles into pipelines by
// fragment-shader name, and dispatching the per-pipeline draw loop.
// Grounded on vulkan-go-asche's managers.go's manager-owns-a-slice
// bookkeeping style, generalized from raw device resources to
// internal/gpubuf.SharedBuffer-backed sub-ranges.
package model

import lin "github.com/xlab/linmath"

// Camera is the per-frame camera constant buffer format, per spec.md §6:
// tightly packed view+projection, 128 bytes.
type Camera struct {
	View       lin.Mat4x4
	Projection lin.Mat4x4
}

// Constant is the per-model constant buffer format, per spec.md §6, padded
// for GLSL std140 vec3->vec4 alignment rules.
type Constant struct {
	UVInfo         lin.Vec4
	ModelMatrix    lin.Mat4x4
	TextureIndex   uint32
	_padding0      [3]float32
	ModelOffset    lin.Vec3
	_padding1      float32
	PositiveBounds lin.Vec3
	_padding2      float32
	NegativeBounds lin.Vec3
	_padding3      float32
}

// Vertex is the per-vertex attribute format for the VS draw paths, per
// spec.md §6: 32 bytes.
type Vertex struct {
	Position lin.Vec3
	Normal   lin.Vec3
	UV       [2]float32
}

// VulkanProjection converts an OpenGL-style projection matrix (the
// convention xlab/linmath's perspective helpers produce) to Vulkan's
// top-left, [0,1]-depth clip space. Grounded on
// vulkan-go-asche's math.go's VulkanProjectionMat.
func VulkanProjection(dst *lin.Mat4x4, proj *lin.Mat4x4) {
	dst.Fill(1.0)
	dst.ScaleAniso(dst, 1.0, -1.0, 1.0)
	dst.ScaleAniso(dst, 1.0, 1.0, 0.5)
	dst.Translate(0.0, 0.0, 1.0)
	dst.Mult(dst, proj)
}
