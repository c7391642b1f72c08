package terra

import (
	"github.com/andewx/terra/internal/model"
	"github.com/andewx/terra/internal/pipeline"
)

// Camera is the per-frame camera constant buffer format, per spec.md §6.
type Camera = model.Camera

// ModelConstant is the per-model constant buffer format, per spec.md §6.
type ModelConstant = model.Constant

// Vertex is the per-vertex attribute format, per spec.md §6.
type Vertex = model.Vertex

// MeshInput is the caller-supplied mesh data for AddMeshBundle -- spec.md
// §4.N's `MeshBundleVS | MeshBundleMS` union, modeled as one struct whose
// Meshlets field is only populated on the mesh-shader draw path.
type MeshInput = model.MeshInput

// MeshID identifies a mesh bundle registered with AddMeshBundle.
type MeshID = model.MeshID

// BundleID identifies a model bundle registered with AddModelBundle.
type BundleID int

// TextureID identifies a texture registered with AddTexture.
type TextureID int

// EngineType selects which of the three draw-path polymorphism variants
// (spec.md §4.I) a Renderer uses for its whole lifetime.
type EngineType int

const (
	// IndividualDraw issues one DrawIndexed call per model (VS-individual).
	IndividualDraw EngineType = iota
	// IndirectDraw builds the VS-indirect pipeline. No compute culling pass
	// runs; each model is drawn with DrawIndexed, as in IndividualDraw.
	IndirectDraw
	// MeshDraw uses task+mesh shaders (MS).
	MeshDraw
)

func (e EngineType) variant() pipeline.Variant {
	switch e {
	case IndirectDraw:
		return pipeline.VariantIndirect
	case MeshDraw:
		return pipeline.VariantMesh
	default:
		return pipeline.VariantIndividual
	}
}

func (e EngineType) String() string {
	switch e {
	case IndividualDraw:
		return "IndividualDraw"
	case IndirectDraw:
		return "IndirectDraw"
	case MeshDraw:
		return "MeshDraw"
	default:
		return "Unknown"
	}
}
