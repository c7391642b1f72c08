package model

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/terra/internal/gpubuf"
	"github.com/andewx/terra/internal/upload"
)

// MeshID identifies a registered MeshBundle.
type MeshID int

// MeshInput is the caller-supplied mesh data for AddMeshBundle, per spec.md
// §6's MeshBundleVS | MeshBundleMS union.
type MeshInput struct {
	Vertices []Vertex
	Indices  []uint32
	// Meshlets is only used by the mesh-shader draw path; each entry is the
	// primitive-index sub-range (within Indices) belonging to one meshlet.
	Meshlets [][2]uint32 // {startIndex, indexCount}
}

// Bounds is a mesh's positive/negative axis-aligned extent, used for
// per-model frustum culling in the indirect draw path.
type Bounds struct {
	Positive, Negative lin3
}

type lin3 = [3]float32

// MeshBundle is a registered mesh's GPU sub-ranges, per spec.md §3.
type MeshBundle struct {
	VertexSlot   gpubuf.Slot
	IndexSlot    gpubuf.Slot
	IndexCount   uint32
	MeshletSlots []gpubuf.Slot // one per meshlet, mesh-shader path only
	Bounds       Bounds
}

// MeshManager owns every registered MeshBundle and the shared vertex/index
// pools bundles sub-allocate from, per spec.md §4.J.
type MeshManager struct {
	vertexPool  *gpubuf.SharedBuffer
	indexPool   *gpubuf.SharedBuffer
	meshletPool *gpubuf.SharedBuffer // nil unless the mesh-shader engine is active
	staging     *upload.Manager

	bundles []MeshBundle
}

// NewMeshManager creates a MeshManager over the given shared vertex/index
// pools. meshletPool may be nil for non-mesh-shader engines.
func NewMeshManager(vertexPool, indexPool, meshletPool *gpubuf.SharedBuffer, staging *upload.Manager) *MeshManager {
	return &MeshManager{vertexPool: vertexPool, indexPool: indexPool, meshletPool: meshletPool, staging: staging}
}

// AddMeshBundle reserves vertex/index (and optional meshlet) sub-ranges for
// in, enqueues their initial upload, and returns a stable MeshID. Fails
// with a non-nil error on empty vertex/index input, per spec.md §4.N's
// InvalidMesh validation (mapped by the caller to ErrInvalidArgument).
func (m *MeshManager) AddMeshBundle(in MeshInput) (MeshID, error) {
	if len(in.Vertices) == 0 || len(in.Indices) == 0 {
		return 0, fmt.Errorf("model: mesh bundle has empty vertex or index data")
	}

	vertexBytes := vertexBytes(in.Vertices)
	vSlot, err := m.vertexPool.Alloc(vk.DeviceSize(len(vertexBytes)), 4)
	if err != nil {
		return 0, fmt.Errorf("model: reserve vertex range: %w", err)
	}
	if err := m.staging.Enqueue(vertexBytes, m.vertexPool.BackingBuffer(), vSlot.Offset); err != nil {
		return 0, fmt.Errorf("model: enqueue vertex upload: %w", err)
	}

	indexBytes := indexBytes(in.Indices)
	iSlot, err := m.indexPool.Alloc(vk.DeviceSize(len(indexBytes)), 4)
	if err != nil {
		return 0, fmt.Errorf("model: reserve index range: %w", err)
	}
	if err := m.staging.Enqueue(indexBytes, m.indexPool.BackingBuffer(), iSlot.Offset); err != nil {
		return 0, fmt.Errorf("model: enqueue index upload: %w", err)
	}

	var meshletSlots []gpubuf.Slot
	if len(in.Meshlets) > 0 {
		if m.meshletPool == nil {
			return 0, fmt.Errorf("model: mesh bundle supplies meshlets but no meshlet pool is configured")
		}
		for _, ml := range in.Meshlets {
			mlBytes := indexBytes(in.Indices[ml[0] : ml[0]+ml[1]])
			slot, err := m.meshletPool.Alloc(vk.DeviceSize(len(mlBytes)), 4)
			if err != nil {
				return 0, fmt.Errorf("model: reserve meshlet range: %w", err)
			}
			if err := m.staging.Enqueue(mlBytes, m.meshletPool.BackingBuffer(), slot.Offset); err != nil {
				return 0, fmt.Errorf("model: enqueue meshlet upload: %w", err)
			}
			meshletSlots = append(meshletSlots, slot)
		}
	}

	bundle := MeshBundle{
		VertexSlot:   vSlot,
		IndexSlot:    iSlot,
		IndexCount:   uint32(len(in.Indices)),
		MeshletSlots: meshletSlots,
		Bounds:       computeBounds(in.Vertices),
	}
	m.bundles = append(m.bundles, bundle)
	return MeshID(len(m.bundles) - 1), nil
}

// Bundle resolves id to its MeshBundle.
func (m *MeshManager) Bundle(id MeshID) (MeshBundle, bool) {
	if int(id) < 0 || int(id) >= len(m.bundles) {
		return MeshBundle{}, false
	}
	return m.bundles[id], true
}

func computeBounds(verts []Vertex) Bounds {
	if len(verts) == 0 {
		return Bounds{}
	}
	pos := verts[0].Position
	b := Bounds{Positive: lin3{pos[0], pos[1], pos[2]}, Negative: lin3{pos[0], pos[1], pos[2]}}
	for _, v := range verts[1:] {
		for i := 0; i < 3; i++ {
			if v.Position[i] > b.Positive[i] {
				b.Positive[i] = v.Position[i]
			}
			if v.Position[i] < b.Negative[i] {
				b.Negative[i] = v.Position[i]
			}
		}
	}
	return b
}
