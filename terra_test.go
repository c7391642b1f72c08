package terra

import (
	"errors"
	"fmt"
	"testing"
	"unsafe"

	"github.com/andewx/terra/internal/model"
	"github.com/andewx/terra/internal/pipeline"
	vk "github.com/vulkan-go/vulkan"
)

func TestShaderNamesFor(t *testing.T) {
	cases := []struct {
		engine           EngineType
		wantVertexOrMesh string
		wantTask         string
	}{
		{IndividualDraw, "VertexShaderIndividual", ""},
		{IndirectDraw, "VertexShaderIndirect", ""},
		{MeshDraw, "MeshShaderMSIndividual", "MeshShaderTSIndividual"},
	}
	for _, c := range cases {
		vertexOrMesh, task := shaderNamesFor(c.engine)
		if vertexOrMesh != c.wantVertexOrMesh || task != c.wantTask {
			t.Errorf("shaderNamesFor(%v) = (%q, %q), want (%q, %q)",
				c.engine, vertexOrMesh, task, c.wantVertexOrMesh, c.wantTask)
		}
	}
}

func TestVertexBindingDescriptions(t *testing.T) {
	bindings := vertexBindingDescriptions()
	if len(bindings) != 1 {
		t.Fatalf("len(bindings) = %d, want 1", len(bindings))
	}
	b := bindings[0]
	if b.Binding != 0 {
		t.Errorf("Binding = %d, want 0", b.Binding)
	}
	if b.Stride != uint32(unsafe.Sizeof(Vertex{})) {
		t.Errorf("Stride = %d, want %d", b.Stride, unsafe.Sizeof(Vertex{}))
	}
	if b.InputRate != vk.VertexInputRateVertex {
		t.Errorf("InputRate = %v, want VertexInputRateVertex", b.InputRate)
	}
}

func TestVertexAttributeDescriptions(t *testing.T) {
	attrs := vertexAttributeDescriptions()
	if len(attrs) != 3 {
		t.Fatalf("len(attrs) = %d, want 3", len(attrs))
	}
	wantOffsets := []uint32{0, 12, 24}
	wantFormats := []vk.Format{
		vk.FormatR32g32b32Sfloat,
		vk.FormatR32g32b32Sfloat,
		vk.FormatR32g32Sfloat,
	}
	for i, a := range attrs {
		if a.Location != uint32(i) {
			t.Errorf("attrs[%d].Location = %d, want %d", i, a.Location, i)
		}
		if a.Binding != 0 {
			t.Errorf("attrs[%d].Binding = %d, want 0", i, a.Binding)
		}
		if a.Offset != wantOffsets[i] {
			t.Errorf("attrs[%d].Offset = %d, want %d", i, a.Offset, wantOffsets[i])
		}
		if a.Format != wantFormats[i] {
			t.Errorf("attrs[%d].Format = %v, want %v", i, a.Format, wantFormats[i])
		}
	}
}

func TestCameraBytes(t *testing.T) {
	var c Camera
	b := cameraBytes(&c)
	if len(b) != int(unsafe.Sizeof(Camera{})) {
		t.Fatalf("len(cameraBytes) = %d, want %d", len(b), unsafe.Sizeof(Camera{}))
	}
	// mutating the source struct should be visible through the returned
	// slice, since cameraBytes reinterprets rather than copies.
	b2 := cameraBytes(&c)
	for i := range b2 {
		b2[i] = 0xAB
	}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&c)), int(unsafe.Sizeof(Camera{})))
	for i := range raw {
		if raw[i] != 0xAB {
			t.Fatalf("byte %d = %x, want 0xAB (cameraBytes should alias its source)", i, raw[i])
		}
	}
}

func TestMapModelBundleErrorUnknownMesh(t *testing.T) {
	src := fmt.Errorf("wrap: %w", model.ErrUnknownMesh)
	got := mapModelBundleError(src)
	if !IsCode(got, ErrUnknownMesh) {
		t.Errorf("mapModelBundleError(unknown mesh) code = %v, want ErrUnknownMesh", got.Code)
	}
}

func TestMapModelBundleErrorShaderNotFound(t *testing.T) {
	src := &pipeline.LoadError{Kind: pipeline.ErrNotFound, Path: "foo.spv", Err: errors.New("open failed")}
	got := mapModelBundleError(src)
	if !IsCode(got, ErrShaderNotFound) {
		t.Errorf("mapModelBundleError(not found) code = %v, want ErrShaderNotFound", got.Code)
	}
}

func TestMapModelBundleErrorShaderInvalid(t *testing.T) {
	src := &pipeline.LoadError{Kind: pipeline.ErrInvalid, Path: "foo.spv", Err: errors.New("bad module")}
	got := mapModelBundleError(src)
	if !IsCode(got, ErrShaderInvalid) {
		t.Errorf("mapModelBundleError(invalid) code = %v, want ErrShaderInvalid", got.Code)
	}
}

func TestMapModelBundleErrorFallsBackToInternal(t *testing.T) {
	src := errors.New("something else went wrong")
	got := mapModelBundleError(src)
	if !IsCode(got, ErrInternal) {
		t.Errorf("mapModelBundleError(generic) code = %v, want ErrInternal", got.Code)
	}
}
