package model

import (
	"testing"
	"unsafe"

	lin "github.com/xlab/linmath"
)

func TestVertexBytesRoundTrip(t *testing.T) {
	verts := []Vertex{
		{Position: lin.Vec3{1, 2, 3}, Normal: lin.Vec3{0, 1, 0}, UV: [2]float32{0.5, 0.25}},
		{Position: lin.Vec3{4, 5, 6}, Normal: lin.Vec3{1, 0, 0}, UV: [2]float32{1, 1}},
	}
	b := vertexBytes(verts)
	wantLen := len(verts) * int(unsafe.Sizeof(Vertex{}))
	if len(b) != wantLen {
		t.Fatalf("len(vertexBytes) = %d, want %d", len(b), wantLen)
	}

	back := unsafe.Slice((*Vertex)(unsafe.Pointer(&b[0])), len(verts))
	for i := range verts {
		if back[i] != verts[i] {
			t.Errorf("round-trip[%d] = %+v, want %+v", i, back[i], verts[i])
		}
	}
}

func TestVertexBytesEmpty(t *testing.T) {
	if b := vertexBytes(nil); b != nil {
		t.Errorf("vertexBytes(nil) = %v, want nil", b)
	}
}

func TestIndexBytesRoundTrip(t *testing.T) {
	indices := []uint32{10, 20, 30, 40}
	b := indexBytes(indices)
	if len(b) != len(indices)*4 {
		t.Fatalf("len(indexBytes) = %d, want %d", len(b), len(indices)*4)
	}
	back := unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(indices))
	for i := range indices {
		if back[i] != indices[i] {
			t.Errorf("round-trip[%d] = %d, want %d", i, back[i], indices[i])
		}
	}
}

func TestIndexBytesEmpty(t *testing.T) {
	if b := indexBytes(nil); b != nil {
		t.Errorf("indexBytes(nil) = %v, want nil", b)
	}
}

func TestConstantBytes(t *testing.T) {
	c := Constant{TextureIndex: 7}
	b := constantBytes(&c)
	if len(b) != int(unsafe.Sizeof(Constant{})) {
		t.Fatalf("len(constantBytes) = %d, want %d", len(b), unsafe.Sizeof(Constant{}))
	}
	back := (*Constant)(unsafe.Pointer(&b[0]))
	if back.TextureIndex != 7 {
		t.Errorf("round-trip TextureIndex = %d, want 7", back.TextureIndex)
	}
}
