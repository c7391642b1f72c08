package model

import "unsafe"

// vertexBytes reinterprets verts as its raw GPU wire bytes. Vertex has no
// padding gaps (vec3+vec3+[2]float32, all float32 fields), so this is a
// direct reinterpretation rather than a packing copy.
func vertexBytes(verts []Vertex) []byte {
	if len(verts) == 0 {
		return nil
	}
	const stride = int(unsafe.Sizeof(Vertex{}))
	return unsafe.Slice((*byte)(unsafe.Pointer(&verts[0])), len(verts)*stride)
}

// indexBytes reinterprets indices as its raw GPU wire bytes (uint32, tightly
// packed).
func indexBytes(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	const stride = int(unsafe.Sizeof(uint32(0)))
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*stride)
}

// constantBytes reinterprets a Constant as its raw GPU wire bytes.
func constantBytes(c *Constant) []byte {
	const size = int(unsafe.Sizeof(Constant{}))
	return unsafe.Slice((*byte)(unsafe.Pointer(c)), size)
}
