package gpubuf

import "unsafe"

// unsafeBytes reinterprets a mapped Vulkan memory pointer as a byte slice of
// length n, for CPU-side writes through persistent mappings.
func unsafeBytes(ptr unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(ptr), n)
}
