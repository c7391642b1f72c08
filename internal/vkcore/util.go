package vkcore

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// SafeString returns s as the NUL-terminated string vulkan-go expects for
// PApplicationName / PEngineName style fields.
func SafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0x00 {
		return s + "\x00"
	}
	return s
}

// SafeStrings applies SafeString to every element.
func SafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = SafeString(s)
	}
	return out
}

// SliceUint32 reinterprets a SPIR-V byte blob as the uint32 words
// vk.ShaderModuleCreateInfo.PCode expects.
func SliceUint32(data []byte) []uint32 {
	const wordSize = int(unsafe.Sizeof(uint32(0)))
	sh := unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/wordSize)
	out := make([]uint32, len(sh))
	copy(out, sh)
	return out
}

// CheckExisting intersects wanted against the actual list available on the
// platform, returning the usable subset and the number of entries that were
// missing.
func CheckExisting(actual, wanted []string) (usable []string, missing int) {
	for _, w := range wanted {
		found := false
		for _, a := range actual {
			if a == w {
				found = true
				break
			}
		}
		if found {
			usable = append(usable, SafeString(w))
		} else {
			missing++
		}
	}
	return usable, missing
}

// FindMemoryTypeIndex resolves a memory-type index by intersecting typeMask
// (device memory-type bits a resource is compatible with) against a set of
// required property flags, preferring the lowest matching index.
func FindMemoryTypeIndex(props vk.PhysicalDeviceMemoryProperties, typeMask uint32, required vk.MemoryPropertyFlagBits) (uint32, bool) {
	props.Deref()
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		if typeMask&(1<<i) == 0 {
			continue
		}
		props.MemoryTypes[i].Deref()
		flags := props.MemoryTypes[i].PropertyFlags
		if flags&vk.MemoryPropertyFlags(required) == vk.MemoryPropertyFlags(required) {
			return i, true
		}
	}
	return 0, false
}
