package vkcore

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// NativeWindowSurface adapts the opaque window/module handles CreateTerraInstance
// receives (spec.md §1's "external capability with a fixed contract: given an
// instance and opaque window/module handles, yield a drawable surface") into
// a SurfaceProvider, grounded on vulkan-go-asche's display.go's
// core.window.CreateWindowSurface call and runsys-core's android/ios drivers,
// which both resolve to the same vk.CreateWindowSurface entry point over a
// native window pointer.
type NativeWindowSurface struct {
	Window unsafe.Pointer
	Module unsafe.Pointer // unused by vk.CreateWindowSurface; kept for platforms that need it alongside Window
	Width  uint32
	Height uint32
}

// CreateSurface implements SurfaceProvider.
func (s *NativeWindowSurface) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	var surface vk.Surface
	ret := vk.CreateWindowSurface(instance, s.Window, nil, &surface)
	if err := NewError(ret); err != nil {
		return nil, fmt.Errorf("vkcore: create window surface: %w", err)
	}
	return surface, nil
}

// FramebufferSize implements SurfaceProvider, returning the extent supplied
// at construction. Callers must feed a fresh size into Renderer.Resize when
// the native window actually changes size; Terra has no way to observe that
// on its own since window-event pumping is out of scope.
func (s *NativeWindowSurface) FramebufferSize() (width, height uint32) {
	return s.Width, s.Height
}
