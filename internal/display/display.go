// Package display implements DisplayManager and the viewport/scissor state
// of spec.md §4.P. Grounded on vulkan-go-asche's display.go's
// CoreDisplay.GetSize for the windowing-side query, enriched with
// github.com/go-gl/glfw/v3.3/glfw monitor enumeration for the
// platform-query fallback the spec calls for.
package display

import (
	"errors"
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// ErrNoSuchDisplay marks a GetDisplayResolution index out of range.
var ErrNoSuchDisplay = errors.New("display: no such display")

// Manager enumerates available displays, per spec.md §4.P. It prefers a
// window's own reported framebuffer size (the SurfaceProvider contract in
// internal/vkcore) when one is available, and falls back to glfw's monitor
// enumeration otherwise.
type Manager struct {
	surface vkcore_SurfaceProvider
}

// vkcore_SurfaceProvider mirrors internal/vkcore.SurfaceProvider without an
// import cycle; display only needs FramebufferSize.
type vkcore_SurfaceProvider interface {
	FramebufferSize() (width, height uint32)
}

// NewManager creates a Manager. surface may be nil if no window surface
// provider is wired, in which case every query falls back to monitor
// enumeration.
func NewManager(surface vkcore_SurfaceProvider) *Manager {
	return &Manager{surface: surface}
}

// GetDisplayResolution returns the resolution of the index'th enumerated
// display, preferring the live window framebuffer for index 0 when a
// surface provider is wired, matching spec.md §4.P's "falls back to a
// platform query (e.g. enumerating monitors)" semantics.
func (m *Manager) GetDisplayResolution(index int) (uint32, uint32, error) {
	if index == 0 && m.surface != nil {
		w, h := m.surface.FramebufferSize()
		if w > 0 && h > 0 {
			return w, h, nil
		}
	}

	monitors := glfw.GetMonitors()
	if index < 0 || index >= len(monitors) {
		return 0, 0, fmt.Errorf("%w: index %d, %d displays", ErrNoSuchDisplay, index, len(monitors))
	}
	mode := monitors[index].GetVideoMode()
	return uint32(mode.Width), uint32(mode.Height), nil
}

// ViewportAndScissor computes a Y-flipped viewport (height = -h, y = h) for
// a right-handed up convention, with a scissor covering the full extent,
// per spec.md §4.P.
func ViewportAndScissor(extent vk.Extent2D) (vk.Viewport, vk.Rect2D) {
	viewport := vk.Viewport{
		X:        0,
		Y:        float32(extent.Height),
		Width:    float32(extent.Width),
		Height:   -float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{Offset: vk.Offset2D{}, Extent: extent}
	return viewport, scissor
}
