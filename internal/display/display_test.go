package display

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestViewportAndScissor(t *testing.T) {
	extent := vk.Extent2D{Width: 1920, Height: 1080}
	viewport, scissor := ViewportAndScissor(extent)

	if viewport.X != 0 {
		t.Errorf("viewport.X = %v, want 0", viewport.X)
	}
	if viewport.Y != 1080 {
		t.Errorf("viewport.Y = %v, want 1080 (flipped to extent height)", viewport.Y)
	}
	if viewport.Width != 1920 {
		t.Errorf("viewport.Width = %v, want 1920", viewport.Width)
	}
	if viewport.Height != -1080 {
		t.Errorf("viewport.Height = %v, want -1080 (Y-flip)", viewport.Height)
	}
	if viewport.MinDepth != 0 || viewport.MaxDepth != 1 {
		t.Errorf("depth range = [%v, %v], want [0, 1]", viewport.MinDepth, viewport.MaxDepth)
	}

	if scissor.Offset.X != 0 || scissor.Offset.Y != 0 {
		t.Errorf("scissor.Offset = %+v, want zero", scissor.Offset)
	}
	if scissor.Extent != extent {
		t.Errorf("scissor.Extent = %+v, want %+v", scissor.Extent, extent)
	}
}

func TestViewportAndScissorZeroExtent(t *testing.T) {
	viewport, scissor := ViewportAndScissor(vk.Extent2D{})
	if viewport.Y != 0 || viewport.Height != 0 {
		t.Errorf("viewport = %+v, want zeroed Y/Height for zero extent", viewport)
	}
	if scissor.Extent.Width != 0 || scissor.Extent.Height != 0 {
		t.Errorf("scissor.Extent = %+v, want zero", scissor.Extent)
	}
}
