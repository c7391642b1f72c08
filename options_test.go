package terra

import (
	"log/slog"
	"testing"

	"github.com/andewx/terra/internal/workpool"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.poolWorkers != 3 {
		t.Errorf("default poolWorkers = %d, want 3", o.poolWorkers)
	}
	if o.shaderPath != "./shaders/" {
		t.Errorf("default shaderPath = %q, want %q", o.shaderPath, "./shaders/")
	}
	if o.pool != nil {
		t.Errorf("default pool = %v, want nil", o.pool)
	}
	if o.enableValidation {
		t.Errorf("default enableValidation = true, want false")
	}
}

func TestOptionsApply(t *testing.T) {
	o := defaultOptions()
	log := slog.Default()
	pool := workpool.New(1)

	for _, opt := range []Option{
		WithLogger(log),
		WithPool(pool),
		WithPoolWorkers(7),
		WithShaderPath("/assets/shaders/"),
		WithInstanceExtensions("VK_KHR_surface", "VK_KHR_win32_surface"),
		WithDeviceExtensions("VK_KHR_swapchain"),
		WithValidation("VK_LAYER_KHRONOS_validation"),
	} {
		opt(o)
	}

	if o.logger != log {
		t.Errorf("logger not applied")
	}
	if o.pool != pool {
		t.Errorf("pool not applied")
	}
	if o.poolWorkers != 7 {
		t.Errorf("poolWorkers = %d, want 7", o.poolWorkers)
	}
	if o.shaderPath != "/assets/shaders/" {
		t.Errorf("shaderPath = %q, want %q", o.shaderPath, "/assets/shaders/")
	}
	if len(o.instanceExts) != 2 || o.instanceExts[0] != "VK_KHR_surface" {
		t.Errorf("instanceExts = %v", o.instanceExts)
	}
	if len(o.deviceExts) != 1 || o.deviceExts[0] != "VK_KHR_swapchain" {
		t.Errorf("deviceExts = %v", o.deviceExts)
	}
	if !o.enableValidation {
		t.Errorf("enableValidation = false, want true")
	}
	if len(o.validationLayers) != 1 || o.validationLayers[0] != "VK_LAYER_KHRONOS_validation" {
		t.Errorf("validationLayers = %v", o.validationLayers)
	}
}

func TestWithInstanceExtensionsAccumulates(t *testing.T) {
	o := defaultOptions()
	WithInstanceExtensions("A")(o)
	WithInstanceExtensions("B", "C")(o)
	want := []string{"A", "B", "C"}
	if len(o.instanceExts) != len(want) {
		t.Fatalf("instanceExts = %v, want %v", o.instanceExts, want)
	}
	for i, name := range want {
		if o.instanceExts[i] != name {
			t.Errorf("instanceExts[%d] = %q, want %q", i, o.instanceExts[i], name)
		}
	}
}
