package terra

import (
	"log/slog"

	"github.com/andewx/terra/internal/workpool"
)

// Option configures CreateTerraInstance beyond its required positional
// arguments, per SPEC_FULL.md §6's expansion: the thread pool and logger are
// ambient-stack injection points, not part of the fixed external-interface
// signature spec.md §6 defines.
type Option func(*options)

type options struct {
	logger           *slog.Logger
	pool             workpool.Pool
	poolWorkers      int
	shaderPath       string
	instanceExts     []string
	deviceExts       []string
	enableValidation bool
	validationLayers []string
}

func defaultOptions() *options {
	return &options{
		poolWorkers: 3,
		shaderPath:  "./shaders/",
	}
}

// WithLogger sets the structured logger passed to the Vulkan device
// bootstrap (vkcore.New); the other subsystems take no logger.
// Defaults to slog.Default() when not given.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithPool supplies an already-constructed thread pool for CPU-side upload
// preparation. Defaults to an internal workpool.New(3) when not given.
func WithPool(pool workpool.Pool) Option {
	return func(o *options) { o.pool = pool }
}

// WithPoolWorkers overrides the worker count used when no explicit WithPool
// is supplied. Defaults to 3.
func WithPoolWorkers(n int) Option {
	return func(o *options) { o.poolWorkers = n }
}

// WithShaderPath sets the initial shader root path, equivalent to calling
// SetShaderPath immediately after construction.
func WithShaderPath(path string) Option {
	return func(o *options) { o.shaderPath = path }
}

// WithInstanceExtensions requests Vulkan instance extensions. Only the
// listed extensions are requested; Terra adds no
// instance extensions of its own, including the surface extensions.
func WithInstanceExtensions(exts ...string) Option {
	return func(o *options) { o.instanceExts = append(o.instanceExts, exts...) }
}

// WithDeviceExtensions requests additional Vulkan device extensions beyond
// VK_KHR_swapchain, which Terra always requests.
func WithDeviceExtensions(exts ...string) Option {
	return func(o *options) { o.deviceExts = append(o.deviceExts, exts...) }
}

// WithValidation enables the Vulkan validation layers, optionally restricted
// to a specific layer list (all available layers if none given).
func WithValidation(layers ...string) Option {
	return func(o *options) {
		o.enableValidation = true
		o.validationLayers = layers
	}
}
