package swapchain

import "errors"

// ErrStale is returned by AcquireNext/Present when the swapchain is
// OUT_OF_DATE or SUBOPTIMAL; the caller is expected to follow with Resize,
// per spec.md §4.L/§4.M's failure handling.
var ErrStale = errors.New("swapchain: stale, resize required")
