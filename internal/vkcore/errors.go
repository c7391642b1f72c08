package vkcore

import (
	"fmt"
	"runtime"

	vk "github.com/vulkan-go/vulkan"
)

// IsError reports whether ret is anything other than vk.Success.
func IsError(ret vk.Result) bool {
	return ret != vk.Success
}

// NewError wraps a non-success vk.Result with the call site that produced it.
// Returns nil when ret is vk.Success.
func NewError(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return fmt.Errorf("vulkan: result %d", ret)
	}
	fn := runtime.FuncForPC(pc)
	return fmt.Errorf("vulkan: result %d in %s", ret, fn.Name())
}

// OrPanic panics with err after running finalizers, in call order. Used at
// internal helper boundaries; the public API recovers these via CheckErr.
func OrPanic(err error, finalizers ...func()) {
	if err != nil {
		for _, fn := range finalizers {
			fn()
		}
		panic(err)
	}
}

// CheckErr recovers a panic into *err. Deferred at the public API boundary
// so no panic started by OrPanic crosses into caller code.
func CheckErr(err *error) {
	if v := recover(); v != nil {
		switch e := v.(type) {
		case error:
			*err = e
		default:
			*err = fmt.Errorf("%+v", v)
		}
	}
}
