package terra

import (
	"errors"
	"testing"
)

func TestErrorCodeString(t *testing.T) {
	cases := map[ErrorCode]string{
		ErrInvalidArgument: "InvalidArgument",
		ErrShaderNotFound:  "ShaderNotFound",
		ErrShaderInvalid:   "ShaderInvalid",
		ErrOutOfMemory:     "OutOfMemory",
		ErrSwapchainStale:  "SwapchainStale",
		ErrDeviceLost:      "DeviceLost",
		ErrIOError:         "IOError",
		ErrInternal:        "Internal",
		ErrUnknownMesh:     "UnknownMesh",
		ErrorCode(999):     "Unknown",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("ErrorCode(%d).String() = %q, want %q", code, got, want)
		}
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := newErr(ErrOutOfMemory, "AddTexture", cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	if !IsCode(err, ErrOutOfMemory) {
		t.Errorf("IsCode(err, ErrOutOfMemory) = false, want true")
	}
	if IsCode(err, ErrInternal) {
		t.Errorf("IsCode(err, ErrInternal) = true, want false")
	}
	if IsCode(cause, ErrOutOfMemory) {
		t.Errorf("IsCode(plain error, _) = true, want false")
	}

	wantMsg := "terra: AddTexture: OutOfMemory: boom"
	if got := err.Error(); got != wantMsg {
		t.Errorf("Error() = %q, want %q", got, wantMsg)
	}
}

func TestErrorWithoutCause(t *testing.T) {
	err := newErr(ErrSwapchainStale, "Render", nil)
	want := "terra: Render: SwapchainStale"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.Unwrap() != nil {
		t.Errorf("Unwrap() = %v, want nil", err.Unwrap())
	}
}
