package pipeline

import (
	"errors"
	"testing"
)

func TestLoadNotFound(t *testing.T) {
	l := NewLoader(nil, "./does-not-exist/")

	_, err := l.Load("NoSuchShader")
	if err == nil {
		t.Fatal("Load of a missing file returned nil error")
	}

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("error is not a *LoadError: %v", err)
	}
	if loadErr.Kind != ErrNotFound {
		t.Errorf("Kind = %v, want ErrNotFound", loadErr.Kind)
	}
	if loadErr.Path != "./does-not-exist/NoSuchShader.spv" {
		t.Errorf("Path = %q, want %q", loadErr.Path, "./does-not-exist/NoSuchShader.spv")
	}
	if loadErr.Unwrap() != loadErr.Err {
		t.Errorf("Unwrap() does not return the underlying os error")
	}
}

func TestSetPathChangesResolution(t *testing.T) {
	l := NewLoader(nil, "./wrong-path/")
	l.SetPath("/assets/shaders/")

	if l.path != "/assets/shaders/" {
		t.Errorf("path = %q, want %q", l.path, "/assets/shaders/")
	}
}

func TestLoadNotFoundUsesCurrentPath(t *testing.T) {
	dir := t.TempDir() // empty: Foo.spv does not exist here either
	l := NewLoader(nil, "./wrong-path/")
	l.SetPath(dir + "/")

	_, err := l.Load("Foo")
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("error is not a *LoadError: %v", err)
	}
	if loadErr.Kind != ErrNotFound {
		t.Errorf("Kind = %v, want ErrNotFound", loadErr.Kind)
	}
	if loadErr.Path != dir+"/Foo.spv" {
		t.Errorf("Path = %q, want %q", loadErr.Path, dir+"/Foo.spv")
	}
}

func TestLoadErrorMessage(t *testing.T) {
	le := &LoadError{Kind: ErrNotFound, Path: "foo.spv", Err: errors.New("boom")}
	want := `pipeline: load shader "foo.spv": boom`
	if got := le.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
