package model

import (
	"testing"

	lin "github.com/xlab/linmath"
)

func TestComputeBoundsEmpty(t *testing.T) {
	if got := computeBounds(nil); got != (Bounds{}) {
		t.Errorf("computeBounds(nil) = %+v, want zero value", got)
	}
}

func TestComputeBoundsSingleVertex(t *testing.T) {
	verts := []Vertex{{Position: lin.Vec3{1, -2, 3}}}
	got := computeBounds(verts)
	want := Bounds{Positive: lin3{1, -2, 3}, Negative: lin3{1, -2, 3}}
	if got != want {
		t.Errorf("computeBounds(single) = %+v, want %+v", got, want)
	}
}

func TestComputeBoundsMultipleVertices(t *testing.T) {
	verts := []Vertex{
		{Position: lin.Vec3{1, 2, -3}},
		{Position: lin.Vec3{-5, 10, 0}},
		{Position: lin.Vec3{2, -1, 4}},
	}
	got := computeBounds(verts)
	want := Bounds{
		Positive: lin3{2, 10, 4},
		Negative: lin3{-5, -1, -3},
	}
	if got != want {
		t.Errorf("computeBounds(multi) = %+v, want %+v", got, want)
	}
}
