package terra

import (
	"testing"

	"github.com/andewx/terra/internal/pipeline"
)

func TestEngineTypeVariant(t *testing.T) {
	cases := []struct {
		engine EngineType
		want   pipeline.Variant
	}{
		{IndividualDraw, pipeline.VariantIndividual},
		{IndirectDraw, pipeline.VariantIndirect},
		{MeshDraw, pipeline.VariantMesh},
		{EngineType(99), pipeline.VariantIndividual},
	}
	for _, c := range cases {
		if got := c.engine.variant(); got != c.want {
			t.Errorf("%v.variant() = %v, want %v", c.engine, got, c.want)
		}
	}
}

func TestEngineTypeString(t *testing.T) {
	cases := map[EngineType]string{
		IndividualDraw:  "IndividualDraw",
		IndirectDraw:    "IndirectDraw",
		MeshDraw:        "MeshDraw",
		EngineType(99):  "Unknown",
	}
	for engine, want := range cases {
		if got := engine.String(); got != want {
			t.Errorf("EngineType(%d).String() = %q, want %q", engine, got, want)
		}
	}
}
