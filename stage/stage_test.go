package stage

import (
	"errors"
	"testing"

	"github.com/gogpu/naga/ir"
)

func TestResolveHardwareStage(t *testing.T) {
	tests := []struct {
		name   string
		active ActiveSet
		target LogicalStage
		want   HardwareStage
	}{
		{"vs alone", NewActiveSet(VS, FS), VS, Vertex},
		{"fs", NewActiveSet(VS, FS), FS, Fragment},
		{"vs before gs", NewActiveSet(VS, GS, GSCopy, FS), VS, Export},
		{"gs", NewActiveSet(VS, GS, GSCopy, FS), GS, Geometry},
		{"copy shader", NewActiveSet(VS, GS, GSCopy, FS), GSCopy, Vertex},
		{"vs with tess", NewActiveSet(VS, TCS, TES, FS), VS, Local},
		{"tcs", NewActiveSet(VS, TCS, TES, FS), TCS, Hull},
		{"tes", NewActiveSet(VS, TCS, TES, FS), TES, Vertex},
		{"tes before gs", NewActiveSet(VS, TCS, TES, GS, GSCopy, FS), TES, Export},
		{"compute", NewActiveSet(CS), CS, Compute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveHardwareStage(tt.active, tt.target)
			if err != nil {
				t.Fatalf("ResolveHardwareStage() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveHardwareStage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveHardwareStage_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		active ActiveSet
		target LogicalStage
	}{
		{"copy without gs", NewActiveSet(VS, GSCopy, FS), GSCopy},
		{"gs without copy", NewActiveSet(VS, GS, FS), GS},
		{"target inactive", NewActiveSet(VS, FS), GS},
		{"tcs without tes", NewActiveSet(VS, TCS, FS), TCS},
		{"compute mixed", NewActiveSet(VS, CS), CS},
		{"unknown target", NewActiveSet(VS), LogicalStage(42)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveHardwareStage(tt.active, tt.target)
			if !errors.Is(err, ErrInvalidStageCombination) {
				t.Fatalf("error = %v, want ErrInvalidStageCombination", err)
			}
			var ce *CombinationError
			if !errors.As(err, &ce) {
				t.Fatalf("error %T is not *CombinationError", err)
			}
			if ce.Target != tt.target {
				t.Errorf("Target = %v, want %v", ce.Target, tt.target)
			}
		})
	}
}

func TestResolveAll(t *testing.T) {
	got, err := ResolveAll(NewActiveSet(VS, GS, GSCopy, FS))
	if err != nil {
		t.Fatalf("ResolveAll() error = %v", err)
	}
	want := map[LogicalStage]HardwareStage{VS: Export, GS: Geometry, GSCopy: Vertex, FS: Fragment}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for st, hw := range want {
		if got[st] != hw {
			t.Errorf("%v -> %v, want %v", st, got[st], hw)
		}
	}

	if _, err := ResolveAll(NewActiveSet(VS, GSCopy)); !errors.Is(err, ErrInvalidStageCombination) {
		t.Errorf("ResolveAll() error = %v, want ErrInvalidStageCombination", err)
	}
}

func TestActiveSet(t *testing.T) {
	s := NewActiveSet(FS, VS)
	if !s.Has(VS) || !s.Has(FS) || s.Has(GS) {
		t.Errorf("Has mismatch for %v", s)
	}
	if got := s.String(); got != "{VS,FS}" {
		t.Errorf("String() = %q, want %q", got, "{VS,FS}")
	}
}

func TestBackendStage(t *testing.T) {
	if st, ok := GSCopy.BackendStage(); !ok || st != ir.StageVertex {
		t.Errorf("GSCopy.BackendStage() = %v, %v", st, ok)
	}
	if _, ok := TCS.BackendStage(); ok {
		t.Error("TCS should not map to a naga stage")
	}
	if st, ok := CS.BackendStage(); !ok || st != ir.StageCompute {
		t.Errorf("CS.BackendStage() = %v, %v", st, ok)
	}
}
