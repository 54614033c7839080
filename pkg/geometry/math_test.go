package geometry

import (
	"errors"
	"testing"

	"github.com/menta2k/thumbnail-planner/pkg/types"
)

func TestStringTransformationNoCrop(t *testing.T) {
	tr, err := StringTransformation(MustParse("400x300"), MustParse("100x100>"), false)
	if err != nil {
		t.Fatalf("StringTransformation failed: %v", err)
	}
	if tr.Scale != "100x100>" {
		t.Errorf("Expected scale 100x100>, got %q", tr.Scale)
	}
	if tr.Crop != nil || tr.CropToken() != "" {
		t.Errorf("Expected no crop, got %v", tr.Crop)
	}
}

func TestStringTransformationCrop(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		dst    string
		scale  string
		factor float64
		crop   string
	}{
		// ratio 0.5x1.0 is vertical: fix the height, crop the width
		{"wide source", "200x100", "100x100", "x100", 1.0, "100x100+50+0"},
		// ratio 1.0x0.5 is horizontal: fix the width, crop the height
		{"tall source", "100x200", "100x100", "100x", 1.0, "100x100+0+50"},
		{"square ratio", "400x400", "100x100", "100x", 0.25, "100x100+0+0"},
		{"downscale wide", "300x200", "100x100", "x100", 0.5, "100x100+25+0"},
		{"odd overflow", "301x200", "100x100", "x100", 0.5, "100x100+25+0"},
		{"landscape target", "1000x1000", "160x90", "160x", 0.16, "160x90+0+35"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := StringTransformation(MustParse(tt.src), MustParse(tt.dst), true)
			if err != nil {
				t.Fatalf("StringTransformation failed: %v", err)
			}
			if tr.Scale != tt.scale {
				t.Errorf("Expected scale %q, got %q", tt.scale, tr.Scale)
			}
			if tr.Factor != tt.factor {
				t.Errorf("Expected factor %v, got %v", tt.factor, tr.Factor)
			}
			if tr.CropToken() != tt.crop {
				t.Errorf("Expected crop %q, got %q", tt.crop, tr.CropToken())
			}
		})
	}
}

func TestStringTransformationDegenerate(t *testing.T) {
	_, err := StringTransformation(Geometry{Width: 0, Height: 100}, MustParse("10x10"), true)
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("Expected ErrDegenerateGeometry, got %v", err)
	}

	_, err = StringTransformation(MustParse("100x100"), MustParse("10x"), true)
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("Expected ErrDegenerateGeometry for one-sided crop target, got %v", err)
	}

	// no crop never divides
	if _, err := StringTransformation(Geometry{}, MustParse("10x10"), false); err != nil {
		t.Errorf("Expected no error without crop, got %v", err)
	}
}

func TestDiscreteTransformation(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		dst    string
		crop   types.Rect
		width  int
		height int
	}{
		{"camera to square", "4000x3000", "1200x1200", types.Rect{X: 500, Y: 0, Width: 3000, Height: 3000}, 1200, 1200},
		{"portrait to square", "300x400", "100x100", types.Rect{X: 0, Y: 50, Width: 300, Height: 300}, 100, 100},
		{"target larger than source", "100x50", "200x200", types.Rect{X: 0, Y: 0, Width: 100, Height: 50}, 100, 50},
		{"width only", "400x200", "100x", types.Rect{X: 0, Y: 0, Width: 400, Height: 200}, 100, 50},
		{"height only", "400x200", "x100", types.Rect{X: 0, Y: 0, Width: 400, Height: 200}, 200, 100},
		{"wide to banner", "800x600", "400x100", types.Rect{X: 0, Y: 200, Width: 800, Height: 200}, 400, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := DiscreteTransformation(MustParse(tt.src), MustParse(tt.dst), true)
			if err != nil {
				t.Fatalf("DiscreteTransformation failed: %v", err)
			}
			if tr.Crop == nil {
				t.Fatal("Expected a crop rectangle")
			}
			if *tr.Crop != tt.crop {
				t.Errorf("Expected crop %+v, got %+v", tt.crop, *tr.Crop)
			}
			if tr.Width != tt.width || tr.Height != tt.height {
				t.Errorf("Expected destination %dx%d, got %dx%d", tt.width, tt.height, tr.Width, tr.Height)
			}
		})
	}
}

func TestDiscreteTransformationStaysInBounds(t *testing.T) {
	sources := []string{"4000x3000", "3000x4000", "101x37", "37x101", "1x1000", "1000x1"}
	targets := []string{"1200x1200", "50x10", "10x50", "5000x5000", "100x", "x100", "1x1"}

	for _, s := range sources {
		for _, d := range targets {
			src := MustParse(s)
			tr, err := DiscreteTransformation(src, MustParse(d), true)
			if err != nil {
				continue
			}
			r := tr.Crop
			if r.X < 0 || r.Y < 0 || r.X+r.Width > int(src.Width) || r.Y+r.Height > int(src.Height) {
				t.Errorf("%s -> %s: crop %+v leaves the source", s, d, *r)
			}
		}
	}
}

func TestDiscreteTransformationNoCrop(t *testing.T) {
	tr, err := DiscreteTransformation(MustParse("640x480"), MustParse("320x"), false)
	if err != nil {
		t.Fatalf("DiscreteTransformation failed: %v", err)
	}
	if tr.Scale != "320" || tr.Crop != nil {
		t.Errorf("Expected scale 320 and no crop, got %q %v", tr.Scale, tr.Crop)
	}
}

func TestDiscreteTransformationDegenerate(t *testing.T) {
	if _, err := DiscreteTransformation(Geometry{Width: 100}, MustParse("10x10"), true); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("Expected ErrDegenerateGeometry for zero source height, got %v", err)
	}
	if _, err := DiscreteTransformation(MustParse("100x100"), Geometry{}, true); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("Expected ErrDegenerateGeometry for empty target, got %v", err)
	}
}
