package planner

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/menta2k/thumbnail-planner/pkg/geometry"
	"github.com/menta2k/thumbnail-planner/pkg/types"
)

func TestPlanLimit(t *testing.T) {
	plan, err := Plan(Request{
		Source: geometry.MustParse("4000x3000"),
		Target: geometry.MustParse("800x600>"),
	})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	expected := TransformPlan{
		Scale: &Scale{Width: 800, Height: 600, Token: "800x600>"},
		Mode:  ModeLimit,
	}
	if diff := cmp.Diff(expected, plan); diff != "" {
		t.Errorf("Plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanStringCrop(t *testing.T) {
	plan, err := Plan(Request{
		Source: geometry.MustParse("300x200"),
		Target: geometry.MustParse("100x100#"),
		Crop:   true,
	})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	expected := TransformPlan{
		Crop:      &Crop{Rect: types.Rect{X: 25, Y: 0, Width: 100, Height: 100}, Stage: StageAfterScale},
		Scale:     &Scale{Width: 100, Height: 100, Token: "x100", Factor: 0.5},
		Mode:      ModeFit,
		Attention: true,
	}
	if diff := cmp.Diff(expected, plan); diff != "" {
		t.Errorf("Plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanDiscreteCrop(t *testing.T) {
	plan, err := Plan(Request{
		Source:     geometry.MustParse("4000x3000"),
		Target:     geometry.MustParse("1200x1200"),
		Crop:       true,
		Convention: ConventionDiscrete,
	})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	expected := TransformPlan{
		Crop:      &Crop{Rect: types.Rect{X: 500, Y: 0, Width: 3000, Height: 3000}, Stage: StageBeforeScale},
		Scale:     &Scale{Width: 1200, Height: 1200, Token: "1200x1200"},
		Mode:      ModeFit,
		Attention: true,
	}
	if diff := cmp.Diff(expected, plan); diff != "" {
		t.Errorf("Plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanExplicitCrop(t *testing.T) {
	explicit := types.Rect{X: 10, Y: 20, Width: 300, Height: 300}

	for _, conv := range []Convention{ConventionString, ConventionDiscrete} {
		t.Run(conv.String(), func(t *testing.T) {
			plan, err := Plan(Request{
				Source:       geometry.MustParse("1024x768"),
				Target:       geometry.MustParse("150x150"),
				Crop:         true,
				ExplicitCrop: &explicit,
				Convention:   conv,
			})
			if err != nil {
				t.Fatalf("Plan failed: %v", err)
			}

			expected := TransformPlan{
				Crop:  &Crop{Rect: explicit, Stage: StageBeforeScale, Explicit: true},
				Scale: &Scale{Width: 150, Height: 150, Token: "150x150"},
				Mode:  ModeFit,
			}
			if diff := cmp.Diff(expected, plan); diff != "" {
				t.Errorf("Plan mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanExplicitCropWithoutIntent(t *testing.T) {
	explicit := types.Rect{Width: 50, Height: 50}
	plan, err := Plan(Request{
		Source:       geometry.MustParse("100x100"),
		Target:       geometry.MustParse("25x25"),
		ExplicitCrop: &explicit,
	})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.Mode != ModeFit {
		t.Errorf("Expected fit mode with an explicit crop, got %s", plan.Mode)
	}
	if plan.Attention {
		t.Error("Explicit crops must not request attention cropping")
	}
}

func TestPlanNeverCropsWithoutIntent(t *testing.T) {
	sources := []string{"4000x3000", "100x200", "10x10"}
	targets := []string{"100x100", "100x100#", "x50", "640x"}

	for _, s := range sources {
		for _, d := range targets {
			for _, conv := range []Convention{ConventionString, ConventionDiscrete} {
				plan, err := Plan(Request{
					Source:     geometry.MustParse(s),
					Target:     geometry.MustParse(d),
					Convention: conv,
				})
				if err != nil {
					t.Fatalf("Plan(%s -> %s) failed: %v", s, d, err)
				}
				if plan.Crop != nil {
					t.Errorf("Plan(%s -> %s, %s) cropped without intent: %+v", s, d, conv, plan.Crop)
				}
				if plan.Attention {
					t.Errorf("Plan(%s -> %s, %s) asked for attention without intent", s, d, conv)
				}
			}
		}
	}
}

func TestPlanOperationsPreserveOrder(t *testing.T) {
	ops := []types.Operation{
		{Name: "rotate", Params: []string{"90"}},
		{Name: "blur", Params: []string{"1.5"}},
		{Name: "rotate", Params: []string{"90"}},
	}
	plan, err := Plan(Request{
		Source:     geometry.MustParse("100x100"),
		Target:     geometry.MustParse("50x50"),
		Operations: ops,
	})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if diff := cmp.Diff(ops, plan.Operations); diff != "" {
		t.Errorf("Operations changed (-want +got):\n%s", diff)
	}

	ops[0].Name = "flip"
	if plan.Operations[0].Name != "rotate" {
		t.Error("Plan shares its operations slice with the caller")
	}
}

func TestPlanNoScale(t *testing.T) {
	plan, err := Plan(Request{Source: geometry.MustParse("100x100")})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.Scale != nil || plan.Mode != ModeNone {
		t.Errorf("Expected no scale, got %+v mode %s", plan.Scale, plan.Mode)
	}
}

func TestPlanDegenerateCrop(t *testing.T) {
	_, err := Plan(Request{
		Source: geometry.Geometry{Width: 0, Height: 100},
		Target: geometry.MustParse("10x10"),
		Crop:   true,
	})
	if !errors.Is(err, geometry.ErrDegenerateGeometry) {
		t.Errorf("Expected ErrDegenerateGeometry, got %v", err)
	}

	empty := types.Rect{X: 1, Y: 1}
	if _, err := Plan(Request{
		Source:       geometry.MustParse("100x100"),
		Target:       geometry.MustParse("10x10"),
		ExplicitCrop: &empty,
	}); err == nil {
		t.Error("Expected an error for an empty explicit crop")
	}
}
