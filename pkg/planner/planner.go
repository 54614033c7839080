package planner

import (
	"fmt"

	"github.com/menta2k/thumbnail-planner/pkg/geometry"
	"github.com/menta2k/thumbnail-planner/pkg/types"
)

// Convention selects how crop geometry is expressed for the executing pipeline
type Convention int

const (
	// ConventionString resizes by a geometry token and crops afterwards in scaled space
	ConventionString Convention = iota
	// ConventionDiscrete crops an integer rectangle in source space and resizes afterwards
	ConventionDiscrete
)

func (c Convention) String() string {
	switch c {
	case ConventionString:
		return "string"
	case ConventionDiscrete:
		return "discrete"
	default:
		return fmt.Sprintf("Convention(%d)", int(c))
	}
}

// Mode is the scaling behaviour applied to the target box
type Mode string

const (
	ModeNone  Mode = "none"
	ModeFit   Mode = "fit"   // fill the box exactly, overflow is cropped
	ModeLimit Mode = "limit" // shrink to fit inside the box, never enlarge
)

// Stage says whether a crop rectangle is in source or scaled coordinates
type Stage string

const (
	StageBeforeScale Stage = "before-scale"
	StageAfterScale  Stage = "after-scale"
)

// Crop is a crop rectangle plus the coordinate space it applies to
type Crop struct {
	Rect     types.Rect `json:"rect"`
	Stage    Stage      `json:"stage"`
	Explicit bool       `json:"explicit,omitempty"`
}

// Scale describes the resize step. Width or Height may be 0 for an
// unconstrained axis.
type Scale struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Token  string  `json:"token"`
	Factor float64 `json:"factor,omitempty"`
}

// TransformPlan is the ordered set of operations for one thumbnail:
// crop (when before scale), scale, crop (when after scale), then Operations.
type TransformPlan struct {
	Crop       *Crop             `json:"crop,omitempty"`
	Scale      *Scale            `json:"scale,omitempty"`
	Mode       Mode              `json:"mode"`
	Attention  bool              `json:"attention,omitempty"`
	Operations []types.Operation `json:"operations,omitempty"`
}

// Request is the input to Plan
type Request struct {
	Source       geometry.Geometry
	Target       geometry.Geometry
	Crop         bool
	ExplicitCrop *types.Rect
	Convention   Convention
	Operations   []types.Operation
}

// Plan decides crop, scale and mode for a request. An explicit crop is used
// verbatim; otherwise crop intent derives a centered crop through the
// request's convention. Without either, the plan never crops.
func Plan(req Request) (TransformPlan, error) {
	var plan TransformPlan

	switch {
	case req.ExplicitCrop != nil:
		if req.ExplicitCrop.Empty() {
			return TransformPlan{}, fmt.Errorf("planner: explicit crop %s has no area", req.ExplicitCrop)
		}
		plan.Crop = &Crop{Rect: *req.ExplicitCrop, Stage: StageBeforeScale, Explicit: true}
		plan.Scale = boxScale(req.Target, req.Target.String())

	case req.Crop:
		var err error
		plan.Crop, plan.Scale, err = derivedCrop(req)
		if err != nil {
			return TransformPlan{}, err
		}
		plan.Attention = true

	default:
		token, err := limitToken(req)
		if err != nil {
			return TransformPlan{}, err
		}
		plan.Scale = boxScale(req.Target, token)
	}

	switch {
	case plan.Scale == nil:
		plan.Mode = ModeNone
	case plan.Crop != nil:
		plan.Mode = ModeFit
	default:
		plan.Mode = ModeLimit
	}

	if len(req.Operations) > 0 {
		plan.Operations = append([]types.Operation(nil), req.Operations...)
	}
	return plan, nil
}

func derivedCrop(req Request) (*Crop, *Scale, error) {
	switch req.Convention {
	case ConventionDiscrete:
		t, err := geometry.DiscreteTransformation(req.Source, req.Target, true)
		if err != nil {
			return nil, nil, err
		}
		return &Crop{Rect: *t.Crop, Stage: StageBeforeScale},
			&Scale{Width: t.Width, Height: t.Height, Token: t.Scale}, nil
	default:
		t, err := geometry.StringTransformation(req.Source, req.Target, true)
		if err != nil {
			return nil, nil, err
		}
		return &Crop{Rect: *t.Crop, Stage: StageAfterScale},
			&Scale{Width: int(req.Target.Width), Height: int(req.Target.Height), Token: t.Scale, Factor: t.Factor}, nil
	}
}

func limitToken(req Request) (string, error) {
	if req.Convention == ConventionDiscrete {
		t, err := geometry.DiscreteTransformation(req.Source, req.Target, false)
		return t.Scale, err
	}
	t, err := geometry.StringTransformation(req.Source, req.Target, false)
	return t.Scale, err
}

func boxScale(target geometry.Geometry, token string) *Scale {
	if token == "" || target.IsZero() {
		return nil
	}
	return &Scale{Width: int(target.Width), Height: int(target.Height), Token: token}
}
