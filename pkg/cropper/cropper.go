package cropper

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/thumbnail-planner/internal/logging"
	"github.com/menta2k/thumbnail-planner/pkg/geometry"
	"github.com/menta2k/thumbnail-planner/pkg/planner"
	"github.com/menta2k/thumbnail-planner/pkg/processing"
	"github.com/menta2k/thumbnail-planner/pkg/types"
)

// AttentionLocator finds the region of img worth keeping when it is cropped
// to the aspect ratio of width x height. The returned rectangle is in img's
// coordinate space.
type AttentionLocator interface {
	Locate(ctx context.Context, img image.Image, width, height int) (image.Rectangle, error)
}

// SmartCropper executes transform plans on decoded raster images
type SmartCropper struct {
	locator AttentionLocator
	config  CropConfig
}

// CropConfig holds configuration for plan execution
type CropConfig struct {
	// Attention enables content-aware crops when a plan asks for them.
	// When false, or when the locator fails, crops stay centered.
	Attention bool
}

// New creates a SmartCropper using smartcrop for attention crops
func New() *SmartCropper {
	return &SmartCropper{
		locator: NewSmartcropLocator(),
		config:  CropConfig{Attention: true},
	}
}

// NewWithConfig creates a new SmartCropper with custom configuration
func NewWithConfig(config CropConfig) *SmartCropper {
	return &SmartCropper{
		locator: NewSmartcropLocator(),
		config:  config,
	}
}

// SetLocator replaces the attention locator. nil disables attention crops.
func (c *SmartCropper) SetLocator(locator AttentionLocator) {
	c.locator = locator
}

// CropResult contains the result of executing a plan
type CropResult struct {
	Image image.Image
	// Region is the crop that was applied, in the coordinate space given by Stage.
	Region    *types.Rect
	Stage     planner.Stage
	Attention bool
}

// Execute runs plan on img: crop and scale as planned, then the plan's
// named operations in order.
func (c *SmartCropper) Execute(ctx context.Context, img image.Image, plan planner.TransformPlan) (CropResult, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return CropResult{}, fmt.Errorf("invalid image dimensions")
	}

	var (
		result CropResult
		err    error
	)
	switch {
	case plan.Attention && c.config.Attention && c.locator != nil && plan.Scale != nil &&
		plan.Scale.Width > 0 && plan.Scale.Height > 0:
		result, err = c.attentionCrop(ctx, img, plan)
		if err != nil {
			logging.Warn("attention crop failed, using centered crop: %v", err)
			result, err = c.plannedCrop(ctx, img, plan)
		}
	default:
		result, err = c.plannedCrop(ctx, img, plan)
	}
	if err != nil {
		return CropResult{}, err
	}

	result.Image, err = processing.ApplyOperations(ctx, result.Image, plan.Operations)
	if err != nil {
		return CropResult{}, err
	}
	return result, nil
}

func (c *SmartCropper) attentionCrop(ctx context.Context, img image.Image, plan planner.TransformPlan) (CropResult, error) {
	rect, err := c.locator.Locate(ctx, img, plan.Scale.Width, plan.Scale.Height)
	if err != nil {
		return CropResult{}, err
	}
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return CropResult{}, fmt.Errorf("locator returned an empty region")
	}
	if err := ctx.Err(); err != nil {
		return CropResult{}, err
	}

	cropped := imaging.Crop(img, rect)
	region := types.RectFromImage(rect, img.Bounds())
	return CropResult{
		Image:     processing.ScaleImage(cropped, plan.Scale.Width, plan.Scale.Height, planner.ModeFit),
		Region:    &region,
		Stage:     planner.StageBeforeScale,
		Attention: true,
	}, nil
}

func (c *SmartCropper) plannedCrop(ctx context.Context, img image.Image, plan planner.TransformPlan) (CropResult, error) {
	var result CropResult

	if plan.Crop != nil && plan.Crop.Stage == planner.StageBeforeScale {
		rect := plan.Crop.Rect.Image(img.Bounds()).Intersect(img.Bounds())
		if rect.Empty() {
			return CropResult{}, fmt.Errorf("crop %s lies outside the %dx%d image", plan.Crop.Rect, img.Bounds().Dx(), img.Bounds().Dy())
		}
		region := types.RectFromImage(rect, img.Bounds())
		img = imaging.Crop(img, rect)
		result.Region, result.Stage = &region, planner.StageBeforeScale
	}
	if err := ctx.Err(); err != nil {
		return CropResult{}, err
	}

	if plan.Scale != nil {
		img = c.scale(img, plan)
	}

	if plan.Crop != nil && plan.Crop.Stage == planner.StageAfterScale {
		rect := plan.Crop.Rect.Image(img.Bounds()).Intersect(img.Bounds())
		if rect.Empty() {
			return CropResult{}, fmt.Errorf("crop %s lies outside the scaled %dx%d image", plan.Crop.Rect, img.Bounds().Dx(), img.Bounds().Dy())
		}
		img = imaging.Crop(img, rect)
		region := plan.Crop.Rect
		result.Region, result.Stage = &region, planner.StageAfterScale
	}

	result.Image = img
	return result, nil
}

// scale resizes according to the plan. A crop that follows the scale needs
// the token read literally; everything else scales into the planned box.
func (c *SmartCropper) scale(img image.Image, plan planner.TransformPlan) image.Image {
	token, ok := geometry.Parse(plan.Scale.Token)
	switch {
	case plan.Crop != nil && plan.Crop.Stage == planner.StageAfterScale && ok:
		return processing.ResizeToGeometry(img, token.WithModifier(geometry.ModifierNone), false)
	case plan.Mode == planner.ModeLimit && ok:
		return processing.ResizeToGeometry(img, token, true)
	default:
		return processing.ScaleImage(img, plan.Scale.Width, plan.Scale.Height, plan.Mode)
	}
}
