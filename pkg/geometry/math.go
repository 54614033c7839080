package geometry

import (
	"fmt"
	"math"

	"github.com/menta2k/thumbnail-planner/pkg/types"
)

// StringTransform is the result of planning for string-command tools, where
// the image is resized by a geometry token and then cropped in scaled space.
type StringTransform struct {
	Scale  string
	Factor float64
	Crop   *types.Rect
}

// CropToken renders the crop as WxH+X+Y, or "" when there is none
func (t StringTransform) CropToken() string {
	if t.Crop == nil {
		return ""
	}
	return t.Crop.String()
}

// DiscreteTransform is the result of planning for frame tools that take an
// integer crop rectangle in source space followed by a resize.
type DiscreteTransform struct {
	Scale  string
	Crop   *types.Rect
	Width  int
	Height int
}

// StringTransformation computes the resize token and the optional centered
// crop that turn src into dst. Without crop the token is dst rendered as is.
func StringTransformation(src, dst Geometry, crop bool) (StringTransform, error) {
	if !crop {
		return StringTransform{Scale: dst.String()}, nil
	}
	if src.Width <= 0 || src.Height <= 0 {
		return StringTransform{}, fmt.Errorf("%w: source %s", ErrDegenerateGeometry, src)
	}
	if dst.Width <= 0 || dst.Height <= 0 {
		return StringTransform{}, fmt.Errorf("%w: crop target %s needs both dimensions", ErrDegenerateGeometry, dst)
	}

	ratio := Geometry{Width: dst.Width / src.Width, Height: dst.Height / src.Height}
	rect := types.Rect{Width: int(dst.Width), Height: int(dst.Height)}

	if ratio.IsHorizontal() || ratio.IsSquare() {
		scaledHeight := dst.Width * src.Height / src.Width
		rect.Y = int(math.Floor((scaledHeight - dst.Height) / 2))
		return StringTransform{
			Scale:  fmt.Sprintf("%dx", int(dst.Width)),
			Factor: ratio.Width,
			Crop:   &rect,
		}, nil
	}

	scaledWidth := dst.Height * src.Width / src.Height
	rect.X = int(math.Floor((scaledWidth - dst.Width) / 2))
	return StringTransform{
		Scale:  fmt.Sprintf("x%d", int(dst.Height)),
		Factor: ratio.Height,
		Crop:   &rect,
	}, nil
}

// DiscreteTransformation computes an integer crop rectangle in source space
// and the destination size. The target never upsamples past the source: each
// axis is clamped to the source before the crop is derived.
func DiscreteTransformation(src, dst Geometry, crop bool) (DiscreteTransform, error) {
	if !crop {
		return DiscreteTransform{
			Scale:  dst.String(),
			Width:  int(dst.Width),
			Height: int(dst.Height),
		}, nil
	}
	if src.Width <= 0 || src.Height <= 0 {
		return DiscreteTransform{}, fmt.Errorf("%w: source %s", ErrDegenerateGeometry, src)
	}

	sw, sh := math.Floor(src.Width), math.Floor(src.Height)
	newW := math.Min(math.Floor(dst.Width), sw)
	newH := math.Min(math.Floor(dst.Height), sh)

	// newH is derived from the newW computed just above, not the clamped target.
	if newW == 0 {
		newW = math.Ceil(newH * sw / sh)
	}
	if newH == 0 {
		newH = math.Floor(newW * sh / sw)
	}
	if newW <= 0 || newH <= 0 {
		return DiscreteTransform{}, fmt.Errorf("%w: %s from %s collapses to %.0fx%.0f",
			ErrDegenerateGeometry, dst, src, newW, newH)
	}

	// size ratio is max(newW/sw, newH/sh); divide by it in product form.
	var cropW, cropH float64
	if newW*sh >= newH*sw {
		cropW = math.Ceil(newW * sw / newW)
		cropH = math.Ceil(newH * sw / newW)
	} else {
		cropW = math.Ceil(newW * sh / newH)
		cropH = math.Ceil(newH * sh / newH)
	}

	rect := types.Rect{
		X:      int(math.Floor((sw - cropW) / 2)),
		Y:      int(math.Floor((sh - cropH) / 2)),
		Width:  int(cropW),
		Height: int(cropH),
	}
	return DiscreteTransform{
		Scale:  fmt.Sprintf("%dx%d", int(newW), int(newH)),
		Crop:   &rect,
		Width:  int(newW),
		Height: int(newH),
	}, nil
}
