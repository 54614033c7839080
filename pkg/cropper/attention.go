package cropper

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"
)

// SmartcropLocator finds attention regions with smartcrop's edge, skin and
// saturation scoring.
type SmartcropLocator struct {
	resampler imaging.ResampleFilter
}

// NewSmartcropLocator creates a locator that downsamples with Lanczos
func NewSmartcropLocator() *SmartcropLocator {
	return &SmartcropLocator{resampler: imaging.Lanczos}
}

// Locate runs FindBestCrop, returning early if ctx is done. smartcrop itself
// has no cancellation, so an abandoned search finishes in the background.
func (l *SmartcropLocator) Locate(ctx context.Context, img image.Image, width, height int) (image.Rectangle, error) {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid target %dx%d", width, height)
	}

	analyzer := smartcrop.NewAnalyzer(&resizer{resampler: l.resampler})

	type cropResult struct {
		crop image.Rectangle
		err  error
	}
	resultChan := make(chan cropResult, 1)
	go func() {
		crop, err := analyzer.FindBestCrop(img, width, height)
		resultChan <- cropResult{crop: crop, err: err}
	}()

	select {
	case <-ctx.Done():
		return image.Rectangle{}, ctx.Err()
	case res := <-resultChan:
		if res.err != nil {
			return image.Rectangle{}, fmt.Errorf("smartcrop: %w", res.err)
		}
		return res.crop, nil
	}
}

// resizer implements smartcrop's options.Resizer
type resizer struct {
	resampler imaging.ResampleFilter
}

func (r *resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.resampler)
}

// CenterLocator returns the largest centered region with the target aspect
type CenterLocator struct{}

// Locate implements AttentionLocator
func (CenterLocator) Locate(_ context.Context, img image.Image, width, height int) (image.Rectangle, error) {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid target %dx%d", width, height)
	}
	return centeredRegion(img.Bounds(), width, height), nil
}

// centeredRegion fits the width:height aspect inside bounds, centered
func centeredRegion(bounds image.Rectangle, width, height int) image.Rectangle {
	bw, bh := bounds.Dx(), bounds.Dy()
	cw, ch := bw, bw*height/width
	if ch > bh {
		cw, ch = bh*width/height, bh
	}
	cw, ch = max(cw, 1), max(ch, 1)
	x := bounds.Min.X + (bw-cw)/2
	y := bounds.Min.Y + (bh-ch)/2
	return image.Rect(x, y, x+cw, y+ch)
}
