package processing

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/thumbnail-planner/pkg/geometry"
	"github.com/menta2k/thumbnail-planner/pkg/planner"
	"github.com/menta2k/thumbnail-planner/pkg/types"
)

type operationFunc func(img image.Image, params []string) (image.Image, error)

// operations is the fixed dispatch table for named transforms
var operations = map[string]operationFunc{
	"resize": func(img image.Image, p []string) (image.Image, error) {
		if len(p) != 1 {
			return nil, fmt.Errorf("want one geometry parameter")
		}
		g, ok := geometry.Parse(p[0])
		if !ok {
			return nil, fmt.Errorf("%w: %q", geometry.ErrGeometryParse, p[0])
		}
		return ResizeToGeometry(img, g, false), nil
	},
	"rotate": func(img image.Image, p []string) (image.Image, error) {
		angle, err := floatParam(p, 0)
		if err != nil {
			return nil, err
		}
		switch angle {
		case 90, -270:
			return imaging.Rotate270(img), nil // imaging rotates counter-clockwise
		case 180, -180:
			return imaging.Rotate180(img), nil
		case 270, -90:
			return imaging.Rotate90(img), nil
		case 0, 360:
			return img, nil
		}
		return imaging.Rotate(img, -angle, image.Transparent), nil
	},
	"flip": func(img image.Image, _ []string) (image.Image, error) {
		return imaging.FlipV(img), nil
	},
	"flop": func(img image.Image, _ []string) (image.Image, error) {
		return imaging.FlipH(img), nil
	},
	"blur": func(img image.Image, p []string) (image.Image, error) {
		sigma, err := floatParam(p, 0)
		if err != nil {
			return nil, err
		}
		return imaging.Blur(img, sigma), nil
	},
	"sharpen": func(img image.Image, p []string) (image.Image, error) {
		sigma, err := floatParam(p, 0)
		if err != nil {
			return nil, err
		}
		return imaging.Sharpen(img, sigma), nil
	},
	"grayscale": func(img image.Image, _ []string) (image.Image, error) {
		return imaging.Grayscale(img), nil
	},
	"brightness": func(img image.Image, p []string) (image.Image, error) {
		v, err := floatParam(p, 0)
		if err != nil {
			return nil, err
		}
		return imaging.AdjustBrightness(img, v), nil
	},
	"contrast": func(img image.Image, p []string) (image.Image, error) {
		v, err := floatParam(p, 0)
		if err != nil {
			return nil, err
		}
		return imaging.AdjustContrast(img, v), nil
	},
	"gamma": func(img image.Image, p []string) (image.Image, error) {
		v, err := floatParam(p, 0)
		if err != nil {
			return nil, err
		}
		return imaging.AdjustGamma(img, v), nil
	},
	// Decoded Go images are already device RGB; converting to NRGBA drops
	// CMYK and YCbCr models so every encoder sees sRGB samples.
	"colorspace": func(img image.Image, p []string) (image.Image, error) {
		if len(p) > 0 && !strings.EqualFold(p[0], "srgb") {
			return nil, fmt.Errorf("unsupported colorspace %q", p[0])
		}
		return imaging.Clone(img), nil
	},
}

// HasOperation reports whether name is in the dispatch table
func HasOperation(name string) bool {
	_, ok := operations[strings.ToLower(name)]
	return ok
}

// ApplyOperations runs ops in order, checking ctx between steps
func ApplyOperations(ctx context.Context, img image.Image, ops []types.Operation) (image.Image, error) {
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fn, ok := operations[strings.ToLower(op.Name)]
		if !ok {
			return nil, fmt.Errorf("unknown operation %q", op.Name)
		}
		out, err := fn(img, op.Params)
		if err != nil {
			return nil, fmt.Errorf("operation %s: %w", op.Name, err)
		}
		img = out
	}
	return img, nil
}

// ScaleImage resizes img into a width x height box. ModeFit fills the box
// exactly; ModeLimit shrinks to fit and never enlarges. A zero dimension
// leaves that axis to follow the aspect ratio.
func ScaleImage(img image.Image, width, height int, mode planner.Mode) image.Image {
	b := img.Bounds()
	switch mode {
	case planner.ModeFit:
		if width > 0 && height > 0 {
			return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
		}
		return imaging.Resize(img, width, height, imaging.Lanczos)
	case planner.ModeLimit:
		switch {
		case width > 0 && height > 0:
			return imaging.Fit(img, width, height, imaging.Lanczos)
		case width > 0 && b.Dx() > width:
			return imaging.Resize(img, width, 0, imaging.Lanczos)
		case height > 0 && b.Dy() > height:
			return imaging.Resize(img, 0, height, imaging.Lanczos)
		}
	}
	return img
}

// ResizeToGeometry applies a geometry the way string-command tools read it.
// With limit set the result never grows beyond the source.
func ResizeToGeometry(img image.Image, g geometry.Geometry, limit bool) image.Image {
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	w, h := int(g.Width), int(g.Height)

	switch g.Modifier {
	case geometry.ModifierPercent:
		if h == 0 {
			h = w
		}
		w, h = sw*w/100, sh*h/100
		if limit && (w > sw || h > sh) {
			return img
		}
		return imaging.Resize(img, max(w, 1), max(h, 1), imaging.Lanczos)
	case geometry.ModifierForce:
		if w == 0 {
			w = sw
		}
		if h == 0 {
			h = sh
		}
		if limit {
			w, h = min(w, sw), min(h, sh)
		}
		return imaging.Resize(img, w, h, imaging.Lanczos)
	case geometry.ModifierFill:
		if w > 0 && h > 0 {
			if limit && (sw <= w || sh <= h) {
				return img
			}
			return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
		}
	case geometry.ModifierShrink:
		limit = true
	case geometry.ModifierEnlarge:
		if (w > 0 && sw >= w) || (h > 0 && sh >= h) {
			return img
		}
	}

	if limit {
		return ScaleImage(img, w, h, planner.ModeLimit)
	}
	if w > 0 && h > 0 {
		return imaging.Fit(imaging.Resize(img, w, 0, imaging.Lanczos), w, h, imaging.Lanczos)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

func floatParam(p []string, i int) (float64, error) {
	if i >= len(p) {
		return 0, fmt.Errorf("missing parameter %d", i+1)
	}
	v, err := strconv.ParseFloat(p[i], 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %d: %w", i+1, err)
	}
	return v, nil
}
