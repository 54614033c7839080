//go:build vips

// Package vipsexec runs transform plans through libvips. It needs cgo and
// libvips headers, so it is only compiled with the vips build tag.
package vipsexec

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/menta2k/thumbnail-planner/internal/logging"
	"github.com/menta2k/thumbnail-planner/pkg/geometry"
	"github.com/menta2k/thumbnail-planner/pkg/orchestrator"
	"github.com/menta2k/thumbnail-planner/pkg/planner"
	"github.com/menta2k/thumbnail-planner/pkg/types"
)

// maxCoord stands in for an unconstrained axis in thumbnail calls
const maxCoord = 10_000_000

var (
	vipsInitMutex sync.Mutex
	vipsStarted   bool
)

// Init starts libvips once per process, routing its log output through the
// application logger at the current level.
func Init() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	if vipsStarted {
		return
	}

	level := vips.LogLevelWarning
	switch logging.GetLevel() {
	case logging.LevelDebug:
		level = vips.LogLevelInfo
	case logging.LevelWarn:
		level = vips.LogLevelError
	case logging.LevelError:
		level = vips.LogLevelCritical
	}
	vips.LoggingSettings(func(domain string, l vips.LogLevel, msg string) {
		switch {
		case l <= vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case l == vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, level)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})
	vipsStarted = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
}

// Shutdown releases libvips. It cannot be started again in the same process.
func Shutdown() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	if vipsStarted {
		vips.Shutdown()
		vipsStarted = false
	}
}

// Executor renders raster pipelines with libvips
type Executor struct{}

// New starts libvips if needed and returns an executor
func New() *Executor {
	Init()
	return &Executor{}
}

// ExecuteFile loads path and runs Execute on it
func (e *Executor) ExecuteFile(ctx context.Context, path string, plan planner.TransformPlan, choice orchestrator.PipelineChoice) ([]byte, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()
	return e.run(ctx, ref, plan, choice)
}

// Execute decodes data, applies plan and encodes per choice
func (e *Executor) Execute(ctx context.Context, data []byte, plan planner.TransformPlan, choice orchestrator.PipelineChoice) ([]byte, error) {
	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()
	return e.run(ctx, ref, plan, choice)
}

func (e *Executor) run(ctx context.Context, ref *vips.ImageRef, plan planner.TransformPlan, choice orchestrator.PipelineChoice) ([]byte, error) {
	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips auto-rotate failed: %w", err)
	}

	steps := []func() error{
		func() error { return cropBefore(ref, plan) },
		func() error { return scale(ref, plan) },
		func() error { return cropAfter(ref, plan) },
	}
	for _, op := range plan.Operations {
		steps = append(steps, func() error { return applyOperation(ref, op.Name, op.Params) })
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step(); err != nil {
			return nil, err
		}
	}

	return export(ref, choice)
}

func cropBefore(ref *vips.ImageRef, plan planner.TransformPlan) error {
	if plan.Crop == nil || plan.Crop.Stage != planner.StageBeforeScale {
		return nil
	}
	return extractClipped(ref, plan.Crop.Rect, "")
}

// extractClipped crops r clipped to the image, failing only when nothing of
// r lies inside it.
func extractClipped(ref *vips.ImageRef, r types.Rect, space string) error {
	x, y := max(r.X, 0), max(r.Y, 0)
	w, h := min(r.X+r.Width, ref.Width())-x, min(r.Y+r.Height, ref.Height())-y
	if w <= 0 || h <= 0 {
		return fmt.Errorf("crop %s lies outside the %s%dx%d image", r, space, ref.Width(), ref.Height())
	}
	return ref.ExtractArea(x, y, w, h)
}

func scale(ref *vips.ImageRef, plan planner.TransformPlan) error {
	s := plan.Scale
	if s == nil {
		return nil
	}
	w, h := s.Width, s.Height
	if w <= 0 {
		w = maxCoord
	}
	if h <= 0 {
		h = maxCoord
	}

	switch {
	case plan.Attention && plan.Crop != nil && plan.Crop.Stage == planner.StageAfterScale:
		// libvips finds the attention crop itself; the planned centered crop
		// is skipped by cropAfter.
		return ref.Thumbnail(w, h, vips.InterestingAttention)
	case plan.Crop != nil && plan.Crop.Stage == planner.StageAfterScale:
		return ref.Resize(s.Factor, vips.KernelLanczos3)
	case plan.Mode == planner.ModeFit:
		return ref.Thumbnail(w, h, vips.InterestingCentre)
	case plan.Mode == planner.ModeLimit:
		return ref.ThumbnailWithSize(w, h, vips.InterestingNone, vips.SizeDown)
	}
	return nil
}

func cropAfter(ref *vips.ImageRef, plan planner.TransformPlan) error {
	if plan.Crop == nil || plan.Crop.Stage != planner.StageAfterScale || plan.Attention {
		return nil
	}
	return extractClipped(ref, plan.Crop.Rect, "scaled ")
}

type operationFunc func(ref *vips.ImageRef, params []string) error

// operations mirrors the dispatch table of the built-in executor
var operations = map[string]operationFunc{
	"resize": resize,
	"rotate": func(ref *vips.ImageRef, p []string) error {
		angle, err := floatParam(p)
		if err != nil {
			return err
		}
		switch math.Mod(math.Mod(angle, 360)+360, 360) {
		case 0:
			return nil
		case 90:
			return ref.Rotate(vips.Angle90)
		case 180:
			return ref.Rotate(vips.Angle180)
		case 270:
			return ref.Rotate(vips.Angle270)
		}
		return ref.Similarity(1, angle, &vips.ColorRGBA{}, 0, 0, 0, 0)
	},
	"flip": func(ref *vips.ImageRef, _ []string) error {
		return ref.Flip(vips.DirectionVertical)
	},
	"flop": func(ref *vips.ImageRef, _ []string) error {
		return ref.Flip(vips.DirectionHorizontal)
	},
	"blur": func(ref *vips.ImageRef, p []string) error {
		sigma, err := floatParam(p)
		if err != nil {
			return err
		}
		return ref.GaussianBlur(sigma)
	},
	"sharpen": func(ref *vips.ImageRef, p []string) error {
		sigma, err := floatParam(p)
		if err != nil {
			return err
		}
		return ref.Sharpen(sigma, 2, 20)
	},
	"grayscale": func(ref *vips.ImageRef, _ []string) error {
		return ref.ToColorSpace(vips.InterpretationBW)
	},
	// brightness and contrast take percentages in -100..100, as imaging does
	"brightness": func(ref *vips.ImageRef, p []string) error {
		pct, err := floatParam(p)
		if err != nil {
			return err
		}
		return linear(ref, 1, 255*pct/100)
	},
	"contrast": func(ref *vips.ImageRef, p []string) error {
		pct, err := floatParam(p)
		if err != nil {
			return err
		}
		a := 1 + pct/100
		return linear(ref, a, 128*(1-a))
	},
	"gamma": func(ref *vips.ImageRef, p []string) error {
		g, err := floatParam(p)
		if err != nil {
			return err
		}
		if g <= 0 {
			return fmt.Errorf("gamma must be positive, got %g", g)
		}
		return ref.Gamma(g)
	},
	"colorspace": func(ref *vips.ImageRef, p []string) error {
		if len(p) > 0 && !strings.EqualFold(p[0], "srgb") {
			return fmt.Errorf("unsupported colorspace %q", p[0])
		}
		return ref.ToColorSpace(vips.InterpretationSRGB)
	},
}

func applyOperation(ref *vips.ImageRef, name string, params []string) error {
	fn, ok := operations[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown operation %q", name)
	}
	if err := fn(ref, params); err != nil {
		return fmt.Errorf("operation %s: %w", name, err)
	}
	return nil
}

// resize applies a geometry parameter through libvips thumbnailing
func resize(ref *vips.ImageRef, p []string) error {
	if len(p) != 1 {
		return fmt.Errorf("want one geometry parameter")
	}
	g, ok := geometry.Parse(p[0])
	if !ok {
		return fmt.Errorf("%w: %q", geometry.ErrGeometryParse, p[0])
	}

	w, h := int(g.Width), int(g.Height)
	size := vips.SizeBoth
	crop := vips.InterestingNone
	switch g.Modifier {
	case geometry.ModifierPercent:
		if h == 0 {
			h = w
		}
		w, h = max(ref.Width()*w/100, 1), max(ref.Height()*h/100, 1)
		size = vips.SizeForce
	case geometry.ModifierForce:
		if w == 0 {
			w = ref.Width()
		}
		if h == 0 {
			h = ref.Height()
		}
		size = vips.SizeForce
	case geometry.ModifierFill:
		crop = vips.InterestingCentre
	case geometry.ModifierShrink:
		size = vips.SizeDown
	case geometry.ModifierEnlarge:
		size = vips.SizeUp
	}
	if w <= 0 {
		w = maxCoord
	}
	if h <= 0 {
		h = maxCoord
	}
	return ref.ThumbnailWithSize(w, h, crop, size)
}

func linear(ref *vips.ImageRef, a, b float64) error {
	bands := ref.Bands()
	as, bs := make([]float64, bands), make([]float64, bands)
	for i := range as {
		as[i], bs[i] = a, b
	}
	if ref.HasAlpha() {
		as[bands-1], bs[bands-1] = 1, 0
	}
	return ref.Linear(as, bs)
}

func floatParam(p []string) (float64, error) {
	if len(p) != 1 {
		return 0, fmt.Errorf("want one numeric parameter")
	}
	v, err := strconv.ParseFloat(p[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid parameter %q: %w", p[0], err)
	}
	return v, nil
}

func export(ref *vips.ImageRef, choice orchestrator.PipelineChoice) ([]byte, error) {
	quality := 85
	if choice.Quality != nil && *choice.Quality > 0 {
		quality = *choice.Quality
	}

	var (
		buf []byte
		err error
	)
	switch choice.Extension {
	case "jpg", "jpeg", "":
		buf, _, err = ref.ExportJpeg(&vips.JpegExportParams{
			Quality:        quality,
			StripMetadata:  choice.StripMetadata,
			OptimizeCoding: true,
		})
	case "png":
		p := vips.NewPngExportParams()
		p.StripMetadata = choice.StripMetadata
		buf, _, err = ref.ExportPng(p)
	case "webp":
		p := vips.NewWebpExportParams()
		p.Quality = quality
		p.StripMetadata = choice.StripMetadata
		buf, _, err = ref.ExportWebp(p)
	case "gif":
		p := vips.NewGifExportParams()
		p.StripMetadata = choice.StripMetadata
		buf, _, err = ref.ExportGIF(p)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", choice.Extension)
	}
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return buf, nil
}
