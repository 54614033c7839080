// Package thumbplanner plans and renders image thumbnails from geometry
// strings.
//
// A thumbnail request names a source image and a target geometry such as
// "100x100#" (fill the box and crop) or "300x300>" (shrink to fit). The
// planner measures the source, decides between the raster pipeline and the
// frame-preserving GIF pipeline, and computes the crop and scale that
// produce the target. Executors then carry the plan out.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		thumbplanner "github.com/menta2k/thumbnail-planner"
//		"github.com/menta2k/thumbnail-planner/internal/config"
//	)
//
//	func main() {
//		t, err := thumbplanner.New(config.Default())
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		res, err := t.Generate(context.Background(), thumbplanner.Request{
//			Source: "photo.jpg",
//			Style:  "thumb",
//		}, "")
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("wrote %s", res.Output)
//	}
//
// The package is assembled from these components:
//
//  1. Geometry (pkg/geometry): geometry strings and the crop/scale math
//  2. Planner (pkg/planner): turns source and target into a transform plan
//  3. Orchestrator (pkg/orchestrator): pipeline and output format decisions
//  4. Executors (pkg/cropper, pkg/processing, pkg/vipsexec): run the plan
//  5. Locators (pkg/cropper, pkg/vision, pkg/detection): attention crops
package thumbplanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/thumbnail-planner/internal/config"
	"github.com/menta2k/thumbnail-planner/internal/logging"
	"github.com/menta2k/thumbnail-planner/internal/utils"
	"github.com/menta2k/thumbnail-planner/pkg/analyzer"
	"github.com/menta2k/thumbnail-planner/pkg/cropper"
	"github.com/menta2k/thumbnail-planner/pkg/detection"
	"github.com/menta2k/thumbnail-planner/pkg/ollama"
	"github.com/menta2k/thumbnail-planner/pkg/orchestrator"
	"github.com/menta2k/thumbnail-planner/pkg/planner"
	"github.com/menta2k/thumbnail-planner/pkg/processing"
	"github.com/menta2k/thumbnail-planner/pkg/types"
	"github.com/menta2k/thumbnail-planner/pkg/vision"
)

// Version of the thumbnail planner library
const Version = "1.0.0"

// RasterBackend renders a raster job straight from a source file. The vips
// executor implements it.
type RasterBackend interface {
	ExecuteFile(ctx context.Context, path string, plan planner.TransformPlan, choice orchestrator.PipelineChoice) ([]byte, error)
}

// Thumbnailer provides a high-level interface for planning and rendering thumbnails
type Thumbnailer struct {
	config       *config.Config
	analyzer     *analyzer.ImageAnalyzer
	orchestrator *orchestrator.Orchestrator
	processor    *processing.Processor
	cropper      *cropper.SmartCropper
	backend      RasterBackend
}

// New creates a Thumbnailer from cfg. The attention locator is chosen by
// cfg.Thumbnail.Attention.
func New(cfg *config.Config) (*Thumbnailer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	locator, err := NewLocator(cfg)
	if err != nil {
		return nil, err
	}

	a := analyzer.New()
	smartCropper := cropper.NewWithConfig(cropper.CropConfig{Attention: locator != nil})
	smartCropper.SetLocator(locator)

	return &Thumbnailer{
		config:   cfg,
		analyzer: a,
		orchestrator: orchestrator.NewWithConfig(orchestrator.Config{
			Whiny:           cfg.Thumbnail.Whiny,
			AnimatedFormats: cfg.Thumbnail.AnimatedFormats,
			DefaultQuality:  cfg.Thumbnail.DefaultQuality,
		}, a),
		processor: processing.NewProcessor(),
		cropper:   smartCropper,
	}, nil
}

// NewLocator builds the attention locator named in the configuration. It
// returns nil for "none".
func NewLocator(cfg *config.Config) (cropper.AttentionLocator, error) {
	switch cfg.Thumbnail.Attention {
	case config.AttentionSmartcrop, "":
		return cropper.NewSmartcropLocator(), nil
	case config.AttentionSaliency:
		return vision.New(), nil
	case config.AttentionOllama:
		client, err := ollama.NewClient(cfg.Model.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		dc := detection.DefaultConfig(cfg.Model.Name)
		if cfg.Model.MaxDimension > 0 {
			dc.MaxDimension = cfg.Model.MaxDimension
		}
		dc.MinConfidence = cfg.Model.Confidence
		return detection.NewDetectorWithConfig(client, dc), nil
	case config.AttentionNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown attention backend %q", cfg.Thumbnail.Attention)
}

// SetRasterBackend routes raster jobs for local files through b. nil
// restores the built-in executor.
func (t *Thumbnailer) SetRasterBackend(b RasterBackend) {
	t.backend = b
}

// SetLocator replaces the attention locator
func (t *Thumbnailer) SetLocator(l cropper.AttentionLocator) {
	t.cropper.SetLocator(l)
}

// Inspect reads the source's header without decoding pixels
func (t *Thumbnailer) Inspect(ctx context.Context, source string) (analyzer.ImageInfo, error) {
	return t.analyzer.Inspect(ctx, source)
}

// Request describes one thumbnail. Non-empty fields override the named style.
type Request struct {
	Source         string
	Style          string
	Geometry       string
	Format         string
	ConvertOptions string
	Crop           bool
	ExplicitCrop   *types.Rect
	Animate        *bool
	// Operations run after the style's operations
	Operations []types.Operation
}

// Result describes a rendered thumbnail
type Result struct {
	Job    orchestrator.Job `json:"job"`
	Output string           `json:"output"`
	// Region is the crop that was applied; Stage tells which space it is in.
	Region    *types.Rect   `json:"region,omitempty"`
	Stage     planner.Stage `json:"stage,omitempty"`
	Attention bool          `json:"attention,omitempty"`
}

// Prepare resolves the request against its style and plans it without
// touching pixels.
func (t *Thumbnailer) Prepare(ctx context.Context, req Request) (orchestrator.Job, error) {
	oreq, err := t.resolve(req)
	if err != nil {
		return orchestrator.Job{}, err
	}
	return t.orchestrator.Prepare(ctx, oreq)
}

func (t *Thumbnailer) resolve(req Request) (orchestrator.Request, error) {
	var style config.Style
	if req.Style != "" {
		s, err := t.config.Style(req.Style)
		if err != nil {
			return orchestrator.Request{}, err
		}
		style = s
	}

	oreq := orchestrator.Request{
		Source:         req.Source,
		Geometry:       firstNonEmpty(req.Geometry, style.Geometry),
		Format:         firstNonEmpty(req.Format, style.Format),
		ConvertOptions: firstNonEmpty(req.ConvertOptions, style.ConvertOptions),
		Animate:        style.Animated(),
		Crop:           req.Crop || style.Crop,
		ExplicitCrop:   req.ExplicitCrop,
	}
	if req.Animate != nil {
		oreq.Animate = *req.Animate
	}
	oreq.Operations = append(oreq.Operations, style.Operations...)
	oreq.Operations = append(oreq.Operations, req.Operations...)
	return oreq, nil
}

// OutputPath returns where a thumbnail of source for style is written
func (t *Thumbnailer) OutputPath(source, style, ext string) string {
	name := strings.TrimPrefix(style+t.config.Output.Suffix, "_")
	return utils.ThumbnailPath(source, t.config.Output.OutputDir, t.config.Output.Prefix, name, ext)
}

// Generate prepares and renders a thumbnail into outPath. An empty outPath
// is derived from the output configuration.
func (t *Thumbnailer) Generate(ctx context.Context, req Request, outPath string) (Result, error) {
	job, err := t.Prepare(ctx, req)
	if err != nil {
		return Result{}, err
	}

	if outPath == "" {
		outPath = t.OutputPath(req.Source, req.Style, job.Pipeline.Extension)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return Result{}, err
	}

	res := Result{Job: job, Output: outPath}
	switch job.Pipeline.Kind {
	case orchestrator.PipelineFrames:
		err = t.renderFrames(ctx, req.Source, job, outPath)
		if job.Plan.Crop != nil {
			region := job.Plan.Crop.Rect
			res.Region, res.Stage = &region, job.Plan.Crop.Stage
		}
	default:
		res, err = t.renderRaster(ctx, req.Source, job, res)
	}
	if err != nil {
		return Result{}, fmt.Errorf("rendering %s: %w", req.Source, err)
	}

	logging.Info("wrote %s (%s, %s pipeline)", outPath, job.Target, job.Pipeline.Kind)
	return res, nil
}

func (t *Thumbnailer) renderFrames(ctx context.Context, source string, job orchestrator.Job, outPath string) error {
	g, err := t.processor.LoadGIF(ctx, source)
	if err != nil {
		return err
	}
	out, err := processing.TransformFrames(ctx, g, job.Plan)
	if err != nil {
		return err
	}
	return t.processor.SaveGIF(out, outPath)
}

func (t *Thumbnailer) renderRaster(ctx context.Context, source string, job orchestrator.Job, res Result) (Result, error) {
	if t.backend != nil && !isURL(source) {
		data, err := t.backend.ExecuteFile(ctx, source, job.Plan, job.Pipeline)
		if err != nil {
			return Result{}, err
		}
		if job.Plan.Crop != nil && !job.Plan.Attention {
			region := job.Plan.Crop.Rect
			res.Region, res.Stage = &region, job.Plan.Crop.Stage
		}
		res.Attention = job.Plan.Attention
		return res, os.WriteFile(res.Output, data, 0o644)
	}

	img, err := t.processor.LoadImageSmart(ctx, source)
	if err != nil {
		return Result{}, err
	}
	cropped, err := t.cropper.Execute(ctx, img, job.Plan)
	if err != nil {
		return Result{}, err
	}

	opts := processing.EncodeOptions{}
	if job.Pipeline.Quality != nil {
		opts.Quality = *job.Pipeline.Quality
	}
	if err := t.processor.SaveImage(cropped.Image, res.Output, job.Pipeline.Extension, opts); err != nil {
		return Result{}, err
	}

	res.Region, res.Stage, res.Attention = cropped.Region, cropped.Stage, cropped.Attention
	return res, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
