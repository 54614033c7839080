// Package orchestrator decides, per source format and animation policy, which
// pipeline renders a thumbnail and prepares the transform plan it runs.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/menta2k/thumbnail-planner/internal/logging"
	"github.com/menta2k/thumbnail-planner/internal/utils"
	"github.com/menta2k/thumbnail-planner/pkg/geometry"
	"github.com/menta2k/thumbnail-planner/pkg/planner"
	"github.com/menta2k/thumbnail-planner/pkg/types"
)

// PipelineKind names the executor that renders a thumbnail
type PipelineKind string

const (
	PipelineRaster PipelineKind = "raster"
	PipelineFrames PipelineKind = "frame-preserving"
)

// DefaultAnimatedFormats are the source formats whose frames can be preserved
var DefaultAnimatedFormats = []string{"gif"}

// The raster encoder only writes a few formats reliably; everything else is
// forced onto one of them.
var normalizedExtensions = map[string]string{
	"jpeg":  "jpg",
	"jpe":   "jpg",
	"jfif":  "jpg",
	"pjpeg": "jpg",
	"pdf":   "png",
	"tif":   "png",
	"tiff":  "png",
	"bmp":   "png",
}

// ColorspaceOperation converts the output to standard RGB
var ColorspaceOperation = types.Operation{Name: "colorspace", Params: []string{"srgb"}}

// PipelineChoice is the output side of a thumbnail request
type PipelineChoice struct {
	Kind          PipelineKind `json:"kind"`
	Extension     string       `json:"extension"`
	Quality       *int         `json:"quality,omitempty"`
	StripMetadata bool         `json:"strip_metadata,omitempty"`
	ConvertToSRGB bool         `json:"convert_to_srgb,omitempty"`
}

// Decide picks the pipeline using DefaultAnimatedFormats
func Decide(sourceFormat string, animate bool, requestedFormat string) PipelineChoice {
	return decide(DefaultAnimatedFormats, sourceFormat, animate, requestedFormat)
}

func decide(animated []string, sourceFormat string, animate bool, requestedFormat string) PipelineChoice {
	source := normalizeFormat(sourceFormat)
	requested := normalizeFormat(requestedFormat)

	if animate && contains(animated, source) && (requested == "" || contains(animated, requested)) {
		return PipelineChoice{Kind: PipelineFrames, Extension: source}
	}

	ext := requested
	if ext == "" {
		ext = source
	}
	choice := PipelineChoice{Kind: PipelineRaster, Extension: ext}
	if forced, ok := normalizedExtensions[ext]; ok {
		choice.Extension = forced
		choice.ConvertToSRGB = forced != ext
	}
	return choice
}

// ExtractQuality returns the first valid -quality directive in a convert
// options string. Directives whose value is not an integer in 0..100 are
// skipped.
func ExtractQuality(options string) (int, bool) {
	fields := strings.Fields(options)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] != "-quality" {
			continue
		}
		q, err := strconv.Atoi(fields[i+1])
		if err == nil && q >= 0 && q <= 100 {
			return q, true
		}
	}
	return 0, false
}

// ExtractStrip reports whether the options carry a -strip token
func ExtractStrip(options string) bool {
	for _, tok := range strings.Fields(options) {
		if tok == "-strip" {
			return true
		}
	}
	return false
}

// Config is threaded into every request in place of process-wide settings
type Config struct {
	// Whiny turns an unparseable target geometry into an error instead of a
	// passthrough job.
	Whiny           bool
	AnimatedFormats []string
	DefaultQuality  int
}

// DefaultConfig returns the settings used by New
func DefaultConfig() Config {
	return Config{
		Whiny:           true,
		AnimatedFormats: DefaultAnimatedFormats,
		DefaultQuality:  85,
	}
}

// Request describes one thumbnail to prepare
type Request struct {
	// Source is the file reference handed to the dimensions provider.
	Source string
	// SourceFormat overrides the format derived from the Source extension.
	SourceFormat   string
	Geometry       string
	Format         string
	ConvertOptions string
	Animate        bool
	// Crop forces crop-to-fill even when the geometry has no # modifier.
	Crop         bool
	ExplicitCrop *types.Rect
	Operations   []types.Operation
}

// Job is a prepared thumbnail: measured source, target and the plan to run
type Job struct {
	Source   geometry.Geometry     `json:"source"`
	Target   geometry.Geometry     `json:"target"`
	Pipeline PipelineChoice        `json:"pipeline"`
	Plan     planner.TransformPlan `json:"plan"`
}

// Orchestrator prepares thumbnail jobs
type Orchestrator struct {
	config   Config
	provider geometry.DimensionsProvider
}

// New creates an Orchestrator with default configuration
func New(provider geometry.DimensionsProvider) *Orchestrator {
	return NewWithConfig(DefaultConfig(), provider)
}

// NewWithConfig creates an Orchestrator with custom configuration
func NewWithConfig(config Config, provider geometry.DimensionsProvider) *Orchestrator {
	if len(config.AnimatedFormats) == 0 {
		config.AnimatedFormats = DefaultAnimatedFormats
	}
	return &Orchestrator{config: config, provider: provider}
}

// Config returns the orchestrator's configuration
func (o *Orchestrator) Config() Config {
	return o.config
}

// Decide picks the pipeline using the configured animated formats
func (o *Orchestrator) Decide(sourceFormat string, animate bool, requestedFormat string) PipelineChoice {
	return decide(o.config.AnimatedFormats, sourceFormat, animate, requestedFormat)
}

// Prepare measures the source, chooses a pipeline and plans the transform.
// Measurement always happens first; a source that cannot be measured fails
// the request.
func (o *Orchestrator) Prepare(ctx context.Context, req Request) (Job, error) {
	src, err := geometry.Measure(ctx, o.provider, req.Source)
	if err != nil {
		return Job{}, err
	}

	sourceFormat := req.SourceFormat
	if sourceFormat == "" {
		sourceFormat = utils.GetFileExtension(req.Source)
	}

	choice := o.Decide(sourceFormat, req.Animate, req.Format)
	if q, ok := ExtractQuality(req.ConvertOptions); ok {
		choice.Quality = &q
	} else if o.config.DefaultQuality > 0 {
		q := o.config.DefaultQuality
		choice.Quality = &q
	}
	choice.StripMetadata = ExtractStrip(req.ConvertOptions)

	convention := planner.ConventionString
	if choice.Kind == PipelineFrames {
		convention = planner.ConventionDiscrete
	}
	logging.Debug("%s: %s pipeline, .%s output, %s convention", req.Source, choice.Kind, choice.Extension, convention)

	ops := append([]types.Operation(nil), req.Operations...)
	if choice.ConvertToSRGB {
		ops = append(ops, ColorspaceOperation)
	}

	target, ok := geometry.Parse(req.Geometry)
	if !ok {
		if o.config.Whiny {
			return Job{}, fmt.Errorf("%w: %q", geometry.ErrGeometryParse, req.Geometry)
		}
		logging.Warn("%s: ignoring unparseable geometry %q, keeping source size", req.Source, req.Geometry)
		return Job{
			Source:   src,
			Target:   src,
			Pipeline: choice,
			Plan:     planner.TransformPlan{Mode: planner.ModeNone, Operations: nilIfEmpty(ops)},
		}, nil
	}

	plan, err := planner.Plan(planner.Request{
		Source:       src,
		Target:       target,
		Crop:         req.Crop || target.IsCrop(),
		ExplicitCrop: req.ExplicitCrop,
		Convention:   convention,
		Operations:   ops,
	})
	if err != nil {
		return Job{}, fmt.Errorf("planning %s for %s: %w", target, req.Source, err)
	}

	return Job{Source: src, Target: target, Pipeline: choice, Plan: plan}, nil
}

func normalizeFormat(format string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if normalizeFormat(s) == v {
			return true
		}
	}
	return false
}

func nilIfEmpty(ops []types.Operation) []types.Operation {
	if len(ops) == 0 {
		return nil
	}
	return ops
}
