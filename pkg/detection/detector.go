package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/menta2k/thumbnail-planner/internal/logging"
	"github.com/menta2k/thumbnail-planner/pkg/client"
	"github.com/menta2k/thumbnail-planner/pkg/processing"
	"github.com/menta2k/thumbnail-planner/pkg/types"
)

// ErrNoSubject means the model found nothing worth centering a crop on
var ErrNoSubject = errors.New("detection: no subject found")

// DefaultPrompt asks the model for the primary subject box
const DefaultPrompt = `You are an image subject locator for thumbnail cropping.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}
  },
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- The box should tightly include the visually dominant subject (prefer people, animals, vehicles; else the most salient object).
- Do not guess real identities.
- Tags: lowercase, concise, no duplicates.
- If no subject is found, set "label" to "none" and "confidence" to 0.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Config controls model-backed detection
type Config struct {
	Model         string
	Prompt        string
	MaxDimension  int     // longest side of the image sent to the model
	Quality       int     // JPEG quality of the image sent to the model
	MinConfidence float64 // results below this count as no subject
}

// DefaultConfig returns the configuration used by NewDetector
func DefaultConfig(model string) Config {
	return Config{
		Model:         model,
		Prompt:        DefaultPrompt,
		MaxDimension:  768,
		Quality:       85,
		MinConfidence: 0.2,
	}
}

// Detector locates crop subjects with a vision model
type Detector struct {
	client    client.VisionClient
	processor *processing.Processor
	config    Config
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient, model string) *Detector {
	return NewDetectorWithConfig(client, DefaultConfig(model))
}

// NewDetectorWithConfig creates a detector with custom configuration
func NewDetectorWithConfig(client client.VisionClient, config Config) *Detector {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	return &Detector{client: client, processor: processing.NewProcessor(), config: config}
}

// DetectSubject asks the model for the primary subject of img. The box in
// the result is normalized to [0,1].
func (d *Detector) DetectSubject(ctx context.Context, img image.Image) (*types.AnalysisResult, error) {
	imageB64, err := d.processor.PrepareImageForModel(img, "jpg", d.config.MaxDimension, d.config.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image for model: %w", err)
	}

	result, err := d.client.AnalyzeImage(ctx, d.config.Model, d.config.Prompt, imageB64)
	if err != nil {
		return nil, err
	}

	result.Primary.Box = normalizeBox(result.Primary.Box)
	result.Primary.Cx = result.Primary.Box.X + result.Primary.Box.W/2
	result.Primary.Cy = result.Primary.Box.Y + result.Primary.Box.H/2
	result.Tags = normalizeTags(result.Tags)

	if d.isEmpty(result) {
		return result, ErrNoSubject
	}
	return result, nil
}

// Locate implements the cropper's AttentionLocator by centering a
// width:height window on the detected subject.
func (d *Detector) Locate(ctx context.Context, img image.Image, width, height int) (image.Rectangle, error) {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid target %dx%d", width, height)
	}

	result, err := d.DetectSubject(ctx, img)
	if err != nil {
		return image.Rectangle{}, err
	}
	logging.Debug("model subject %q (%.2f) at %+v", result.Primary.Label, result.Primary.Confidence, result.Primary.Box)

	return CalculateOptimalCropBox(result.Primary.Box, img.Bounds(), width, height), nil
}

func (d *Detector) isEmpty(result *types.AnalysisResult) bool {
	label := strings.ToLower(strings.TrimSpace(result.Primary.Label))
	if label == "" || label == "none" {
		return true
	}
	if result.Primary.Box.W <= 0 || result.Primary.Box.H <= 0 {
		return true
	}
	return result.Primary.Confidence < d.config.MinConfidence
}

// CalculateOptimalCropBox returns the largest width:height window inside
// bounds whose center is as close to the subject's center as the edges allow.
func CalculateOptimalCropBox(subject types.Box, bounds image.Rectangle, width, height int) image.Rectangle {
	bw, bh := bounds.Dx(), bounds.Dy()
	cw, ch := bw, bw*height/width
	if ch > bh {
		cw, ch = bh*width/height, bh
	}
	cw, ch = max(cw, 1), max(ch, 1)

	cx := (subject.X + subject.W/2) * float64(bw)
	cy := (subject.Y + subject.H/2) * float64(bh)
	x := FindNearestOffset(cx-float64(cw)/2, bw-cw)
	y := FindNearestOffset(cy-float64(ch)/2, bh-ch)

	return image.Rect(x, y, x+cw, y+ch).Add(bounds.Min)
}

// FindNearestOffset rounds want to the nearest integer offset in [0, limit]
func FindNearestOffset(want float64, limit int) int {
	return int(clamp(math.Round(want), 0, float64(max(limit, 0))))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox clamps the box into the unit square
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags lowercases, dedupes and limits tags to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
