package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/disintegration/imaging"
)

// SaliencyLocator places attention crops where edge contrast and brightness
// are concentrated. It is a cheap, dependency-light alternative to smartcrop.
type SaliencyLocator struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for saliency detection
type DetectionConfig struct {
	EdgeWeight       float64
	BrightnessWeight float64
	// Threshold is the mean saliency a window needs to count as a subject
	Threshold       float64
	MinSubjectRatio float64
	MaxSubjects     int
	// AnalysisSize bounds the longer side of the image the map is built on
	AnalysisSize int
}

// New creates a new SaliencyLocator with default configuration
func New() *SaliencyLocator {
	return &SaliencyLocator{
		config: DetectionConfig{
			EdgeWeight:       0.6,
			BrightnessWeight: 0.4,
			Threshold:        0.01,
			MinSubjectRatio:  0.05,
			MaxSubjects:      10,
			AnalysisSize:     256,
		},
	}
}

// NewWithConfig creates a new SaliencyLocator with custom configuration
func NewWithConfig(config DetectionConfig) *SaliencyLocator {
	if config.AnalysisSize <= 0 {
		config.AnalysisSize = 256
	}
	if config.MaxSubjects <= 0 {
		config.MaxSubjects = 10
	}
	return &SaliencyLocator{config: config}
}

// Region is a scored rectangle in image coordinates
type Region struct {
	image.Rectangle
	Score float64
}

// Center returns the center point of the region
func (r Region) Center() image.Point {
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Dx() * r.Dy()
}

// saliencyMap is a summed-area table over per-pixel saliency, so any window
// sum is four lookups.
type saliencyMap struct {
	width, height int
	sums          []float64 // (width+1)*(height+1)
}

func (m *saliencyMap) sum(x0, y0, x1, y1 int) float64 {
	w := m.width + 1
	return m.sums[y1*w+x1] - m.sums[y0*w+x1] - m.sums[y1*w+x0] + m.sums[y0*w+x0]
}

func (m *saliencyMap) mean(r image.Rectangle) float64 {
	area := r.Dx() * r.Dy()
	if area <= 0 {
		return 0
	}
	return m.sum(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y) / float64(area)
}

// Locate implements the cropper's AttentionLocator: it returns the
// width:height shaped window with the highest total saliency. Ties resolve
// toward the center.
func (d *SaliencyLocator) Locate(ctx context.Context, img image.Image, width, height int) (image.Rectangle, error) {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid target %dx%d", width, height)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return image.Rectangle{}, fmt.Errorf("invalid image dimensions")
	}

	small, m, err := d.analyze(ctx, img)
	if err != nil {
		return image.Rectangle{}, err
	}

	// Crop size in both spaces; the search runs on the analysis image.
	cw, ch := fitAspect(bounds.Dx(), bounds.Dy(), width, height)
	sw, sh := small.Dx(), small.Dy()
	aw := max(1, min(sw, int(math.Round(float64(cw)*float64(sw)/float64(bounds.Dx())))))
	ah := max(1, min(sh, int(math.Round(float64(ch)*float64(sh)/float64(bounds.Dy())))))

	bestX, bestY := (sw-aw)/2, (sh-ah)/2
	best := m.sum(bestX, bestY, bestX+aw, bestY+ah)
	bestDist := 0
	for y := 0; y <= sh-ah; y++ {
		if err := ctx.Err(); err != nil {
			return image.Rectangle{}, err
		}
		for x := 0; x <= sw-aw; x++ {
			s := m.sum(x, y, x+aw, y+ah)
			dist := abs(x-(sw-aw)/2) + abs(y-(sh-ah)/2)
			if s > best+1e-9 || (math.Abs(s-best) <= 1e-9 && dist < bestDist) {
				best, bestX, bestY, bestDist = s, x, y, dist
			}
		}
	}

	x := bounds.Min.X + clamp(bestX*bounds.Dx()/sw, 0, bounds.Dx()-cw)
	y := bounds.Min.Y + clamp(bestY*bounds.Dy()/sh, 0, bounds.Dy()-ch)
	return image.Rect(x, y, x+cw, y+ch), nil
}

// DetectSubjects returns the most salient square windows, best first, in
// image coordinates.
func (d *SaliencyLocator) DetectSubjects(ctx context.Context, img image.Image) ([]Region, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("invalid image dimensions")
	}
	small, m, err := d.analyze(ctx, img)
	if err != nil {
		return nil, err
	}
	sw, sh := small.Dx(), small.Dy()

	minArea := float64(sw*sh) * d.config.MinSubjectRatio
	var regions []Region
	for _, div := range []int{8, 6, 4, 3} {
		size := min(sw, sh) * 2 / div
		if size < 4 || float64(size*size) < minArea {
			continue
		}
		step := max(1, size/4)
		for y := 0; y+size <= sh; y += step {
			for x := 0; x+size <= sw; x += step {
				r := image.Rect(x, y, x+size, y+size)
				if score := m.mean(r); score > d.config.Threshold {
					regions = append(regions, Region{Rectangle: r, Score: score})
				}
			}
		}
	}

	slices.SortStableFunc(regions, func(a, b Region) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(regions) > d.config.MaxSubjects {
		regions = regions[:d.config.MaxSubjects]
	}

	for i := range regions {
		r := regions[i].Rectangle
		regions[i].Rectangle = image.Rect(
			r.Min.X*bounds.Dx()/sw, r.Min.Y*bounds.Dy()/sh,
			r.Max.X*bounds.Dx()/sw, r.Max.Y*bounds.Dy()/sh,
		).Add(bounds.Min)
	}
	return regions, nil
}

// analyze downsamples img and builds its saliency map
func (d *SaliencyLocator) analyze(ctx context.Context, img image.Image) (image.Rectangle, *saliencyMap, error) {
	small := imaging.Fit(img, d.config.AnalysisSize, d.config.AnalysisSize, imaging.Box)
	w, h := small.Bounds().Dx(), small.Bounds().Dy()

	lum := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := small.PixOffset(x, y)
			p := small.Pix[i : i+4 : i+4]
			a := float64(p[3]) / 255
			lum[y*w+x] = (0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])) / 255 * a
		}
	}

	m := &saliencyMap{width: w, height: h, sums: make([]float64, (w+1)*(h+1))}
	stride := w + 1
	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return image.Rectangle{}, nil, err
		}
		var row float64
		for x := 0; x < w; x++ {
			row += d.pixelSaliency(lum, w, h, x, y)
			m.sums[(y+1)*stride+x+1] = m.sums[y*stride+x+1] + row
		}
	}
	return small.Bounds(), m, nil
}

// pixelSaliency mixes the mean luminance difference to the 8 neighbours
// with the pixel's own brightness.
func (d *SaliencyLocator) pixelSaliency(lum []float64, w, h, x, y int) float64 {
	c := lum[y*w+x]
	var edge float64
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			edge += math.Abs(c - lum[ny*w+nx])
			n++
		}
	}
	if n > 0 {
		edge /= float64(n)
	}
	return d.config.EdgeWeight*edge + d.config.BrightnessWeight*c
}

// fitAspect returns the largest width:height shaped size inside bw x bh
func fitAspect(bw, bh, width, height int) (int, int) {
	cw, ch := bw, bw*height/width
	if ch > bh {
		cw, ch = bh*width/height, bh
	}
	return max(cw, 1), max(ch, 1)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
