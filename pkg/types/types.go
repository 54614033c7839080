package types

import (
	"fmt"
	"image"
	"regexp"
	"strconv"
	"strings"
)

// Rect is a pixel rectangle: an offset and a size
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

var rectPattern = regexp.MustCompile(`^(\d+)x(\d+)([+-]\d+)([+-]\d+)$`)

// ParseRect accepts either "WxH+X+Y" or "x,y,w,h"
func ParseRect(s string) (Rect, error) {
	s = strings.TrimSpace(s)
	if m := rectPattern.FindStringSubmatch(s); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		x, _ := strconv.Atoi(m[3])
		y, _ := strconv.Atoi(m[4])
		return Rect{X: x, Y: y, Width: w, Height: h}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, fmt.Errorf("invalid rectangle %q: want WxH+X+Y or x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Rect{}, fmt.Errorf("invalid rectangle %q: %w", s, err)
		}
		v[i] = n
	}
	return Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

// String renders the rectangle as a crop geometry, e.g. 100x100+0+25
func (r Rect) String() string {
	return fmt.Sprintf("%dx%d%+d%+d", r.Width, r.Height, r.X, r.Y)
}

// Empty reports whether the rectangle has no area
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Image converts to an image.Rectangle anchored at the origin of bounds
func (r Rect) Image(bounds image.Rectangle) image.Rectangle {
	origin := bounds.Min.Add(image.Pt(r.X, r.Y))
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(r.Width, r.Height))}
}

// RectFromImage converts an image.Rectangle relative to bounds
func RectFromImage(rect, bounds image.Rectangle) Rect {
	return Rect{
		X:      rect.Min.X - bounds.Min.X,
		Y:      rect.Min.Y - bounds.Min.Y,
		Width:  rect.Dx(),
		Height: rect.Dy(),
	}
}

// Operation is a named transform with opaque parameters, applied by an executor
type Operation struct {
	Name   string   `json:"name"`
	Params []string `json:"params,omitempty"`
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the subject analysis returned by a vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
