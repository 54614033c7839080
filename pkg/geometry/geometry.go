// Package geometry parses and renders thumbnail geometry strings and computes
// the scale and crop needed to turn one geometry into another.
//
// A geometry string has the form
//
//	[<width>][x<height>][<modifier>]
//
// where either dimension may be omitted (meaning unconstrained on that axis)
// and the modifier is one of > < # @ % ^ !.
package geometry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrGeometryParse is returned by callers that require a geometry string to parse
	ErrGeometryParse = errors.New("geometry: no width or height in geometry string")

	// ErrDimensionsUnavailable is returned when a source cannot be measured
	ErrDimensionsUnavailable = errors.New("geometry: source dimensions unavailable")

	// ErrDegenerateGeometry is returned when crop math is asked to divide by a zero dimension
	ErrDegenerateGeometry = errors.New("geometry: zero source dimension in crop computation")
)

// Modifier is the trailing flag of a geometry string
type Modifier byte

// Modifiers understood by the geometry grammar
const (
	ModifierNone    Modifier = 0
	ModifierShrink  Modifier = '>' // only shrink larger images
	ModifierEnlarge Modifier = '<' // only enlarge smaller images
	ModifierCrop    Modifier = '#' // fill the box and crop the overflow
	ModifierArea    Modifier = '@' // width*height is a pixel area limit
	ModifierPercent Modifier = '%' // dimensions are percentages
	ModifierFill    Modifier = '^' // dimensions are minimums
	ModifierForce   Modifier = '!' // ignore aspect ratio
)

// String returns the modifier character, or "" for ModifierNone
func (m Modifier) String() string {
	if m == ModifierNone {
		return ""
	}
	return string(rune(m))
}

func validModifier(c byte) bool {
	switch Modifier(c) {
	case ModifierShrink, ModifierEnlarge, ModifierCrop, ModifierArea,
		ModifierPercent, ModifierFill, ModifierForce:
		return true
	}
	return false
}

// Geometry is an immutable width/height/modifier triple
type Geometry struct {
	Width    float64
	Height   float64
	Modifier Modifier
}

var geometryPattern = regexp.MustCompile(`^(\d*)(?:[xX](\d*))?([><#@%^!])?$`)

// Parse reads a geometry string. It reports false when the string carries no
// usable width or height; that is a normal outcome the caller must handle.
func Parse(s string) (Geometry, bool) {
	m := geometryPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || (m[1] == "" && m[2] == "") {
		return Geometry{}, false
	}

	var g Geometry
	if m[1] != "" {
		w, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Geometry{}, false
		}
		g.Width = w
	}
	if m[2] != "" {
		h, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return Geometry{}, false
		}
		g.Height = h
	}
	if m[3] != "" && validModifier(m[3][0]) {
		g.Modifier = Modifier(m[3][0])
	}

	if g.Width <= 0 && g.Height <= 0 {
		return Geometry{}, false
	}
	return g, true
}

// MustParse is like Parse but panics on failure. Intended for constants and tests.
func MustParse(s string) Geometry {
	g, ok := Parse(s)
	if !ok {
		panic(fmt.Sprintf("geometry: cannot parse %q", s))
	}
	return g
}

// FromDimensions wraps measured pixel dimensions
func FromDimensions(width, height int) Geometry {
	return Geometry{Width: float64(width), Height: float64(height)}
}

// DimensionsProvider reports the pixel size of a file or other source reference
type DimensionsProvider interface {
	Dimensions(ctx context.Context, ref string) (width, height int, err error)
}

// Measure asks provider for the dimensions of ref
func Measure(ctx context.Context, provider DimensionsProvider, ref string) (Geometry, error) {
	if strings.TrimSpace(ref) == "" {
		return Geometry{}, fmt.Errorf("%w: empty source reference", ErrDimensionsUnavailable)
	}
	if provider == nil {
		return Geometry{}, fmt.Errorf("%w: no dimensions provider for %s", ErrDimensionsUnavailable, ref)
	}

	w, h, err := provider.Dimensions(ctx, ref)
	if err != nil {
		return Geometry{}, fmt.Errorf("%w: %s: %v", ErrDimensionsUnavailable, ref, err)
	}
	if w <= 0 || h <= 0 {
		return Geometry{}, fmt.Errorf("%w: %s reported %dx%d", ErrDimensionsUnavailable, ref, w, h)
	}
	return FromDimensions(w, h), nil
}

// String renders the geometry back to the grammar accepted by Parse
func (g Geometry) String() string {
	var b strings.Builder
	if g.Width > 0 {
		b.WriteString(strconv.Itoa(int(g.Width)))
	}
	if g.Height > 0 {
		b.WriteString("x")
		b.WriteString(strconv.Itoa(int(g.Height)))
	}
	b.WriteString(g.Modifier.String())
	return b.String()
}

// IsSquare reports whether width equals height
func (g Geometry) IsSquare() bool { return g.Width == g.Height }

// IsHorizontal reports whether the geometry is wider than tall
func (g Geometry) IsHorizontal() bool { return g.Width > g.Height }

// IsVertical reports whether the geometry is taller than wide
func (g Geometry) IsVertical() bool { return g.Height > g.Width }

// IsCrop reports whether the modifier asks for crop-to-fill
func (g Geometry) IsCrop() bool { return g.Modifier == ModifierCrop }

// Aspect returns width/height. ok is false when height is zero.
func (g Geometry) Aspect() (aspect float64, ok bool) {
	if g.Height == 0 {
		return 0, false
	}
	return g.Width / g.Height, true
}

// Larger returns the larger of the two dimensions
func (g Geometry) Larger() float64 { return math.Max(g.Width, g.Height) }

// Smaller returns the smaller of the two dimensions
func (g Geometry) Smaller() float64 { return math.Min(g.Width, g.Height) }

// IsZero reports whether neither dimension is set
func (g Geometry) IsZero() bool { return g.Width <= 0 && g.Height <= 0 }

// WithModifier returns a copy carrying m
func (g Geometry) WithModifier(m Modifier) Geometry {
	g.Modifier = m
	return g
}

// Scale returns a copy with both dimensions multiplied by f
func (g Geometry) Scale(f float64) Geometry {
	g.Width *= f
	g.Height *= f
	return g
}
