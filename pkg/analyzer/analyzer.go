package analyzer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageAnalyzer measures source images without decoding their pixels
type ImageAnalyzer struct {
	config Config
	client *http.Client
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	MinImageSize     int
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	Format      string
	AspectRatio float64
	// Orientation is the EXIF orientation; 1 when absent
	Orientation int
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return NewWithConfig(Config{
		SupportedFormats: []string{"jpeg", "png", "gif", "webp", "bmp", "tiff"},
		MinImageSize:     1,
	})
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config, client: http.DefaultClient}
}

// Dimensions reports the pixel size of a file path or http(s) URL
func (a *ImageAnalyzer) Dimensions(ctx context.Context, ref string) (int, int, error) {
	info, err := a.Inspect(ctx, ref)
	if err != nil {
		return 0, 0, err
	}
	return info.Width, info.Height, nil
}

// Inspect reads the image header of ref and validates it
func (a *ImageAnalyzer) Inspect(ctx context.Context, ref string) (ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return ImageInfo{}, err
	}

	rc, err := a.open(ctx, ref)
	if err != nil {
		return ImageInfo{}, err
	}
	defer rc.Close()

	info, err := a.InspectReader(rc)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%s: %w", ref, err)
	}
	return info, nil
}

// InspectReader reads an image header from r. Only the bytes up to the
// dimensions are consumed. JPEG sizes are reported after EXIF orientation,
// matching the pixels the executors see once they auto-rotate.
func (a *ImageAnalyzer) InspectReader(r io.Reader) (ImageInfo, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(12)
	webpHeader := isWebP(head)

	var consumed bytes.Buffer
	cfg, format, err := image.DecodeConfig(io.TeeReader(br, &consumed))
	if err != nil {
		if !webpHeader {
			return ImageInfo{}, fmt.Errorf("failed to read image header: %w", err)
		}
		// Fallback: the cgo decoder handles webp variants x/image rejects.
		cfg, err = webp.DecodeConfig(io.MultiReader(bytes.NewReader(consumed.Bytes()), br))
		if err != nil {
			return ImageInfo{}, fmt.Errorf("failed to read webp header: %w", err)
		}
		format = "webp"
	}

	info := GetImageInfo(cfg, format)
	if format == "jpeg" {
		// APP1 precedes the frame header, so the consumed bytes hold it.
		info.Orientation = readOrientation(consumed.Bytes())
		if info.Orientation >= 5 {
			info.Width, info.Height = info.Height, info.Width
			info.AspectRatio = float64(info.Width) / float64(info.Height)
		}
	}
	if !a.isFormatSupported(format) {
		return info, fmt.Errorf("unsupported image format: %s", format)
	}
	if err := a.ValidateImage(info); err != nil {
		return info, err
	}
	return info, nil
}

// readOrientation returns the EXIF orientation (1..8) of a JPEG header, or 1
// when none is recorded.
func readOrientation(header []byte) int {
	x, err := exif.Decode(bytes.NewReader(header))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// GetImageInfo derives ImageInfo from a decoded header
func GetImageInfo(cfg image.Config, format string) ImageInfo {
	info := ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format, Orientation: 1}
	if cfg.Height > 0 {
		info.AspectRatio = float64(cfg.Width) / float64(cfg.Height)
	}
	return info
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(info ImageInfo) error {
	if info.Width < a.config.MinImageSize || info.Height < a.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			info.Width, info.Height, a.config.MinImageSize)
	}
	return nil
}

func (a *ImageAnalyzer) open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		f, err := os.Open(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to open image file: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch image: HTTP %s", resp.Status)
	}
	return resp.Body, nil
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

func isWebP(head []byte) bool {
	return len(head) >= 12 && string(head[0:4]) == "RIFF" && string(head[8:12]) == "WEBP"
}
