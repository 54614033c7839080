package vision

import (
	"context"
	"image"
	"image/color"
	"testing"
)

// createTestImage draws a bright square subject at the given rectangle over
// a flat dark background
func createTestImage(width, height int, subject image.Rectangle) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if image.Pt(x, y).In(subject) {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{40, 40, 40, 255})
			}
		}
	}

	return img
}

func TestNew(t *testing.T) {
	detector := New()
	if detector == nil {
		t.Fatal("New() returned nil")
	}
	if detector.config.AnalysisSize != 256 {
		t.Errorf("Expected analysis size 256, got %d", detector.config.AnalysisSize)
	}
}

func TestNewWithConfigDefaults(t *testing.T) {
	detector := NewWithConfig(DetectionConfig{EdgeWeight: 1})
	if detector.config.AnalysisSize != 256 || detector.config.MaxSubjects != 10 {
		t.Errorf("Expected zero sizes to take defaults, got %+v", detector.config)
	}
}

func TestRegion(t *testing.T) {
	region := Region{Rectangle: image.Rect(10, 20, 110, 100)}

	if c := region.Center(); c != image.Pt(60, 60) {
		t.Errorf("Expected center (60,60), got %v", c)
	}
	if a := region.Area(); a != 8000 {
		t.Errorf("Expected area 8000, got %d", a)
	}
}

func TestLocateFollowsSubject(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		subject       image.Rectangle
		check         func(image.Rectangle) bool
	}{
		{
			name: "subject on the right", width: 400, height: 200,
			subject: image.Rect(300, 60, 380, 140),
			check:   func(r image.Rectangle) bool { return r.Min.X >= 170 },
		},
		{
			name: "subject on the left", width: 400, height: 200,
			subject: image.Rect(20, 60, 100, 140),
			check:   func(r image.Rectangle) bool { return r.Min.X <= 30 },
		},
		{
			name: "subject at the bottom", width: 200, height: 400,
			subject: image.Rect(60, 300, 140, 380),
			check:   func(r image.Rectangle) bool { return r.Min.Y >= 170 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createTestImage(tt.width, tt.height, tt.subject)
			r, err := New().Locate(context.Background(), img, 100, 100)
			if err != nil {
				t.Fatalf("Locate failed: %v", err)
			}
			if r.Dx() != 200 || r.Dy() != 200 {
				t.Errorf("Expected a 200x200 region, got %v", r)
			}
			if !r.In(img.Bounds()) {
				t.Errorf("Region %v extends outside %v", r, img.Bounds())
			}
			if !tt.check(r) {
				t.Errorf("Region %v does not follow subject %v", r, tt.subject)
			}
		})
	}
}

func TestLocateUniformImageIsCentered(t *testing.T) {
	img := createTestImage(400, 200, image.Rectangle{})
	r, err := New().Locate(context.Background(), img, 1, 1)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if r != image.Rect(100, 0, 300, 200) {
		t.Errorf("Expected centered region, got %v", r)
	}
}

func TestLocateErrors(t *testing.T) {
	img := createTestImage(50, 50, image.Rect(10, 10, 20, 20))

	if _, err := New().Locate(context.Background(), img, 0, 10); err == nil {
		t.Error("Expected error for zero target")
	}
	if _, err := New().Locate(context.Background(), image.NewRGBA(image.Rectangle{}), 10, 10); err == nil {
		t.Error("Expected error for empty image")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Locate(ctx, img, 10, 10); err == nil {
		t.Error("Expected error for canceled context")
	}
}

func TestDetectSubjects(t *testing.T) {
	subject := image.Rect(250, 50, 350, 150)
	img := createTestImage(400, 200, subject)

	regions, err := New().DetectSubjects(context.Background(), img)
	if err != nil {
		t.Fatalf("DetectSubjects failed: %v", err)
	}
	if len(regions) == 0 {
		t.Fatal("Expected to detect at least one region")
	}
	if len(regions) > 10 {
		t.Errorf("Expected at most 10 regions, got %d", len(regions))
	}

	for i := 1; i < len(regions); i++ {
		if regions[i].Score > regions[i-1].Score {
			t.Errorf("Regions not sorted by score at %d", i)
		}
	}
	if !regions[0].Overlaps(subject) {
		t.Errorf("Expected the best region %v to overlap the subject", regions[0].Rectangle)
	}
}

func TestSaliencyMapSums(t *testing.T) {
	m := &saliencyMap{width: 2, height: 2, sums: []float64{
		0, 0, 0,
		0, 1, 3,
		0, 4, 10,
	}}
	if s := m.sum(0, 0, 2, 2); s != 10 {
		t.Errorf("Expected total 10, got %f", s)
	}
	if s := m.sum(1, 1, 2, 2); s != 4 {
		t.Errorf("Expected bottom-right cell 4, got %f", s)
	}
	if mean := m.mean(image.Rect(0, 0, 2, 1)); mean != 1.5 {
		t.Errorf("Expected top row mean 1.5, got %f", mean)
	}
}

func BenchmarkLocate(b *testing.B) {
	img := createTestImage(1000, 800, image.Rect(600, 300, 800, 500))
	d := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = d.Locate(context.Background(), img, 200, 200)
	}
}
