package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	path := filepath.Join(t.TempDir(), "src.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunErrorsAreReturned(t *testing.T) {
	src := writeSource(t, 40, 20)
	config := filepath.Join(t.TempDir(), "config.json")
	if err := run([]string{"-save-config", config, "-attention", "none"}); err != nil {
		t.Fatalf("save-config failed: %v", err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"usage", []string{"-config", config}, "usage"},
		{"backend", []string{"-config", config, "-in", src, "-geometry", "10x10", "-backend", "magick"}, "unknown backend"},
		{"geometry", []string{"-config", config, "-in", src, "-geometry", "huge"}, "no width or height"},
		{"crop", []string{"-config", config, "-in", src, "-geometry", "10x10", "-crop", "1,2"}, "invalid rectangle"},
		{"flag", []string{"-nope"}, "flag provided but not defined"},
	}
	if !vipsAvailable {
		tests = append(tests, struct {
			name string
			args []string
			want string
		}{"vips", []string{"-config", config, "-in", src, "-geometry", "10x10", "-backend", "vips"}, "not compiled in"})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRunRendersThumbnail(t *testing.T) {
	src := writeSource(t, 40, 20)
	config := filepath.Join(t.TempDir(), "config.json")
	if err := run([]string{"-save-config", config, "-attention", "none"}); err != nil {
		t.Fatalf("save-config failed: %v", err)
	}
	out := filepath.Join(t.TempDir(), "thumb.png")

	if err := run([]string{"-config", config, "-in", src, "-geometry", "10x10#", "-out", out}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 10 || cfg.Height != 10 {
		t.Errorf("Expected 10x10, got %dx%d", cfg.Width, cfg.Height)
	}

	if err := run([]string{"-config", config, "-in", src, "-geometry", "10x10#", "-plan"}); err != nil {
		t.Errorf("plan-only run failed: %v", err)
	}
}
