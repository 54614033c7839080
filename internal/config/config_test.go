package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/menta2k/thumbnail-planner/pkg/geometry"
	"github.com/menta2k/thumbnail-planner/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Styles["avatar"] = Style{
		Geometry:   "64x64#",
		Format:     "png",
		Operations: []types.Operation{{Name: "grayscale"}},
	}
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"thumbnail": {"whiny": false, "attention": "saliency"}, "styles": {"only": {"geometry": "50x50"}}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Thumbnail.Whiny || cfg.Thumbnail.Attention != AttentionSaliency {
		t.Errorf("Expected file values, got %+v", cfg.Thumbnail)
	}
	if cfg.Thumbnail.DefaultQuality != 85 || cfg.Model.Name == "" {
		t.Errorf("Expected defaults for absent fields, got %+v %+v", cfg.Thumbnail, cfg.Model)
	}
	if diff := cmp.Diff([]string{"only"}, cfg.StyleNames()); diff != "" {
		t.Errorf("Styles from the file should replace the defaults (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"quality", func(c *Config) { c.Thumbnail.DefaultQuality = 101 }, "default_quality"},
		{"attention", func(c *Config) { c.Thumbnail.Attention = "psychic" }, "attention"},
		{"ollama needs model", func(c *Config) { c.Thumbnail.Attention = AttentionOllama; c.Model.Name = "" }, "model.url"},
		{"confidence", func(c *Config) { c.Model.Confidence = 2 }, "min_confidence"},
		{"geometry", func(c *Config) { c.Styles["bad"] = Style{Geometry: "huge"} }, "styles.bad.geometry"},
		{"operation name", func(c *Config) {
			c.Styles["bad"] = Style{Geometry: "10x10", Operations: []types.Operation{{}}}
		}, "styles.bad.operations[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}

	cfg := Default()
	cfg.Styles["bad"] = Style{Geometry: "huge"}
	if err := cfg.Validate(); !errors.Is(err, geometry.ErrGeometryParse) {
		t.Errorf("Expected ErrGeometryParse, got %v", err)
	}
	cfg.Thumbnail.Whiny = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("Non-whiny config should accept bad geometry, got %v", err)
	}
}

func TestStyle(t *testing.T) {
	cfg := Default()
	s, err := cfg.Style("thumb")
	if err != nil {
		t.Fatalf("Style failed: %v", err)
	}
	if s.Geometry != "100x100#" || !s.Animated() {
		t.Errorf("Unexpected thumb style %+v", s)
	}

	off := false
	if (Style{Animate: &off}).Animated() {
		t.Error("Expected explicit animate=false to disable frames")
	}

	if _, err := cfg.Style("nope"); err == nil {
		t.Error("Expected error for unknown style")
	}
	if diff := cmp.Diff([]string{"large", "medium", "thumb"}, cfg.StyleNames()); diff != "" {
		t.Errorf("StyleNames mismatch (-want +got):\n%s", diff)
	}
}

func TestGetConfigPath(t *testing.T) {
	if p := GetConfigPath(); !strings.HasSuffix(p, "config.json") {
		t.Errorf("Expected a config.json path, got %q", p)
	}
}
