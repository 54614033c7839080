package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/menta2k/thumbnail-planner/pkg/geometry"
	"github.com/menta2k/thumbnail-planner/pkg/types"
)

// Attention backends accepted in thumbnail.attention
const (
	AttentionSmartcrop = "smartcrop"
	AttentionSaliency  = "saliency"
	AttentionOllama    = "ollama"
	AttentionNone      = "none"
)

// Config holds the application configuration
type Config struct {
	Thumbnail ThumbnailConfig  `json:"thumbnail"`
	Styles    map[string]Style `json:"styles"`
	Model     ModelConfig      `json:"model"`
	Output    OutputConfig     `json:"output"`
}

// ThumbnailConfig holds settings shared by every style
type ThumbnailConfig struct {
	Whiny           bool     `json:"whiny"`
	DefaultQuality  int      `json:"default_quality"`
	AnimatedFormats []string `json:"animated_formats"`
	Attention       string   `json:"attention"`
}

// Style is one named thumbnail definition
type Style struct {
	Geometry       string            `json:"geometry"`
	Crop           bool              `json:"crop,omitempty"`
	Format         string            `json:"format,omitempty"`
	ConvertOptions string            `json:"convert_options,omitempty"`
	Animate        *bool             `json:"animate,omitempty"`
	Operations     []types.Operation `json:"operations,omitempty"`
}

// Animated reports whether frames should be kept; unset means yes
func (s Style) Animated() bool {
	return s.Animate == nil || *s.Animate
}

// ModelConfig holds the vision model used by the ollama attention backend
type ModelConfig struct {
	URL          string  `json:"url"`
	Name         string  `json:"name"`
	MaxDimension int     `json:"max_dimension"`
	Confidence   float64 `json:"min_confidence"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	OutputDir string `json:"output_dir"`
	Prefix    string `json:"prefix"`
	Suffix    string `json:"suffix"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Thumbnail: ThumbnailConfig{
			Whiny:           true,
			DefaultQuality:  85,
			AnimatedFormats: []string{"gif"},
			Attention:       AttentionSmartcrop,
		},
		Styles: map[string]Style{
			"thumb":  {Geometry: "100x100#"},
			"medium": {Geometry: "300x300>"},
			"large":  {Geometry: "1200x1200>", ConvertOptions: "-strip -quality 90"},
		},
		Model: ModelConfig{
			URL:          "http://localhost:11434",
			Name:         "openbmb/minicpm-v4.5",
			MaxDimension: 768,
			Confidence:   0.2,
		},
		Output: OutputConfig{
			OutputDir: "./output",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields absent from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	config.Styles = nil
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Styles == nil {
		config.Styles = Default().Styles
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Thumbnail.DefaultQuality < 0 || c.Thumbnail.DefaultQuality > 100 {
		return fmt.Errorf("thumbnail.default_quality must be between 0 and 100")
	}

	switch c.Thumbnail.Attention {
	case AttentionSmartcrop, AttentionSaliency, AttentionOllama, AttentionNone, "":
	default:
		return fmt.Errorf("thumbnail.attention must be one of smartcrop, saliency, ollama, none")
	}

	if c.Thumbnail.Attention == AttentionOllama && (c.Model.URL == "" || c.Model.Name == "") {
		return fmt.Errorf("model.url and model.name are required for ollama attention")
	}

	if c.Model.Confidence < 0 || c.Model.Confidence > 1 {
		return fmt.Errorf("model.min_confidence must be between 0 and 1")
	}

	for _, name := range c.StyleNames() {
		s := c.Styles[name]
		if _, ok := geometry.Parse(s.Geometry); !ok && c.Thumbnail.Whiny {
			return fmt.Errorf("styles.%s.geometry: %w: %q", name, geometry.ErrGeometryParse, s.Geometry)
		}
		for i, op := range s.Operations {
			if op.Name == "" {
				return fmt.Errorf("styles.%s.operations[%d]: name is required", name, i)
			}
		}
	}

	return nil
}

// Style returns the named style
func (c *Config) Style(name string) (Style, error) {
	s, ok := c.Styles[name]
	if !ok {
		return Style{}, fmt.Errorf("unknown style %q (have %v)", name, c.StyleNames())
	}
	return s, nil
}

// StyleNames returns the configured style names in sorted order
func (c *Config) StyleNames() []string {
	names := make([]string, 0, len(c.Styles))
	for name := range c.Styles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "thumbnail-planner", "config.json")
}
