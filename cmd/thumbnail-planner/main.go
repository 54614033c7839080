package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	thumbplanner "github.com/menta2k/thumbnail-planner"
	"github.com/menta2k/thumbnail-planner/internal/config"
	"github.com/menta2k/thumbnail-planner/internal/logging"
	"github.com/menta2k/thumbnail-planner/pkg/planner"
	"github.com/menta2k/thumbnail-planner/pkg/processing"
	"github.com/menta2k/thumbnail-planner/pkg/types"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logging.Error("%v", err)
		os.Exit(1)
	}
}

// run parses flags and renders one thumbnail. Deferred cleanup such as the
// libvips shutdown always runs before main exits.
func run(args []string) error {
	fs := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ContinueOnError)
	var in, out, style, geometry, format, convert, crop string
	var configPath, attention, url, model, backend, saveConfig string
	var forceCrop, noAnimate, planOnly, asJSON, debug, listStyles, version bool

	fs.StringVar(&in, "in", "", "input image path or URL")
	fs.StringVar(&out, "out", "", "output file (default: derived from the output config)")
	fs.StringVar(&style, "style", "", "named style from the config")
	fs.StringVar(&geometry, "geometry", "", "target geometry, e.g. 100x100# or 300x300> (overrides the style)")
	fs.StringVar(&format, "format", "", "output format, e.g. jpg|png|webp|gif")
	fs.StringVar(&convert, "convert", "", "convert options, e.g. \"-strip -quality 80\"")
	fs.StringVar(&crop, "crop", "", "explicit source crop as WxH+X+Y or x,y,w,h")
	fs.BoolVar(&forceCrop, "fill", false, "crop to fill even without the # modifier")
	fs.BoolVar(&noAnimate, "no-animate", false, "flatten animated sources to a single frame")

	fs.StringVar(&configPath, "config", "", "config file (default: "+config.GetConfigPath()+" when present)")
	fs.StringVar(&saveConfig, "save-config", "", "write the effective config to this path and exit")
	fs.StringVar(&attention, "attention", "", "attention backend: smartcrop|saliency|ollama|none")
	fs.StringVar(&url, "url", "", "Ollama server URL for -attention ollama")
	fs.StringVar(&model, "model", "", "vision model for -attention ollama")
	fs.StringVar(&backend, "backend", "builtin", "raster executor: builtin|vips")

	fs.BoolVar(&planOnly, "plan", false, "print the plan without rendering")
	fs.BoolVar(&asJSON, "json", false, "print the job or result as JSON")
	fs.BoolVar(&debug, "debug", false, "debug logging and a crop overlay next to the output")
	fs.BoolVar(&listStyles, "styles", false, "list configured styles and exit")
	fs.BoolVar(&version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if version {
		fmt.Println(thumbplanner.GetVersion())
		return nil
	}
	if debug {
		logging.SetLevel(logging.LevelDebug)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if attention != "" {
		cfg.Thumbnail.Attention = attention
	}
	if url != "" {
		cfg.Model.URL = url
	}
	if model != "" {
		cfg.Model.Name = model
	}

	if saveConfig != "" {
		if err := cfg.SaveToFile(saveConfig); err != nil {
			return err
		}
		logging.Info("wrote %s", saveConfig)
		return nil
	}
	if listStyles {
		for _, name := range cfg.StyleNames() {
			s := cfg.Styles[name]
			fmt.Printf("%-12s %-14s %s\n", name, s.Geometry, strings.TrimSpace(s.Format+" "+s.ConvertOptions))
		}
		return nil
	}

	if in == "" || (style == "" && geometry == "") {
		return fmt.Errorf("usage: %s -in input.jpg|URL (-style name | -geometry 100x100#) [-out file] [-format png] [-plan] [-json]", filepath.Base(os.Args[0]))
	}

	t, err := thumbplanner.New(cfg)
	if err != nil {
		return err
	}

	switch backend {
	case "builtin":
	case "vips":
		if !vipsAvailable {
			return fmt.Errorf("vips backend not compiled in (build with -tags vips)")
		}
		b, shutdown := vipsBackend()
		defer shutdown()
		t.SetRasterBackend(b)
	default:
		return fmt.Errorf("unknown backend %q (use builtin or vips)", backend)
	}

	req := thumbplanner.Request{
		Source:         in,
		Style:          style,
		Geometry:       geometry,
		Format:         format,
		ConvertOptions: convert,
		Crop:           forceCrop,
	}
	if noAnimate {
		off := false
		req.Animate = &off
	}
	if crop != "" {
		r, err := types.ParseRect(crop)
		if err != nil {
			return err
		}
		req.ExplicitCrop = &r
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if planOnly {
		job, err := t.Prepare(ctx, req)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(job)
		}
		fmt.Printf("%s -> %s via %s pipeline (.%s), mode %s\n", job.Source, job.Target, job.Pipeline.Kind, job.Pipeline.Extension, job.Plan.Mode)
		if c := job.Plan.Crop; c != nil {
			fmt.Printf("crop %s %s\n", c.Rect, c.Stage)
		}
		if s := job.Plan.Scale; s != nil {
			fmt.Printf("scale %s\n", s.Token)
		}
		return nil
	}

	res, err := t.Generate(ctx, req, out)
	if err != nil {
		return err
	}
	if asJSON {
		if err := printJSON(res); err != nil {
			return err
		}
	}

	if debug {
		writeOverlay(ctx, in, res)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if _, err := os.Stat(config.GetConfigPath()); err == nil {
		return config.LoadFromFile(config.GetConfigPath())
	}
	return config.Default(), nil
}

// writeOverlay draws the source-space crop onto the source image
func writeOverlay(ctx context.Context, source string, res thumbplanner.Result) {
	if res.Region == nil || res.Stage != planner.StageBeforeScale {
		logging.Debug("no source-space crop to overlay")
		return
	}

	p := processing.NewProcessor()
	img, err := p.LoadImageSmart(ctx, source)
	if err != nil {
		logging.Warn("debug overlay: %v", err)
		return
	}

	path := strings.TrimSuffix(res.Output, filepath.Ext(res.Output)) + "_debug.png"
	if err := p.SaveImage(p.CreateDebugOverlay(img, res.Region), path, "png", processing.EncodeOptions{}); err != nil {
		logging.Warn("debug overlay save failed: %v", err)
		return
	}
	logging.Info("wrote %s", path)
}

func printJSON(v any) error {
	js, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(js))
	return nil
}
