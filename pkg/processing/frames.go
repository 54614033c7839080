package processing

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"

	"github.com/disintegration/imaging"

	"github.com/menta2k/thumbnail-planner/pkg/planner"
)

// TransformFrames applies a discrete-convention plan to every frame of an
// animated GIF. Frames are composited onto the logical screen first so that
// partial frames crop consistently; the output frames are all full size.
func TransformFrames(ctx context.Context, g *gif.GIF, plan planner.TransformPlan) (*gif.GIF, error) {
	if g == nil || len(g.Image) == 0 {
		return nil, fmt.Errorf("gif has no frames")
	}
	if plan.Crop != nil && plan.Crop.Stage == planner.StageAfterScale {
		return nil, fmt.Errorf("frame pipeline needs a source-space crop, got %s", plan.Crop.Stage)
	}

	screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if screen.Empty() {
		screen = g.Image[0].Bounds()
		for _, f := range g.Image[1:] {
			screen = screen.Union(f.Bounds())
		}
	}

	canvas := image.NewNRGBA(screen)
	out := &gif.GIF{
		LoopCount:       g.LoopCount,
		BackgroundIndex: g.BackgroundIndex,
	}

	for i, frame := range g.Image {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var previous *image.NRGBA
		disposal := disposalOf(g, i)
		if disposal == gif.DisposalPrevious {
			previous = imaging.Clone(canvas)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		composed := imaging.Clone(canvas)

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}

		img, err := transformFrame(ctx, composed, plan)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}

		out.Image = append(out.Image, quantize(img, paletteOf(g, frame)))
		out.Delay = append(out.Delay, delayOf(g, i))
		out.Disposal = append(out.Disposal, gif.DisposalNone)
	}

	b := out.Image[0].Bounds()
	out.Config = image.Config{Width: b.Dx(), Height: b.Dy()}
	return out, nil
}

func transformFrame(ctx context.Context, img image.Image, plan planner.TransformPlan) (image.Image, error) {
	if plan.Crop != nil {
		img = imaging.Crop(img, plan.Crop.Rect.Image(img.Bounds()))
	}
	if plan.Scale != nil {
		img = ScaleImage(img, plan.Scale.Width, plan.Scale.Height, plan.Mode)
	}
	return ApplyOperations(ctx, img, plan.Operations)
}

func quantize(img image.Image, palette color.Palette) *image.Paletted {
	b := img.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, b.Min)
	return dst
}

func paletteOf(g *gif.GIF, frame *image.Paletted) color.Palette {
	if len(frame.Palette) > 0 {
		return frame.Palette
	}
	if p, ok := g.Config.ColorModel.(color.Palette); ok && len(p) > 0 {
		return p
	}
	return palette.WebSafe
}

func disposalOf(g *gif.GIF, i int) byte {
	if i < len(g.Disposal) {
		return g.Disposal[i]
	}
	return gif.DisposalNone
}

func delayOf(g *gif.GIF, i int) int {
	if i < len(g.Delay) {
		return g.Delay[i]
	}
	return 0
}
