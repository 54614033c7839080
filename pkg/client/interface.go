package client

import (
	"context"

	"github.com/menta2k/thumbnail-planner/pkg/types"
)

// VisionClient asks a vision model where the subject of an image is
type VisionClient interface {
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
