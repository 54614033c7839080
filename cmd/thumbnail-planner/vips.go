//go:build vips

package main

import (
	thumbplanner "github.com/menta2k/thumbnail-planner"
	"github.com/menta2k/thumbnail-planner/pkg/vipsexec"
)

const vipsAvailable = true

func vipsBackend() (thumbplanner.RasterBackend, func()) {
	return vipsexec.New(), vipsexec.Shutdown
}
