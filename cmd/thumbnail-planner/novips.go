//go:build !vips

package main

import thumbplanner "github.com/menta2k/thumbnail-planner"

const vipsAvailable = false

func vipsBackend() (thumbplanner.RasterBackend, func()) {
	return nil, func() {}
}
