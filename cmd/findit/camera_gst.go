//go:build gstreamer

package main

import (
	"github.com/erazemk/findit/internal/camera"
	"github.com/erazemk/findit/internal/camera/gstcam"
)

func v4l2Device(path string) (camera.Device, error) {
	return gstcam.New(path), nil
}
