//go:build !gstreamer

package main

import (
	"errors"

	"github.com/erazemk/findit/internal/camera"
)

func v4l2Device(string) (camera.Device, error) {
	return nil, errors.New("v4l2 cameras need a build with -tags gstreamer")
}
