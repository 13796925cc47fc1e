// Package camera acquires a still image from a camera device.
//
// A Controller owns at most one open Stream at a time. Acquisition is bounded
// by a timeout, device failures are classified into a Reason the caller can
// act on, and every exit path releases the stream.
package camera

import (
	"context"
	"errors"
	"image"
)

// Track kinds.
const (
	KindVideo = "video"
	KindAudio = "audio"
)

// DeviceInfo describes one input reported by Device.Enumerate.
type DeviceInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// Constraints are preferences passed to Device.Open. Zero values leave the
// choice to the device.
type Constraints struct {
	Width      int    `json:"width,omitempty" yaml:"width"`
	Height     int    `json:"height,omitempty" yaml:"height"`
	FacingMode string `json:"facing_mode,omitempty" yaml:"facing_mode"`
}

// Device is a source of camera streams.
type Device interface {
	// Enumerate lists the inputs currently available.
	Enumerate(ctx context.Context) ([]DeviceInfo, error)
	// Open acquires a stream. It may block until the device grants or denies
	// access.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live device handle.
type Stream interface {
	Tracks() []Track
	// ReadFrame returns the current frame.
	ReadFrame(ctx context.Context) (image.Image, error)
}

// Track is one media track of a stream. Stop releases it and must be safe to
// call more than once.
type Track interface {
	Kind() string
	Label() string
	Stop()
}

// StopAll stops every track of s.
func StopAll(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

func streamLabel(s Stream) string {
	for _, t := range s.Tracks() {
		if t.Kind() == KindVideo {
			return t.Label()
		}
	}
	return ""
}

// NoDevice is used when no camera is configured. It reports no inputs and
// fails every Open with ErrDeviceNotFound, leaving uploads as the only source.
type NoDevice struct{}

func (NoDevice) Enumerate(context.Context) ([]DeviceInfo, error) { return nil, nil }

func (NoDevice) Open(context.Context, Constraints) (Stream, error) {
	return nil, &Error{Reason: ReasonDeviceNotFound, Err: errors.New("no camera configured")}
}
