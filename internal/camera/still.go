package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	// Registers the decoders accepted for still images.
	_ "github.com/erazemk/findit/internal/imaging"
)

// StillDevice serves a fixed image as if it were a camera. It backs
// deployments without camera hardware and tests.
type StillDevice struct {
	path string
	img  image.Image
}

// NewStillFile returns a device that decodes path on every Open.
func NewStillFile(path string) *StillDevice {
	return &StillDevice{path: path}
}

// NewStillImage returns a device serving img.
func NewStillImage(img image.Image) *StillDevice {
	return &StillDevice{img: img}
}

func (d *StillDevice) label() string {
	if d.path != "" {
		return "still:" + filepath.Base(d.path)
	}
	return "still:memory"
}

// Enumerate reports one video input, or none when the file is missing.
func (d *StillDevice) Enumerate(ctx context.Context) ([]DeviceInfo, error) {
	if d.path != "" {
		if _, err := os.Stat(d.path); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		} else if err != nil {
			return nil, fmt.Errorf("checking still image: %w", err)
		}
	}
	return []DeviceInfo{{ID: d.label(), Label: d.label(), Kind: KindVideo}}, nil
}

// Open loads the image and returns a stream serving it.
func (d *StillDevice) Open(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := d.img
	if d.path != "" {
		f, err := os.Open(d.path)
		if err != nil {
			return nil, fmt.Errorf("opening still image: %w", err)
		}
		defer f.Close()

		img, _, err = image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decoding still image: %w", err)
		}
	}
	if img == nil {
		return nil, &Error{Reason: ReasonDeviceNotFound}
	}

	return &stillStream{img: img, track: &stillTrack{label: d.label()}}, nil
}

type stillStream struct {
	img   image.Image
	track *stillTrack
}

func (s *stillStream) Tracks() []Track { return []Track{s.track} }

func (s *stillStream) ReadFrame(ctx context.Context) (image.Image, error) {
	if s.track.stopped() {
		return nil, errors.New("track stopped")
	}
	return s.img, ctx.Err()
}

type stillTrack struct {
	label string
	mu    sync.Mutex
	done  bool
}

func (t *stillTrack) Kind() string  { return KindVideo }
func (t *stillTrack) Label() string { return t.label }

func (t *stillTrack) Stop() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

func (t *stillTrack) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
