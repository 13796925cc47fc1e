//go:build gstreamer

package gstcam

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/erazemk/findit/internal/camera"
)

// Default capture size when the caller sets no constraints.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// Device opens /dev/video* nodes. An empty Path picks the first node found.
type Device struct {
	Path string
}

// New returns a Device for path.
func New(path string) *Device {
	return &Device{Path: path}
}

// Enumerate lists video nodes under /dev.
func (d *Device) Enumerate(ctx context.Context) ([]camera.DeviceInfo, error) {
	nodes, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("listing video devices: %w", err)
	}
	sort.Strings(nodes)

	devices := make([]camera.DeviceInfo, 0, len(nodes))
	for _, n := range nodes {
		devices = append(devices, camera.DeviceInfo{ID: n, Label: filepath.Base(n), Kind: camera.KindVideo})
	}
	return devices, nil
}

// Open builds v4l2src ! videoconvert ! videoscale ! capsfilter ! appsink and
// waits for the pipeline to play or fail.
func (d *Device) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	gst.Init(nil)

	path := d.Path
	if path == "" {
		devices, err := d.Enumerate(ctx)
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, &camera.Error{Reason: camera.ReasonDeviceNotFound}
		}
		path = devices[0].ID
	}

	width, height := c.Width, c.Height
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}

	s := &stream{
		path:   path,
		width:  width,
		height: height,
		ready:  make(chan struct{}),
	}
	if err := s.build(); err != nil {
		return nil, err
	}

	if err := s.pipeline.SetState(gst.StatePlaying); err != nil {
		s.destroy()
		return nil, fmt.Errorf("gstcam: starting pipeline: %w", err)
	}

	if err := s.waitPlaying(ctx); err != nil {
		s.destroy()
		return nil, err
	}

	slog.Info("gstcam: pipeline playing", "device", path, "width", width, "height", height)
	return s, nil
}

type stream struct {
	path          string
	width, height int

	pipeline *gst.Pipeline
	sink     *app.Sink

	mu        sync.Mutex
	latest    []byte
	ready     chan struct{}
	readyOnce sync.Once
	stopOnce  sync.Once
}

func (s *stream) build() error {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("gstcam: creating pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return fmt.Errorf("gstcam: creating v4l2src: %w", err)
	}
	src.SetProperty("device", s.path)

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("gstcam: creating videoconvert: %w", err)
	}
	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return fmt.Errorf("gstcam: creating videoscale: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("gstcam: creating capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(
		fmt.Sprintf("video/x-raw,format=RGBA,width=%d,height=%d", s.width, s.height),
	))

	sink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("gstcam: creating appsink: %w", err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onSample,
	})

	pipeline.AddMany(src, convert, scale, capsfilter, sink.Element)
	if err := gst.ElementLinkMany(src, convert, scale, capsfilter, sink.Element); err != nil {
		return fmt.Errorf("gstcam: linking pipeline: %w", err)
	}

	s.pipeline = pipeline
	s.sink = sink
	return nil
}

// onSample keeps a copy of the newest frame; GStreamer reuses the buffer.
func (s *stream) onSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) < s.width*s.height*4 {
		buffer.Unmap()
		slog.Warn("gstcam: short buffer", "bytes", len(data))
		return gst.FlowOK
	}
	frame := make([]byte, s.width*s.height*4)
	copy(frame, data)
	buffer.Unmap()

	s.mu.Lock()
	s.latest = frame
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	return gst.FlowOK
}

// waitPlaying polls the bus until the pipeline plays, errors or ctx ends.
func (s *stream) waitPlaying(ctx context.Context) error {
	bus := s.pipeline.GetPipelineBus()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			reason := camera.ClassifyMessage(gerr.Error() + " " + gerr.DebugString())
			slog.Error("gstcam: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"reason", reason.String(),
			)
			return &camera.Error{Reason: reason, Err: errors.New(gerr.Error())}

		case gst.MessageStateChanged:
			if msg.Source() == s.pipeline.GetName() {
				if _, newState := msg.ParseStateChanged(); newState == gst.StatePlaying {
					return nil
				}
			}
		}
	}
}

func (s *stream) Tracks() []camera.Track {
	return []camera.Track{track{s}}
}

// ReadFrame waits for the first frame, then returns the newest one.
func (s *stream) ReadFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, errors.New("gstcam: stream stopped")
	}

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	copy(img.Pix, s.latest)
	return img, nil
}

func (s *stream) destroy() {
	s.stopOnce.Do(func() {
		if s.pipeline != nil {
			if err := s.pipeline.SetState(gst.StateNull); err != nil {
				slog.Error("gstcam: failed to stop pipeline", "error", err)
			}
		}
		s.mu.Lock()
		s.latest = nil
		s.mu.Unlock()
		s.readyOnce.Do(func() { close(s.ready) })
		slog.Info("gstcam: pipeline stopped", "device", s.path)
	})
}

type track struct{ s *stream }

func (t track) Kind() string  { return camera.KindVideo }
func (t track) Label() string { return filepath.Base(t.s.path) }
func (t track) Stop()         { t.s.destroy() }
