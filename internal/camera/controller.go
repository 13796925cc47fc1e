package camera

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/erazemk/findit/internal/imaging"
	"github.com/erazemk/findit/internal/metrics"
)

// DefaultAcquireTimeout bounds how long Start waits for a device.
const DefaultAcquireTimeout = 10 * time.Second

// State is the lifecycle state of a Controller.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateActive
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Options configure a Controller.
type Options struct {
	// AcquireTimeout bounds Start. Zero means DefaultAcquireTimeout.
	AcquireTimeout time.Duration
	// Probe enumerates devices before opening and fails fast when no video
	// input is present.
	Probe bool
	// Constraints are passed to Device.Open.
	Constraints Constraints
	// Quality is the 0-1 JPEG quality of captures. Zero means
	// imaging.DefaultQuality.
	Quality float64
	// UploadLimit caps UploadFallback. Zero means imaging.MaxUploadSize.
	UploadLimit int64
}

// Snapshot is a point-in-time view of a Controller.
type Snapshot struct {
	State     string     `json:"state"`
	Reason    string     `json:"reason,omitempty"`
	Remedy    string     `json:"remedy,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Device    string     `json:"device,omitempty"`
}

// Controller manages a single camera session. It is safe for concurrent use.
type Controller struct {
	dev  Device
	opts Options

	mu        sync.Mutex
	state     State
	stream    Stream
	lastErr   *Error
	startedAt time.Time
	label     string

	// gen increases whenever the current acquisition is stopped or replaced.
	// A pending Open whose generation is stale must not be bound.
	gen    uint64
	cancel context.CancelFunc
}

// New returns an idle controller for dev.
func New(dev Device, opts Options) *Controller {
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = DefaultAcquireTimeout
	}
	if opts.Quality <= 0 || opts.Quality > 1 {
		opts.Quality = imaging.DefaultQuality
	}
	if opts.UploadLimit <= 0 {
		opts.UploadLimit = imaging.MaxUploadSize
	}
	return &Controller{dev: dev, opts: opts}
}

type openResult struct {
	stream Stream
	err    error
}

// Start acquires a stream. A session that is already held is stopped first.
// On failure the controller is left in StateError and the returned error is
// an *Error.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.releaseLocked()
	c.gen++
	gen := c.gen
	c.state = StateRequesting
	c.lastErr = nil
	actx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	// tctx bounds the whole acquisition, probe included.
	tctx, tcancel := context.WithTimeout(actx, c.opts.AcquireTimeout)
	defer tcancel()

	begin := time.Now()
	slog.Info("camera: requesting device", "timeout", c.opts.AcquireTimeout, "probe", c.opts.Probe)

	if c.opts.Probe {
		probed := make(chan error, 1)
		go func() { probed <- c.probe(tctx) }()

		select {
		case err := <-probed:
			if err != nil {
				if tctx.Err() != nil {
					return c.interrupted(ctx, gen)
				}
				return c.fail(gen, err)
			}
		case <-tctx.Done():
			return c.interrupted(ctx, gen)
		}
	}

	results := make(chan openResult, 1)
	go func() {
		s, err := c.dev.Open(actx, c.opts.Constraints)
		results <- openResult{stream: s, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			return c.fail(gen, res.err)
		}
		return c.bind(gen, res.stream, begin)

	case <-tctx.Done():
		cancel()
		go releaseLate(results)
		return c.interrupted(ctx, gen)
	}
}

// interrupted reports why an acquisition ended before the device answered.
func (c *Controller) interrupted(ctx context.Context, gen uint64) error {
	if err := ctx.Err(); err != nil {
		c.abort(gen)
		return fmt.Errorf("camera: acquisition cancelled: %w", err)
	}
	c.mu.Lock()
	superseded := gen != c.gen
	c.mu.Unlock()
	if superseded {
		// The newer call owns the state.
		return fmt.Errorf("camera: acquisition superseded: %w", ErrInvalidState)
	}
	return c.fail(gen, &Error{Reason: ReasonTimeout, Err: fmt.Errorf("no answer after %s", c.opts.AcquireTimeout)})
}

func (c *Controller) probe(ctx context.Context) error {
	devices, err := c.dev.Enumerate(ctx)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(devices, func(d DeviceInfo) bool { return d.Kind == KindVideo }) {
		return &Error{Reason: ReasonDeviceNotFound, Err: fmt.Errorf("%d inputs, none are video", len(devices))}
	}
	return nil
}

// bind installs s as the session stream unless gen has been superseded.
func (c *Controller) bind(gen uint64, s Stream, begin time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		StopAll(s)
		slog.Info("camera: released stream of stale acquisition")
		return fmt.Errorf("camera: acquisition superseded: %w", ErrInvalidState)
	}

	c.cancel = nil
	c.stream = s
	c.state = StateActive
	c.startedAt = time.Now()
	c.label = streamLabel(s)

	metrics.CameraSessions.WithLabelValues("active").Inc()
	metrics.CameraAcquireSeconds.Observe(time.Since(begin).Seconds())
	slog.Info("camera: session active", "device", c.label, "elapsed", time.Since(begin))
	return nil
}

// fail moves the controller to StateError for gen and returns the classified
// error.
func (c *Controller) fail(gen uint64, err error) error {
	ce, ok := err.(*Error)
	if !ok {
		ce = &Error{Reason: Classify(err), Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen == c.gen {
		c.cancel = nil
		c.state = StateError
		c.lastErr = ce
	}

	metrics.CameraSessions.WithLabelValues(ce.Reason.String()).Inc()
	slog.Warn("camera: acquisition failed", "reason", ce.Reason.String(), "error", ce.Err)
	return ce
}

func (c *Controller) abort(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.cancel = nil
		c.state = StateIdle
	}
	metrics.CameraSessions.WithLabelValues("cancelled").Inc()
}

// releaseLate waits for an abandoned Open and releases whatever it returns.
func releaseLate(results <-chan openResult) {
	res := <-results
	if res.stream != nil {
		StopAll(res.stream)
		slog.Info("camera: released late stream")
	}
}

// Capture reads the current frame and encodes it. It is only valid while the
// session is active and does not change state.
func (c *Controller) Capture(ctx context.Context) (*imaging.Payload, error) {
	c.mu.Lock()
	if c.state != StateActive {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("capture while %s: %w", state, ErrInvalidState)
	}
	s := c.stream
	c.mu.Unlock()

	img, err := s.ReadFrame(ctx)
	if err != nil {
		metrics.CameraCaptures.WithLabelValues("error").Inc()
		return nil, &Error{Reason: ReasonCaptureFailed, Err: fmt.Errorf("reading frame: %w", err)}
	}

	p, err := imaging.EncodeFrame(img, c.opts.Quality)
	if err != nil {
		metrics.CameraCaptures.WithLabelValues("error").Inc()
		return nil, &Error{Reason: ReasonCaptureFailed, Err: err}
	}

	metrics.CameraCaptures.WithLabelValues("ok").Inc()
	slog.Info("camera: captured still", "width", p.Width, "height", p.Height, "bytes", len(p.Data))
	return p, nil
}

// Stop releases the session and any pending acquisition and returns to
// StateIdle. It is safe to call in any state and more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle && c.stream == nil && c.cancel == nil {
		return
	}
	c.releaseLocked()
	c.gen++
	c.state = StateIdle
	c.lastErr = nil
	slog.Info("camera: session stopped")
}

func (c *Controller) releaseLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.stream != nil {
		StopAll(c.stream)
		c.stream = nil
	}
	c.startedAt = time.Time{}
	c.label = ""
}

// UploadFallback turns uploaded bytes into the same payload shape as Capture
// without touching the camera. Uploads larger than sizeLimit are rejected; a
// sizeLimit of zero or less means Options.UploadLimit.
func (c *Controller) UploadFallback(data []byte, sizeLimit int64) (*imaging.Payload, error) {
	if sizeLimit <= 0 {
		sizeLimit = c.opts.UploadLimit
	}
	p, err := imaging.ProcessUpload(data, sizeLimit)
	if err != nil {
		metrics.Uploads.WithLabelValues("rejected").Inc()
		return nil, err
	}
	metrics.Uploads.WithLabelValues("ok").Inc()
	return p, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error that put the controller in StateError, or nil.
func (c *Controller) LastError() *Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns the current state for display.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{State: c.state.String(), Device: c.label}
	if c.lastErr != nil {
		snap.Reason = c.lastErr.Reason.String()
		snap.Remedy = c.lastErr.Remedy()
		snap.Error = c.lastErr.Error()
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		snap.StartedAt = &t
	}
	return snap
}

// Acquire starts a session, runs fn and always stops the session afterwards,
// including when fn returns an error or panics.
func (c *Controller) Acquire(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Stop()
	return fn(ctx)
}

// CaptureOnce starts a session, captures one still and stops.
func (c *Controller) CaptureOnce(ctx context.Context) (*imaging.Payload, error) {
	var p *imaging.Payload
	err := c.Acquire(ctx, func(ctx context.Context) error {
		var err error
		p, err = c.Capture(ctx)
		return err
	})
	return p, err
}

// Devices lists the inputs the device reports.
func (c *Controller) Devices(ctx context.Context) ([]DeviceInfo, error) {
	devices, err := c.dev.Enumerate(ctx)
	if err != nil {
		return nil, &Error{Reason: Classify(err), Err: err}
	}
	return devices, nil
}
