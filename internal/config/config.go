// Package config loads the findit server configuration from an optional YAML
// file and FINDIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// Camera source kinds.
const (
	CameraNone  = "none"
	CameraStill = "still"
	CameraV4L2  = "v4l2"
)

// Config is the complete server configuration.
type Config struct {
	Addr    string        `yaml:"addr"`
	LogPath string        `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Camera  CameraConfig  `yaml:"camera"`
	Staging StagingConfig `yaml:"staging"`
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite, bolt
	Path   string `yaml:"path"`
}

// CameraConfig selects the camera device and acquisition behaviour.
type CameraConfig struct {
	// Source is "none", "still:<image path>" or "v4l2[:<device>]".
	Source         string        `yaml:"source"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	Probe          bool          `yaml:"probe"`
	Quality        float64       `yaml:"quality"` // 0-1
	Width          int           `yaml:"width"`
	Height         int           `yaml:"height"`
}

// StagingConfig controls how long captured images wait for submission.
type StagingConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr: ":8080",
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   "findit.sqlite3",
		},
		Camera: CameraConfig{
			Source:         CameraNone,
			AcquireTimeout: 10 * time.Second,
			Probe:          true,
			Quality:        0.8,
		},
		Staging: StagingConfig{TTL: 15 * time.Minute},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from FINDIT_* variables returned by getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("FINDIT_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("FINDIT_LOG"); v != "" {
		c.LogPath = v
	}
	if v := getenv("FINDIT_STORAGE"); v != "" {
		c.Storage.Driver = v
	}
	if v := getenv("FINDIT_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := getenv("FINDIT_CAMERA"); v != "" {
		c.Camera.Source = v
	}
	if v := getenv("FINDIT_CAMERA_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FINDIT_CAMERA_TIMEOUT: %w", err)
		}
		c.Camera.AcquireTimeout = d
	}
	if v := getenv("FINDIT_CAMERA_PROBE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FINDIT_CAMERA_PROBE: %w", err)
		}
		c.Camera.Probe = b
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverBolt:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", DriverSQLite, DriverBolt, c.Storage.Driver))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if _, _, err := ParseCameraSource(c.Camera.Source); err != nil {
		errs = append(errs, err)
	}
	if c.Camera.AcquireTimeout <= 0 {
		errs = append(errs, errors.New("camera.acquire_timeout must be positive"))
	}
	if c.Camera.Quality <= 0 || c.Camera.Quality > 1 {
		errs = append(errs, fmt.Errorf("camera.quality must be in (0, 1], got %g", c.Camera.Quality))
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		errs = append(errs, errors.New("camera.width and camera.height must not be negative"))
	}
	if c.Staging.TTL <= 0 {
		errs = append(errs, errors.New("staging.ttl must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ParseCameraSource splits a camera source into its kind and argument.
func ParseCameraSource(s string) (kind, arg string, err error) {
	kind, arg, _ = strings.Cut(strings.TrimSpace(s), ":")
	switch kind {
	case "", CameraNone:
		return CameraNone, "", nil
	case CameraStill:
		if arg == "" {
			return "", "", errors.New("camera.source still: needs an image path")
		}
		return kind, arg, nil
	case CameraV4L2:
		return kind, arg, nil
	default:
		return "", "", fmt.Errorf("camera.source %q: unknown kind %q", s, kind)
	}
}
