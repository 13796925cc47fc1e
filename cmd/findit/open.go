package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/erazemk/findit/internal/camera"
	"github.com/erazemk/findit/internal/config"
	"github.com/erazemk/findit/internal/db"
	"github.com/erazemk/findit/internal/store"
)

// openStore opens the configured key-value backend.
func openStore(ctx context.Context, cfg config.StorageConfig) (store.KV, error) {
	switch cfg.Driver {
	case config.DriverBolt:
		kv, err := store.OpenBolt(cfg.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("storage ready", "driver", cfg.Driver, "path", cfg.Path)
		return kv, nil

	default:
		database, err := db.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		// Ensure schema exists (idempotent).
		if err := db.EnsureSchema(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("ensuring database schema: %w", err)
		}
		instanceID, err := store.GetInstanceID(ctx, database)
		if err != nil {
			database.Close()
			return nil, err
		}
		slog.Info("storage ready", "driver", cfg.Driver, "path", cfg.Path, "instance", instanceID)
		return store.NewSQLite(database), nil
	}
}

// openCamera builds the controller for the configured camera source.
func openCamera(cfg config.CameraConfig) (*camera.Controller, error) {
	kind, arg, err := config.ParseCameraSource(cfg.Source)
	if err != nil {
		return nil, err
	}

	var dev camera.Device
	switch kind {
	case config.CameraStill:
		dev = camera.NewStillFile(arg)
	case config.CameraV4L2:
		dev, err = v4l2Device(arg)
		if err != nil {
			return nil, err
		}
	default:
		dev = camera.NoDevice{}
	}

	slog.Info("camera configured", "source", kind, "device", arg, "timeout", cfg.AcquireTimeout)
	return camera.New(dev, camera.Options{
		AcquireTimeout: cfg.AcquireTimeout,
		Probe:          cfg.Probe,
		Quality:        cfg.Quality,
		Constraints: camera.Constraints{
			Width:  cfg.Width,
			Height: cfg.Height,
		},
	}), nil
}
