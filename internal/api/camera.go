package api

import (
	"net/http"

	"github.com/erazemk/findit/internal/camera"
)

// CameraHandler exposes the camera session.
type CameraHandler struct {
	Camera  *camera.Controller
	Staging *Staging
}

// Status handles GET /api/camera.
func (h *CameraHandler) Status(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.Camera.Snapshot())
}

// Devices handles GET /api/camera/devices.
func (h *CameraHandler) Devices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.Camera.Devices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if devices == nil {
		devices = []camera.DeviceInfo{}
	}
	jsonResponse(w, http.StatusOK, devices)
}

// Start handles POST /api/camera/session.
func (h *CameraHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.Camera.Start(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, h.Camera.Snapshot())
}

// Stop handles DELETE /api/camera/session.
func (h *CameraHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.Camera.Stop()
	jsonResponse(w, http.StatusOK, h.Camera.Snapshot())
}

// Capture handles POST /api/camera/capture. The still is staged and the
// session is stopped; on failure the session stays open for a retry.
func (h *CameraHandler) Capture(w http.ResponseWriter, r *http.Request) {
	p, err := h.Camera.Capture(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.Camera.Stop()

	id := h.Staging.Put(p)
	jsonResponse(w, http.StatusCreated, newStagedResponse(id, p))
}
