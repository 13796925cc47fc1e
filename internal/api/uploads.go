package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/erazemk/findit/internal/camera"
	"github.com/erazemk/findit/internal/imaging"
	"github.com/erazemk/findit/internal/model"
)

// multipartOverhead is allowed on top of the image itself for form framing.
const multipartOverhead = 1 << 20

// UploadsHandler stages uploaded images when the camera cannot be used.
type UploadsHandler struct {
	Camera  *camera.Controller
	Staging *Staging
}

// Create handles POST /api/uploads.
func (h *UploadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	limit := int64(imaging.MaxUploadSize + multipartOverhead)
	if r.ContentLength > limit {
		writeError(w, r, fmt.Errorf("%w: request of %d bytes", imaging.ErrPayloadTooLarge, r.ContentLength))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var merr *http.MaxBytesError
		if errors.As(err, &merr) {
			writeError(w, r, fmt.Errorf("%w: %v", imaging.ErrPayloadTooLarge, err))
			return
		}
		writeError(w, r, &model.ValidationError{Fields: map[string]string{"image": "invalid multipart form"}})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, &model.ValidationError{Fields: map[string]string{"image": "required"}})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, imaging.MaxUploadSize+1))
	if err != nil {
		writeError(w, r, fmt.Errorf("reading upload: %w", err))
		return
	}

	p, err := h.Camera.UploadFallback(data, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id := h.Staging.Put(p)
	jsonResponse(w, http.StatusCreated, newStagedResponse(id, p))
}
