package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/findit/internal/camera"
	"github.com/erazemk/findit/internal/catalog"
	"github.com/erazemk/findit/internal/imaging"
	"github.com/erazemk/findit/internal/model"
)

// errStagedImage is returned when an image_id is unknown or has expired.
var errStagedImage = &model.ValidationError{Fields: map[string]string{
	"image_id": "unknown or expired, capture or upload the image again",
}}

// writeError maps err onto a status code, error code and remedy. Server-side
// failures are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", body.Code, "error", err)
	} else {
		slog.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "code", body.Code, "error", err)
	}
	jsonResponse(w, status, body)
}

func classifyError(err error) (int, errorBody) {
	var (
		verr *model.ValidationError
		cerr *camera.Error
		merr *http.MaxBytesError
	)

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorBody{
			Error:  "please fix the highlighted fields",
			Code:   "validation_failed",
			Remedy: remedyFixForm,
			Fields: verr.Fields,
		}

	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "post not found", Code: "not_found"}

	case errors.Is(err, imaging.ErrPayloadTooLarge), errors.As(err, &merr):
		return http.StatusRequestEntityTooLarge, errorBody{
			Error:  "image is larger than 5 MiB, choose a smaller file",
			Code:   "payload_too_large",
			Remedy: remedyFixForm,
		}

	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, errorBody{
			Error:  "image must be JPEG, PNG or WebP",
			Code:   "unsupported_format",
			Remedy: remedyFixForm,
		}

	case errors.Is(err, camera.ErrInvalidState):
		return http.StatusConflict, errorBody{
			Error:  "camera is not ready, start the camera first",
			Code:   "invalid_state",
			Remedy: remedyRetryCamera,
		}

	case errors.As(err, &cerr):
		return cameraStatus(cerr.Reason), errorBody{
			Error:  cameraMessage(cerr.Reason),
			Code:   cerr.Reason.String(),
			Remedy: cameraRemedy(cerr),
		}

	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"}
	}
}

func cameraStatus(r camera.Reason) int {
	switch r {
	case camera.ReasonPermissionDenied:
		return http.StatusForbidden
	case camera.ReasonDeviceBusy:
		return http.StatusConflict
	case camera.ReasonConstraintsUnsupported:
		return http.StatusUnprocessableEntity
	case camera.ReasonTimeout:
		return http.StatusGatewayTimeout
	case camera.ReasonDeviceNotFound:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func cameraMessage(r camera.Reason) string {
	switch r {
	case camera.ReasonPermissionDenied:
		return "camera access was denied, allow access or upload a photo instead"
	case camera.ReasonDeviceNotFound:
		return "no camera was found, upload a photo instead"
	case camera.ReasonDeviceBusy:
		return "the camera is in use by another application"
	case camera.ReasonConstraintsUnsupported:
		return "the camera does not support the requested settings, upload a photo instead"
	case camera.ReasonTimeout:
		return "the camera did not respond in time"
	case camera.ReasonCaptureFailed:
		return "the photo could not be taken, try again"
	default:
		return "the camera failed"
	}
}

func cameraRemedy(err *camera.Error) string {
	if err.Remedy() == camera.RemedyUpload {
		return remedyUseUpload
	}
	return remedyRetryCamera
}
