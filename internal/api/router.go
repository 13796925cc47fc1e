package api

import (
	"net/http"

	"github.com/erazemk/findit/internal/camera"
	"github.com/erazemk/findit/internal/catalog"
	"github.com/erazemk/findit/internal/metrics"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cat *catalog.Catalog, cam *camera.Controller, staging *Staging) http.Handler {
	mux := http.NewServeMux()

	postsHandler := &PostsHandler{Catalog: cat, Staging: staging}
	searchHandler := &SearchHandler{Catalog: cat}
	uploadsHandler := &UploadsHandler{Camera: cam, Staging: staging}
	cameraHandler := &CameraHandler{Camera: cam, Staging: staging}

	// Posts.
	mux.HandleFunc("GET /api/posts", postsHandler.List)
	mux.HandleFunc("POST /api/posts", postsHandler.Create)
	mux.HandleFunc("GET /api/posts/{id}", postsHandler.Get)
	mux.HandleFunc("PUT /api/posts/{id}", postsHandler.Update)
	mux.HandleFunc("DELETE /api/posts/{id}", postsHandler.Delete)
	mux.HandleFunc("PUT /api/posts/{id}/status", postsHandler.SetStatus)
	mux.HandleFunc("GET /api/posts/{id}/image", postsHandler.GetImage)

	// Search and form metadata.
	mux.HandleFunc("GET /api/search", searchHandler.Search)
	mux.HandleFunc("GET /api/tags/suggestions", searchHandler.Suggestions)

	// Images: upload fallback and camera.
	mux.HandleFunc("POST /api/uploads", uploadsHandler.Create)
	mux.HandleFunc("GET /api/camera", cameraHandler.Status)
	mux.HandleFunc("GET /api/camera/devices", cameraHandler.Devices)
	mux.HandleFunc("POST /api/camera/session", cameraHandler.Start)
	mux.HandleFunc("DELETE /api/camera/session", cameraHandler.Stop)
	mux.HandleFunc("POST /api/camera/capture", cameraHandler.Capture)

	// Operations.
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"records": cat.Len(),
			"camera":  cam.State().String(),
		})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}
