package api

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/erazemk/findit/internal/catalog"
	"github.com/erazemk/findit/internal/imaging"
	"github.com/erazemk/findit/internal/model"
)

// maxPostBody leaves room for a base64 encoded image of imaging.MaxUploadSize.
const maxPostBody = 8 << 20

const maxStatusBody = 1 << 10

// PostsHandler handles post CRUD endpoints.
type PostsHandler struct {
	Catalog *catalog.Catalog
	Staging *Staging
}

// postRequest is the body of POST and PUT /api/posts. The image is given either
// inline as a data URL or base64, or as the id of a staged capture or upload.
type postRequest struct {
	Image       string   `json:"image"`
	ImageID     string   `json:"image_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Contact     string   `json:"contact"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// postView is a record as returned by the API. Image bytes are served
// separately from ImageURL.
type postView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Contact     string    `json:"contact,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags"`
	Status      string    `json:"status"`
	ImageURL    string    `json:"image_url,omitempty"`
	ImageMime   string    `json:"image_mime,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newPostView(r *model.Record) postView {
	v := postView{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Contact:     r.Contact,
		Category:    r.Category(),
		Tags:        r.FreeTags(),
		Status:      r.Status,
		ImageMime:   r.ImageMime,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.Image) > 0 {
		v.ImageURL = "/api/posts/" + r.ID + "/image"
	}
	return v
}

func newPostViews(records []model.Record) []postView {
	views := make([]postView, len(records))
	for i := range records {
		views[i] = newPostView(&records[i])
	}
	return views
}

// submission resolves the request image and returns the submission. A request
// without any image yields an empty image, which validation rejects.
func (h *PostsHandler) submission(req *postRequest) (model.Submission, error) {
	sub := model.Submission{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Contact:     req.Contact,
		Category:    req.Category,
		Tags:        req.Tags,
		Status:      req.Status,
	}

	switch {
	case req.ImageID != "":
		p, ok := h.Staging.Get(req.ImageID)
		if !ok {
			return sub, errStagedImage
		}
		sub.Image, sub.ImageMime = p.Data, p.MIME

	case req.Image != "":
		raw, err := imaging.DecodeDataURL(req.Image)
		if err != nil {
			return sub, &model.ValidationError{Fields: map[string]string{"image": err.Error()}}
		}
		p, err := imaging.ProcessUpload(raw, imaging.MaxUploadSize)
		if err != nil {
			return sub, err
		}
		sub.Image, sub.ImageMime = p.Data, p.MIME
	}

	return sub, nil
}

func (h *PostsHandler) decode(w http.ResponseWriter, r *http.Request) (*postRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPostBody)

	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		var merr *http.MaxBytesError
		if errors.As(err, &merr) {
			return nil, err
		}
		return nil, &model.ValidationError{Fields: map[string]string{"body": "invalid JSON"}}
	}
	return &req, nil
}

// List handles GET /api/posts. With ?limit=N only the newest N posts are
// returned.
func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	records := h.Catalog.List()
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		records = h.Catalog.Recent(n)
	}
	jsonResponse(w, http.StatusOK, newPostViews(records))
}

// Create handles POST /api/posts.
func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sub, err := h.submission(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.Catalog.Create(r.Context(), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.ImageID != "" {
		h.Staging.Delete(req.ImageID)
	}

	jsonResponse(w, http.StatusCreated, map[string]any{
		"message": "post created",
		"item":    newPostView(rec),
	})
}

// Get handles GET /api/posts/{id}.
func (h *PostsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Catalog.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newPostView(rec))
}

// Update handles PUT /api/posts/{id}. Every field is replaced; when the request
// carries no image the current one is kept.
func (h *PostsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	current, err := h.Catalog.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req, err := h.decode(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sub, err := h.submission(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(sub.Image) == 0 {
		sub.Image, sub.ImageMime = current.Image, current.ImageMime
	}

	rec, err := h.Catalog.Update(r.Context(), id, sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.ImageID != "" {
		h.Staging.Delete(req.ImageID)
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "post updated",
		"item":    newPostView(rec),
	})
}

// SetStatus handles PUT /api/posts/{id}/status.
func (h *PostsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxStatusBody)

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		var merr *http.MaxBytesError
		if errors.As(err, &merr) {
			writeError(w, r, err)
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	rec, err := h.Catalog.SetStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newPostView(rec))
}

// Delete handles DELETE /api/posts/{id}.
func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "post deleted"})
}

// GetImage handles GET /api/posts/{id}/image.
func (h *PostsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Catalog.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(rec.Image) == 0 {
		jsonError(w, http.StatusNotFound, "no_image", "post has no image")
		return
	}

	sum := blake2b.Sum256(rec.Image)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", rec.ImageMime)
	w.Write(rec.Image)
}
