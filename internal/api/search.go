package api

import (
	"net/http"

	"github.com/erazemk/findit/internal/catalog"
	"github.com/erazemk/findit/internal/model"
	"github.com/erazemk/findit/internal/query"
)

// SearchHandler serves filtered, sorted and paginated views of the catalog.
type SearchHandler struct {
	Catalog *catalog.Catalog
}

type searchResponse struct {
	Items      []postView `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
	PageSize   int        `json:"page_size"`
}

// Search handles GET /api/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q, err := query.FromValues(r.URL.Query())
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	res := query.Run(h.Catalog.List(), q)
	jsonResponse(w, http.StatusOK, searchResponse{
		Items:      newPostViews(res.Items),
		Total:      res.Total,
		Page:       res.Page,
		TotalPages: res.TotalPages,
		PageSize:   res.PageSize,
	})
}

// Suggestions handles GET /api/tags/suggestions.
func (h *SearchHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"tags":       model.TagSuggestions,
		"categories": model.Categories,
		"statuses":   model.Statuses,
		"max_tags":   model.MaxTags,
		"max_length": model.MaxTagLength,
	})
}
