package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/erazemk/findit/internal/imaging"
)

// DefaultStagingTTL is how long a captured or uploaded image waits to be
// attached to a post.
const DefaultStagingTTL = 15 * time.Minute

// Staging holds image payloads between capture/upload and submission.
type Staging struct {
	c *cache.Cache
}

// NewStaging returns a Staging whose entries expire after ttl.
func NewStaging(ttl time.Duration) *Staging {
	if ttl <= 0 {
		ttl = DefaultStagingTTL
	}
	return &Staging{c: cache.New(ttl, ttl/3)}
}

// Put stores p and returns its id.
func (s *Staging) Put(p *imaging.Payload) string {
	id := uuid.NewString()
	s.c.SetDefault(id, p)
	return id
}

// Get returns the payload staged under id.
func (s *Staging) Get(id string) (*imaging.Payload, bool) {
	v, ok := s.c.Get(id)
	if !ok {
		return nil, false
	}
	p, ok := v.(*imaging.Payload)
	return p, ok
}

// Delete drops id once its payload has been attached.
func (s *Staging) Delete(id string) {
	s.c.Delete(id)
}

// Len returns the number of staged payloads, including expired ones not yet
// cleaned up.
func (s *Staging) Len() int {
	return s.c.ItemCount()
}

type stagedResponse struct {
	ID      string `json:"id"`
	MIME    string `json:"mime"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Size    int    `json:"size"`
	DataURL string `json:"data_url"`
}

func newStagedResponse(id string, p *imaging.Payload) stagedResponse {
	return stagedResponse{
		ID:      id,
		MIME:    p.MIME,
		Width:   p.Width,
		Height:  p.Height,
		Size:    len(p.Data),
		DataURL: p.DataURL(),
	}
}
