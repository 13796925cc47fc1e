// Package catalog owns the record collection and is the only place that
// mutates it. Every mutation writes the full collection back to storage.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/findit/internal/metrics"
	"github.com/erazemk/findit/internal/model"
)

// ErrNotFound is returned when no record has the requested ID.
var ErrNotFound = errors.New("record not found")

// Snapshotter persists the whole record sequence.
type Snapshotter interface {
	Load(ctx context.Context) ([]model.Record, error)
	Save(ctx context.Context, records []model.Record) error
}

// Catalog is the in-memory collection backed by a snapshot store.
// Records are kept newest first.
type Catalog struct {
	mu      sync.RWMutex
	store   Snapshotter
	records []model.Record

	now   func() time.Time
	newID func() string
}

// Open loads the collection from store.
func Open(ctx context.Context, store Snapshotter) (*Catalog, error) {
	records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	c := &Catalog{
		store:   store,
		records: records,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	metrics.Records.Set(float64(len(records)))
	slog.Info("catalog loaded", "records", len(records))
	return c, nil
}

// Create validates sub and prepends a new record. On any failure the
// collection is left unchanged.
func (c *Catalog) Create(ctx context.Context, sub model.Submission) (*model.Record, error) {
	if err := model.ValidateSubmission(&sub); err != nil {
		metrics.Mutations.WithLabelValues("create", "invalid").Inc()
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()
	rec := model.Record{ID: c.newID(), CreatedAt: now, UpdatedAt: now}
	sub.Apply(&rec)

	next := make([]model.Record, 0, len(c.records)+1)
	next = append(next, rec)
	next = append(next, c.records...)

	if err := c.commit(ctx, "create", next); err != nil {
		return nil, err
	}
	return cloneRecord(&rec), nil
}

// Update replaces every field of the record except its ID and creation time.
func (c *Catalog) Update(ctx context.Context, id string, sub model.Submission) (*model.Record, error) {
	if err := model.ValidateSubmission(&sub); err != nil {
		metrics.Mutations.WithLabelValues("update", "invalid").Inc()
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("updating %s: %w", id, ErrNotFound)
	}

	next := slices.Clone(c.records)
	rec := next[i]
	sub.Apply(&rec)
	rec.UpdatedAt = c.now().UTC()
	next[i] = rec

	if err := c.commit(ctx, "update", next); err != nil {
		return nil, err
	}
	return cloneRecord(&rec), nil
}

// SetStatus changes only the status of a record.
func (c *Catalog) SetStatus(ctx context.Context, id, status string) (*model.Record, error) {
	if !model.ValidStatus(status) {
		return nil, &model.ValidationError{Fields: map[string]string{"status": "unknown status " + status}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("setting status of %s: %w", id, ErrNotFound)
	}

	next := slices.Clone(c.records)
	next[i].Status = status
	next[i].UpdatedAt = c.now().UTC()

	if err := c.commit(ctx, "status", next); err != nil {
		return nil, err
	}
	return cloneRecord(&next[i]), nil
}

// Delete removes a record.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("deleting %s: %w", id, ErrNotFound)
	}

	next := slices.Delete(slices.Clone(c.records), i, i+1)
	return c.commit(ctx, "delete", next)
}

// Replace swaps the whole collection, as used by imports. Every record must
// pass model.ValidateRecord, otherwise the collection is left unchanged.
func (c *Catalog) Replace(ctx context.Context, records []model.Record) error {
	for i := range records {
		if err := model.ValidateRecord(&records[i]); err != nil {
			metrics.Mutations.WithLabelValues("replace", "invalid").Inc()
			return fmt.Errorf("record %s: %w", records[i].ID, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(ctx, "replace", slices.Clone(records))
}

// Get returns a copy of the record with the given ID.
func (c *Catalog) Get(id string) (*model.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("getting %s: %w", id, ErrNotFound)
	}
	return cloneRecord(&c.records[i]), nil
}

// List returns a copy of every record, newest first.
func (c *Catalog) List() []model.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Record, len(c.records))
	for i := range c.records {
		out[i] = *cloneRecord(&c.records[i])
	}
	return out
}

// Recent returns at most n of the newest records.
func (c *Catalog) Recent(n int) []model.Record {
	all := c.List()
	if n >= 0 && n < len(all) {
		return all[:n]
	}
	return all
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// commit persists next and, only once it is stored, makes it current.
// Callers hold c.mu.
func (c *Catalog) commit(ctx context.Context, op string, next []model.Record) error {
	if err := c.store.Save(ctx, next); err != nil {
		metrics.Mutations.WithLabelValues(op, "error").Inc()
		slog.Error("catalog write failed", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	c.records = next
	metrics.Mutations.WithLabelValues(op, "ok").Inc()
	metrics.Records.Set(float64(len(next)))
	return nil
}

func (c *Catalog) indexOf(id string) int {
	return slices.IndexFunc(c.records, func(r model.Record) bool { return r.ID == id })
}

func cloneRecord(r *model.Record) *model.Record {
	out := *r
	out.Tags = slices.Clone(r.Tags)
	return &out
}
