package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erazemk/findit/internal/model"
)

// CollectionKey is the fixed key under which the catalog is stored.
const CollectionKey = "foundItems"

// Collection reads and writes the full record sequence as one JSON value.
type Collection struct {
	KV  KV
	Key string
}

// NewCollection returns a Collection stored under CollectionKey.
func NewCollection(kv KV) *Collection {
	return &Collection{KV: kv, Key: CollectionKey}
}

// Load returns every stored record in stored order. A collection that has
// never been written is empty.
func (c *Collection) Load(ctx context.Context) ([]model.Record, error) {
	data, err := c.KV.Get(ctx, c.Key)
	if errors.Is(err, ErrNotFound) {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading collection: %w", err)
	}

	var records []model.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding collection: %w", err)
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

// Save replaces the stored collection with records.
func (c *Collection) Save(ctx context.Context, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding collection: %w", err)
	}
	if err := c.KV.Put(ctx, c.Key, data); err != nil {
		return fmt.Errorf("saving collection: %w", err)
	}
	return nil
}
