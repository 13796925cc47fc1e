package model

import (
	"slices"
	"strings"
	"time"
)

// Record is a single lost or found item posting.
type Record struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Contact     string    `json:"contact,omitempty"`
	Tags        []string  `json:"tags"`
	Status      string    `json:"status"`
	Image       []byte    `json:"image,omitempty"`
	ImageMime   string    `json:"image_mime,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record statuses.
const (
	StatusLost    = "Lost"
	StatusFound   = "Found"
	StatusClaimed = "Claimed"
)

// Statuses lists the accepted record statuses.
var Statuses = []string{StatusLost, StatusFound, StatusClaimed}

// ValidStatus reports whether s is a known status.
func ValidStatus(s string) bool {
	return slices.Contains(Statuses, s)
}

// CategoryTagPrefix marks the reserved tag that holds a record's category.
const CategoryTagPrefix = "category:"

// Categories lists the selectable item categories.
var Categories = []string{"General", "Electronics", "Clothing", "Books", "Jewelry", "Other"}

// TagSuggestions are offered to users when tagging a posting.
var TagSuggestions = []string{
	"Keys", "Wallet", "Phone", "Laptop", "Book", "Glasses", "Umbrella",
	"Backpack", "ID Card", "Headphones", "Charger", "Watch", "Jewelry", "Clothing", "Water Bottle",
}

// Category returns the record's category, or "" if none is set.
func (r *Record) Category() string {
	for _, t := range r.Tags {
		if name, ok := strings.CutPrefix(t, CategoryTagPrefix); ok {
			return name
		}
	}
	return ""
}

// SetCategory replaces the reserved category tag. An empty name removes it.
func (r *Record) SetCategory(name string) {
	r.Tags = slices.DeleteFunc(r.Tags, func(t string) bool {
		return strings.HasPrefix(t, CategoryTagPrefix)
	})
	if name != "" {
		r.Tags = append(r.Tags, CategoryTagPrefix+name)
	}
}

// FreeTags returns the user-entered tags without the reserved category tag.
func (r *Record) FreeTags() []string {
	tags := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		if !strings.HasPrefix(t, CategoryTagPrefix) {
			tags = append(tags, t)
		}
	}
	return tags
}

// HasTag reports whether the record carries tag exactly.
func (r *Record) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// Date returns the time used for date ordering.
func (r *Record) Date() time.Time {
	return r.CreatedAt
}
