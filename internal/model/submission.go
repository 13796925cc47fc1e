package model

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

// Tag limits.
const (
	MaxTagLength = 20
	MaxTags      = 10
)

// ErrValidation is matched by every submission validation failure.
var ErrValidation = errors.New("validation failed")

// ValidationError lists the offending fields of a submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Submission is the field set of a record as entered by a user, used both for
// creating and for replacing a record.
type Submission struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Contact     string   `json:"contact"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	Image       []byte   `json:"-"`
	ImageMime   string   `json:"-"`
}

// Normalize trims text fields, deduplicates tags and fills the default status.
func (s *Submission) Normalize() {
	s.Title = strings.TrimSpace(s.Title)
	s.Description = strings.TrimSpace(s.Description)
	s.Location = strings.TrimSpace(s.Location)
	s.Contact = strings.TrimSpace(s.Contact)
	s.Category = strings.TrimSpace(s.Category)
	s.Tags = NormalizeTags(s.Tags)
	if s.Status == "" {
		s.Status = StatusFound
	}
}

// NormalizeTags trims tags and drops empty and duplicate entries, keeping the
// first occurrence order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ValidateSubmission normalizes s and checks the required fields. The returned
// error matches ErrValidation.
func ValidateSubmission(s *Submission) error {
	s.Normalize()
	return s.check(nil)
}

// ValidateRecord applies the submission rules to a stored record, such as one
// read from an import file. The returned error matches ErrValidation.
func ValidateRecord(r *Record) error {
	s := Submission{
		Title:       r.Title,
		Description: strings.TrimSpace(r.Description),
		Location:    strings.TrimSpace(r.Location),
		Contact:     r.Contact,
		Category:    r.Category(),
		Tags:        r.FreeTags(),
		Status:      r.Status,
		Image:       r.Image,
		ImageMime:   r.ImageMime,
	}

	fields := make(map[string]string)
	if n := len(r.Tags) - len(s.Tags); n > 1 {
		fields["category"] = fmt.Sprintf("%d category tags, at most one allowed", n)
	}
	return s.check(fields)
}

func (s *Submission) check(fields map[string]string) error {
	if fields == nil {
		fields = make(map[string]string)
	}
	if s.Description == "" {
		fields["description"] = "required"
	}
	if s.Location == "" {
		fields["location"] = "required"
	}
	if len(s.Image) == 0 {
		fields["image"] = "required"
	}
	if !ValidStatus(s.Status) {
		fields["status"] = fmt.Sprintf("must be one of %s", strings.Join(Statuses, ", "))
	}
	if s.Category != "" && !slices.Contains(Categories, s.Category) {
		fields["category"] = fmt.Sprintf("must be one of %s", strings.Join(Categories, ", "))
	}
	if len(s.Tags) > MaxTags {
		fields["tags"] = fmt.Sprintf("at most %d tags allowed", MaxTags)
	}
	for _, t := range s.Tags {
		if t == "" || utf8.RuneCountInString(t) > MaxTagLength {
			fields["tags"] = fmt.Sprintf("tag %q must be 1 to %d characters", t, MaxTagLength)
			break
		}
		if strings.HasPrefix(t, CategoryTagPrefix) {
			fields["tags"] = fmt.Sprintf("tag %q uses the reserved %q prefix", t, CategoryTagPrefix)
			break
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Apply copies the submission's fields onto r. ID and CreatedAt are left alone.
func (s *Submission) Apply(r *Record) {
	r.Title = s.Title
	r.Description = s.Description
	r.Location = s.Location
	r.Contact = s.Contact
	r.Status = s.Status
	r.Tags = slices.Clone(s.Tags)
	r.SetCategory(s.Category)
	r.Image = s.Image
	r.ImageMime = s.ImageMime
}
