package model

import (
	"errors"
	"strings"
	"testing"
)

func TestCategoryReservedTag(t *testing.T) {
	r := &Record{Tags: []string{"Keys", "Blue"}}
	if got := r.Category(); got != "" {
		t.Errorf("expected no category, got %q", got)
	}

	r.SetCategory("Electronics")
	if got := r.Category(); got != "Electronics" {
		t.Errorf("expected category 'Electronics', got %q", got)
	}
	if !r.HasTag("category:Electronics") {
		t.Errorf("expected reserved tag in %v", r.Tags)
	}

	r.SetCategory("Books")
	if got := r.Category(); got != "Books" {
		t.Errorf("expected category 'Books', got %q", got)
	}
	if len(r.Tags) != 3 {
		t.Errorf("expected category to be replaced, got tags %v", r.Tags)
	}

	free := r.FreeTags()
	if len(free) != 2 || free[0] != "Keys" || free[1] != "Blue" {
		t.Errorf("unexpected free tags %v", free)
	}

	r.SetCategory("")
	if got := r.Category(); got != "" {
		t.Errorf("expected category removed, got %q", got)
	}
}

func TestValidateSubmission(t *testing.T) {
	image := []byte{0xff, 0xd8}
	tests := []struct {
		name    string
		sub     Submission
		wantErr string
	}{
		{"valid", Submission{Description: "Blue backpack", Location: "Library", Image: image}, ""},
		{"missing description", Submission{Location: "Library", Image: image}, "description"},
		{"blank description", Submission{Description: "   ", Location: "Library", Image: image}, "description"},
		{"missing location", Submission{Description: "Wallet", Image: image}, "location"},
		{"missing image", Submission{Description: "Wallet", Location: "Cafeteria"}, "image"},
		{"bad status", Submission{Description: "Wallet", Location: "Cafeteria", Image: image, Status: "Stolen"}, "status"},
		{"bad category", Submission{Description: "Wallet", Location: "Cafeteria", Image: image, Category: "Food"}, "category"},
		{"long tag", Submission{Description: "Wallet", Location: "Cafeteria", Image: image, Tags: []string{strings.Repeat("x", 21)}}, "tags"},
		{"reserved tag", Submission{Description: "Wallet", Location: "Cafeteria", Image: image, Tags: []string{"category:Books"}}, "tags"},
		{"too many tags", Submission{Description: "Wallet", Location: "Cafeteria", Image: image,
			Tags: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}}, "tags"},
	}

	for _, tt := range tests {
		sub := tt.sub
		err := ValidateSubmission(&sub)
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", tt.name, err)
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected *ValidationError, got %T", tt.name, err)
			continue
		}
		if _, ok := verr.Fields[tt.wantErr]; !ok {
			t.Errorf("%s: expected field %q in %v", tt.name, tt.wantErr, verr.Fields)
		}
	}
}

func TestValidateRecord(t *testing.T) {
	valid := func() Record {
		return Record{
			ID:          "a",
			Description: "Blue backpack",
			Location:    "Library",
			Tags:        []string{"Backpack", "category:Books"},
			Status:      StatusFound,
			Image:       []byte{0xff, 0xd8},
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr string
	}{
		{"valid", func(*Record) {}, ""},
		{"missing image", func(r *Record) { r.Image = nil }, "image"},
		{"blank location", func(r *Record) { r.Location = " " }, "location"},
		{"unknown category", func(r *Record) { r.Tags = []string{"category:Nope"} }, "category"},
		{"two categories", func(r *Record) { r.Tags = []string{"category:Books", "category:Other"} }, "category"},
		{"long tag", func(r *Record) { r.Tags = []string{"this tag is definitely longer than twenty"} }, "tags"},
		{"too many tags", func(r *Record) {
			r.Tags = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "category:Books"}
		}, "tags"},
		{"bad status", func(r *Record) { r.Status = "" }, "status"},
	}

	for _, tt := range tests {
		r := valid()
		tt.mutate(&r)
		err := ValidateRecord(&r)
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected *ValidationError, got %v", tt.name, err)
			continue
		}
		if _, ok := verr.Fields[tt.wantErr]; !ok {
			t.Errorf("%s: expected field %q in %v", tt.name, tt.wantErr, verr.Fields)
		}
	}
}

func TestSubmissionDefaultsAndDedup(t *testing.T) {
	sub := Submission{
		Description: "  Red wallet ",
		Location:    "Cafeteria",
		Tags:        []string{" Wallet", "Wallet", "", "Red"},
		Image:       []byte{1},
	}
	if err := ValidateSubmission(&sub); err != nil {
		t.Fatalf("ValidateSubmission: %v", err)
	}
	if sub.Status != StatusFound {
		t.Errorf("expected default status %q, got %q", StatusFound, sub.Status)
	}
	if sub.Description != "Red wallet" {
		t.Errorf("expected trimmed description, got %q", sub.Description)
	}
	if len(sub.Tags) != 2 || sub.Tags[0] != "Wallet" || sub.Tags[1] != "Red" {
		t.Errorf("unexpected tags %v", sub.Tags)
	}
}
