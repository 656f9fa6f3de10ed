package validate

import (
	"errors"
	"testing"
)

type courseNew struct {
	Title      string  `json:"title" validate:"required,max=10"`
	Slug       string  `json:"slug" validate:"omitempty,slug"`
	CategoryID *string `json:"categoryId,omitempty" validate:"omitempty,uuid4"`
}

func TestCheckNamesJSONFields(t *testing.T) {
	err := Check(courseNew{})
	if err == nil {
		t.Fatal("expected a missing title to be rejected")
	}
	if got := err.Error(); got != "title is a required field" {
		t.Fatalf("unexpected message %q", got)
	}

	bad := "42"
	err = Check(courseNew{Title: "Go", CategoryID: &bad})
	if err == nil || err.Error() != "categoryId must be a valid version 4 UUID" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCheckSlug(t *testing.T) {
	if err := Check(courseNew{Title: "Go", Slug: "go-for-beginners"}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	err := Check(courseNew{Title: "Go", Slug: "Go For Beginners"})
	if err == nil {
		t.Fatal("expected an invalid slug to be rejected")
	}
	if got := err.Error(); got != "slug must only contain lowercase letters, digits and dashes" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestCheckID(t *testing.T) {
	if err := CheckID(GenerateID()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := CheckID("course-1"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}
