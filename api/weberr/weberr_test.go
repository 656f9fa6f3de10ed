package weberr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var errMissing = errors.New("course missing")

func TestResponseSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("handling request: %w", NotFound(errMissing))

	body, code, ok := Response(err)
	if !ok || code != http.StatusNotFound {
		t.Fatalf("expected a 404 response, got %d %v", code, ok)
	}
	if diff := cmp.Diff(&ErrorResponse{"the resource could not be found"}, body); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, errMissing) {
		t.Fatal("expected the cause to stay reachable")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{errMissing, http.StatusInternalServerError},
		{Conflict(errMissing), http.StatusConflict},
		{Unprocessable(errMissing), http.StatusUnprocessableEntity},
		{TooManyRequests(errMissing), http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v): expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func TestFieldsMergeChain(t *testing.T) {
	inner := Wrap(errMissing, WithField("course", "c1"), WithField("user", "u1"))
	err := NotFound(inner, WithField("course", "c2"))

	got, ok := Fields(err)
	if !ok {
		t.Fatal("expected fields")
	}
	want := map[string]interface{}{"course": "c2", "user": "u1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	if _, ok := Fields(errMissing); ok {
		t.Fatal("expected no fields on a plain error")
	}
}
