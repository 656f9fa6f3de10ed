package enrollment

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strp(s string) *string { return &s }

func TestProgressOf(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{0, 12, 0},
		{9, 12, 75},
		{7, 15, 46},
		{15, 15, 100},
		{16, 15, 100},
	}

	for _, tt := range tests {
		if got := ProgressOf(tt.completed, tt.total); got != tt.want {
			t.Errorf("ProgressOf(%d, %d): expected %d, got %d", tt.completed, tt.total, tt.want, got)
		}
	}
}

func TestPaid(t *testing.T) {
	amount := 299.0
	if got := (Enrollment{AmountPaid: &amount}).Paid(); got != 299 {
		t.Fatalf("expected 299, got %v", got)
	}
	if got := (Enrollment{}).Paid(); got != 0 {
		t.Fatalf("expected 0 for a missing amount, got %v", got)
	}
}

func TestStudentName(t *testing.T) {
	d := Detail{StudentFirstName: strp("Jane"), StudentLastName: strp("Smith"), StudentEmail: "jane@example.com"}
	if got := d.StudentName(); got != "Jane Smith" {
		t.Fatalf("unexpected name %q", got)
	}

	d = Detail{StudentFirstName: strp(""), StudentEmail: "jane@example.com"}
	if got := d.StudentName(); got != "jane@example.com" {
		t.Fatalf("expected the email fallback, got %q", got)
	}
}

func TestSummarize(t *testing.T) {
	items := []DashboardItem{
		{Enrollment: Enrollment{Status: Active}, CompletedLessons: 9},
		{Enrollment: Enrollment{Status: Active}, CompletedLessons: 7},
		{Enrollment: Enrollment{Status: Completed}, CompletedLessons: 10, CertificateURL: strp("https://cdn/c.pdf")},
	}

	got := Summarize(items)
	got.Courses = nil

	want := Dashboard{InProgress: 2, Completed: 1, LessonsFinished: 26, CertificateCount: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("dashboard mismatch (-want +got):\n%s", diff)
	}
}
