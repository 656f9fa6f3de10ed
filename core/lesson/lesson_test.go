package lesson

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/raiseup/validate"
)

func strp(s string) *string { return &s }
func intp(i int) *int { return &i }

func TestPreview(t *testing.T) {
	l := Lesson{Title: "Intro", Free: true, VideoURL: strp("https://cdn/intro.mp4")}
	if got := l.Preview(); got.VideoURL == nil {
		t.Fatal("free lessons keep their video")
	}

	l.Free = false
	if got := l.Preview(); got.VideoURL != nil {
		t.Fatalf("expected the video to be hidden, got %q", *got.VideoURL)
	}
	if l.VideoURL == nil {
		t.Fatal("Preview must not modify the receiver")
	}
}

func TestApply(t *testing.T) {
	l := Lesson{Position: 1, Title: "Intro", DurationMinutes: intp(10)}

	LessonUp{Title: strp("Welcome"), Position: intp(0)}.Apply(&l)

	want := Lesson{Position: 0, Title: "Welcome", DurationMinutes: intp(10)}
	if diff := cmp.Diff(want, l); diff != "" {
		t.Fatalf("lesson mismatch (-want +got):\n%s", diff)
	}
}

func TestLessonNewValidation(t *testing.T) {
	in := LessonNew{CourseID: validate.GenerateID(), Title: "Intro", VideoURL: strp("not a url")}
	if err := validate.Check(in); err == nil {
		t.Fatal("expected an invalid video url to be rejected")
	}

	in.VideoURL = strp("https://cdn.example.com/intro.mp4")
	if err := validate.Check(in); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	in.CourseID = "42"
	if err := validate.Check(in); err == nil {
		t.Fatal("expected a malformed course id to be rejected")
	}
}

func TestProgressDone(t *testing.T) {
	if (Progress{Percent: 99}).Done() {
		t.Fatal("99% is not done")
	}
	if !(Progress{Percent: 100}).Done() {
		t.Fatal("100% is done")
	}
}
