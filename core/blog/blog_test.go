package blog

import (
	"strings"
	"testing"
)

func strp(s string) *string { return &s }

func TestRender(t *testing.T) {
	rd := NewRenderer()

	tests := []struct {
		name     string
		markdown string
		contains []string
		absent   []string
	}{
		{
			name:     "heading and emphasis",
			markdown: "# Learn Go\n\nWrite **idiomatic** code.",
			contains: []string{"<h1", "Learn Go</h1>", "<strong>idiomatic</strong>"},
		},
		{
			name:     "raw html is dropped",
			markdown: "Hello <script>alert(1)</script> world",
			absent:   []string{"<script>", "alert(1)</script>"},
		},
		{
			name:     "javascript links are removed",
			markdown: "[click](javascript:alert(1))",
			absent:   []string{"javascript:"},
		},
		{
			name:     "external links get noreferrer",
			markdown: "[docs](https://go.dev)",
			contains: []string{`href="https://go.dev"`, "noreferrer"},
		},
		{
			name:     "tables from gfm",
			markdown: "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rd.Render(tt.markdown)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("expected %q in %q", s, got)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(got, s) {
					t.Errorf("did not expect %q in %q", s, got)
				}
			}
		})
	}
}

func TestRenderedPost(t *testing.T) {
	rd := NewRenderer()

	p := Post{Title: "Hello", Content: "*hi*", AuthorFirstName: strp("Jane"), AuthorLastName: strp("Smith")}
	got := rd.Post(p)

	if got.Author != "Jane Smith" {
		t.Fatalf("unexpected author %q", got.Author)
	}
	if !strings.Contains(got.HTML, "<em>hi</em>") {
		t.Fatalf("unexpected html %q", got.HTML)
	}
}

func TestAuthorNameFallback(t *testing.T) {
	if got := (Post{}).AuthorName(); got != "RaiseUP Team" {
		t.Fatalf("unexpected fallback %q", got)
	}
}
