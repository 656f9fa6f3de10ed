package blog

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer turns markdown bodies into HTML that is safe to embed. Raw HTML
// in the markdown is escaped by goldmark and whatever remains goes through a
// user content policy.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func NewRenderer() *Renderer {
	p := bluemonday.UGCPolicy()
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy: p,
	}
}

func (r *Renderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Post renders p. A body that cannot be converted is shown escaped.
func (r *Renderer) Post(p Post) Rendered {
	out, err := r.Render(p.Content)
	if err != nil {
		out = template.HTMLEscapeString(p.Content)
	}
	return Rendered{Post: p, Author: p.AuthorName(), HTML: out}
}
