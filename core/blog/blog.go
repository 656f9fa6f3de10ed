package blog

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

type Post struct {
	ID              string         `json:"id" db:"id"`
	Title           string         `json:"title" db:"title"`
	Slug            string         `json:"slug" db:"slug"`
	Excerpt         *string        `json:"excerpt" db:"excerpt"`
	Content         string         `json:"content" db:"content"`
	ImageURL        *string        `json:"imageUrl" db:"image_url"`
	IsPublished     bool           `json:"isPublished" db:"is_published"`
	PublishedAt     *time.Time     `json:"publishedAt" db:"published_at"`
	AuthorID        *string        `json:"authorId" db:"author_id"`
	AuthorFirstName *string        `json:"-" db:"author_first_name"`
	AuthorLastName  *string        `json:"-" db:"author_last_name"`
	Tags            pq.StringArray `json:"tags" db:"tags"`
	CreatedAt       time.Time      `json:"createdAt" db:"created_at"`
}

func (p Post) AuthorName() string {
	var parts []string
	for _, s := range []*string{p.AuthorFirstName, p.AuthorLastName} {
		if s != nil && *s != "" {
			parts = append(parts, *s)
		}
	}
	if len(parts) == 0 {
		return "RaiseUP Team"
	}
	return strings.Join(parts, " ")
}

// Rendered is a post with its body converted to sanitized HTML.
type Rendered struct {
	Post
	Author string `json:"author"`
	HTML   string `json:"html"`
}

type Tag struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

type PostNew struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Excerpt     *string  `json:"excerpt" validate:"omitempty,max=500"`
	Content     string   `json:"content" validate:"required"`
	ImageURL    *string  `json:"imageUrl" validate:"omitempty,url"`
	IsPublished bool     `json:"isPublished"`
	TagIDs      []string `json:"tagIds" validate:"dive,uuid4"`
}

type TagNew struct {
	Name string `json:"name" validate:"required,max=50"`
}
