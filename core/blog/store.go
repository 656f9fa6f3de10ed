package blog

import (
	"context"
	"errors"
	"fmt"

	"github.com/irsalhamdi/raiseup/database"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound  = errors.New("post not found")
	ErrSlugTaken = errors.New("a post or tag with this slug already exists")
)

const selectPosts = `
	SELECT
		b.id, b.title, b.slug, b.excerpt, b.content, b.image_url, b.is_published,
		b.published_at, b.author_id, b.created_at,
		p.first_name AS author_first_name, p.last_name AS author_last_name,
		COALESCE(ARRAY_AGG(t.name ORDER BY t.name) FILTER (WHERE t.id IS NOT NULL), '{}') AS tags
	FROM
		blog_posts AS b
	LEFT JOIN
		profiles AS p ON p.id = b.author_id
	LEFT JOIN
		blog_post_tags AS bt ON bt.post_id = b.id
	LEFT JOIN
		blog_tags AS t ON t.id = bt.tag_id`

// ListPublished returns the published posts, latest first.
func ListPublished(ctx context.Context, db sqlx.ExtContext) ([]Post, error) {
	q := selectPosts + `
	WHERE
		b.is_published
	GROUP BY
		b.id, p.first_name, p.last_name
	ORDER BY
		b.published_at DESC`

	ps := []Post{}
	if err := database.SelectContext(ctx, db, &ps, q); err != nil {
		return nil, fmt.Errorf("selecting posts: %w", err)
	}
	return ps, nil
}

func FetchPublished(ctx context.Context, db sqlx.ExtContext, slug string) (Post, error) {
	q := selectPosts + `
	WHERE
		b.is_published AND b.slug = $1
	GROUP BY
		b.id, p.first_name, p.last_name`

	var p Post
	if err := database.GetContext(ctx, db, &p, q, slug); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Post{}, ErrNotFound
		}
		return Post{}, fmt.Errorf("selecting post[%s]: %w", slug, err)
	}
	return p, nil
}

func ListTags(ctx context.Context, db sqlx.ExtContext) ([]Tag, error) {
	const q = `SELECT id, name, slug FROM blog_tags ORDER BY name`

	ts := []Tag{}
	if err := database.SelectContext(ctx, db, &ts, q); err != nil {
		return nil, fmt.Errorf("selecting tags: %w", err)
	}
	return ts, nil
}

func CreateTag(ctx context.Context, db sqlx.ExtContext, t Tag) error {
	const q = `INSERT INTO blog_tags (id, name, slug) VALUES (:id, :name, :slug)`

	if err := database.NamedExecContext(ctx, db, q, t); err != nil {
		if errors.Is(err, database.ErrDBDuplicatedEntry) {
			return ErrSlugTaken
		}
		return fmt.Errorf("inserting tag: %w", err)
	}
	return nil
}

// Create stores the post and links it to its tags in one transaction.
func Create(ctx context.Context, db *sqlx.DB, p Post, tagIDs []string) error {
	return database.Transaction(ctx, db, func(tx sqlx.ExtContext) error {
		const q = `
		INSERT INTO blog_posts
			(id, title, slug, excerpt, content, image_url, is_published, published_at, author_id, created_at)
		VALUES
			(:id, :title, :slug, :excerpt, :content, :image_url, :is_published, :published_at, :author_id, :created_at)`

		if err := database.NamedExecContext(ctx, tx, q, p); err != nil {
			if errors.Is(err, database.ErrDBDuplicatedEntry) {
				return ErrSlugTaken
			}
			return fmt.Errorf("inserting post: %w", err)
		}

		for _, id := range tagIDs {
			const link = `INSERT INTO blog_post_tags (post_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
			if _, err := tx.ExecContext(ctx, link, p.ID, id); err != nil {
				return fmt.Errorf("tagging post[%s] with tag[%s]: %w", p.ID, id, err)
			}
		}
		return nil
	})
}
