package course

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/irsalhamdi/raiseup/database"
	"github.com/irsalhamdi/raiseup/random"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("course not found")

const listingColumns = `
	c.id, c.title, c.slug, c.description, c.price, c.image_url, c.duration_hours,
	c.is_published, c.category_id, c.instructor_id, c.created_at, c.updated_at,
	cat.name AS category_name, cat.slug AS category_slug,
	p.first_name AS instructor_first_name, p.last_name AS instructor_last_name`

const listingFrom = `
	courses AS c
LEFT JOIN
	categories AS cat ON cat.id = c.category_id
LEFT JOIN
	profiles AS p ON p.id = c.instructor_id`

// ListPublished returns the catalog, newest first.
func ListPublished(ctx context.Context, db sqlx.ExtContext) ([]Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM ` + listingFrom + `
	WHERE
		c.is_published = TRUE
	ORDER BY
		c.created_at DESC`

	cs := []Listing{}
	if err := database.SelectContext(ctx, db, &cs, q); err != nil {
		return nil, fmt.Errorf("selecting published courses: %w", err)
	}
	return cs, nil
}

// ListAll includes drafts; it backs the admin dashboard and the reports.
func ListAll(ctx context.Context, db sqlx.ExtContext) ([]Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM ` + listingFrom + `
	ORDER BY
		c.created_at DESC`

	cs := []Listing{}
	if err := database.SelectContext(ctx, db, &cs, q); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}
	return cs, nil
}

// FetchListing finds a course by id or by slug.
func FetchListing(ctx context.Context, db sqlx.ExtContext, ref string) (Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM ` + listingFrom + `
	WHERE
		c.id::text = $1 OR c.slug = $1`

	var l Listing
	if err := database.GetContext(ctx, db, &l, q, ref); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("selecting course[%s]: %w", ref, err)
	}
	return l, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	const q = `
	SELECT
		id, title, slug, description, price, image_url, duration_hours,
		is_published, category_id, instructor_id, created_at, updated_at
	FROM
		courses
	WHERE
		id = $1`

	var c Course
	if err := database.GetContext(ctx, db, &c, q, id); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Course{}, ErrNotFound
		}
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}
	return c, nil
}

// Create inserts c, suffixing its slug when the title is already taken.
func Create(ctx context.Context, db sqlx.ExtContext, c Course) (Course, error) {
	const q = `
	INSERT INTO courses
		(id, title, slug, description, price, image_url, duration_hours,
		 is_published, category_id, instructor_id, created_at, updated_at)
	VALUES
		(:id, :title, :slug, :description, :price, :image_url, :duration_hours,
		 :is_published, :category_id, :instructor_id, :created_at, :updated_at)`

	base := slug.Make(c.Title)
	c.Slug = base
	for attempt := 0; attempt < 3; attempt++ {
		err := database.NamedExecContext(ctx, db, q, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, database.ErrDBDuplicatedEntry) {
			return Course{}, fmt.Errorf("inserting course: %w", err)
		}

		suffix, err := random.Code(5)
		if err != nil {
			return Course{}, err
		}
		c.Slug = base + "-" + strings.ToLower(suffix)
	}
	return Course{}, fmt.Errorf("inserting course %q: %w", c.Title, database.ErrDBDuplicatedEntry)
}

func Update(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	UPDATE courses SET
		title = :title,
		description = :description,
		price = :price,
		image_url = :image_url,
		duration_hours = :duration_hours,
		is_published = :is_published,
		category_id = :category_id,
		updated_at = :updated_at
	WHERE
		id = :id`

	if err := database.NamedExecContext(ctx, db, q, c); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("updating course[%s]: %w", c.ID, err)
	}
	return nil
}
