package category

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gosimple/slug"
	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/database"
	"github.com/irsalhamdi/raiseup/fetch"
	"github.com/irsalhamdi/raiseup/validate"
	"github.com/jmoiron/sqlx"
)

const CacheKey = "categories"

var ErrSlugTaken = errors.New("a category with this name already exists")

type Category struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type CategoryNew struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"omitempty,max=100,slug"`
}

// List returns the categories ordered by name.
func List(ctx context.Context, db sqlx.ExtContext) ([]Category, error) {
	const q = `
	SELECT
		id, name, slug, created_at
	FROM
		categories
	ORDER BY
		name`

	cs := []Category{}
	if err := database.SelectContext(ctx, db, &cs, q); err != nil {
		return nil, fmt.Errorf("selecting categories: %w", err)
	}
	return cs, nil
}

func Create(ctx context.Context, db sqlx.ExtContext, c Category) error {
	const q = `
	INSERT INTO categories
		(id, name, slug, created_at)
	VALUES
		(:id, :name, :slug, :created_at)`

	if err := database.NamedExecContext(ctx, db, q, c); err != nil {
		if errors.Is(err, database.ErrDBDuplicatedEntry) {
			return ErrSlugTaken
		}
		return fmt.Errorf("inserting category: %w", err)
	}
	return nil
}

// =============================================================================

func HandleList(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v := fetch.Load(ctx, cache, CacheKey, []Category{}, func(ctx context.Context) ([]Category, error) {
			return List(ctx, db)
		})
		return web.Respond(ctx, w, v, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in CategoryNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		s := in.Slug
		if s == "" {
			s = in.Name
		}
		c := Category{
			ID:        validate.GenerateID(),
			Name:      in.Name,
			Slug:      slug.Make(s),
			CreatedAt: time.Now().UTC(),
		}

		if err := Create(ctx, db, c); err != nil {
			if errors.Is(err, ErrSlugTaken) {
				return weberr.Conflict(err)
			}
			return err
		}
		cache.Invalidate(CacheKey)

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}
