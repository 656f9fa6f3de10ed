package course

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/core/cart"
	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/fetch"
	"github.com/irsalhamdi/raiseup/validate"
	"github.com/jmoiron/sqlx"
)

const CacheKey = "courses"

func HandleList(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v := fetch.Load(ctx, cache, CacheKey, []Listing{}, func(ctx context.Context) ([]Listing, error) {
			return ListPublished(ctx, db)
		})
		return web.Respond(ctx, w, v, http.StatusOK)
	}
}

func HandleListAll(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v := fetch.Load(ctx, cache, fetch.Key(CacheKey, "all"), []Listing{}, func(ctx context.Context) ([]Listing, error) {
			return ListAll(ctx, db)
		})
		return web.Respond(ctx, w, v, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ref := web.Param(r, "id")

		l, err := FetchListing(ctx, db, ref)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err, weberr.WithField("course", ref))
			}
			return fmt.Errorf("fetching course[%s]: %w", ref, err)
		}

		if !l.IsPublished {
			return weberr.NotFound(ErrNotFound)
		}
		return web.Respond(ctx, w, l, http.StatusOK)
	}
}

// CartLookup sells published courses at their catalog price.
func CartLookup(db sqlx.ExtContext) cart.Lookup {
	return func(ctx context.Context, courseID string) (cart.ItemNew, error) {
		if err := validate.CheckID(courseID); err != nil {
			return cart.ItemNew{}, cart.ErrUnknownItem
		}

		c, err := Fetch(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return cart.ItemNew{}, cart.ErrUnknownItem
			}
			return cart.ItemNew{}, err
		}
		if !c.IsPublished {
			return cart.ItemNew{}, cart.ErrUnknownItem
		}

		it := cart.ItemNew{ID: c.ID, Title: c.Title, Price: c.Price}
		if c.ImageURL != nil {
			it.Image = *c.ImageURL
		}
		return it, nil
	}
}

func HandleCreate(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in CourseNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		now := time.Now().UTC()
		c := Course{
			ID:            validate.GenerateID(),
			Title:         in.Title,
			Description:   in.Description,
			Price:         in.Price,
			ImageURL:      in.ImageURL,
			DurationHours: in.DurationHours,
			IsPublished:   in.IsPublished,
			CategoryID:    in.CategoryID,
			InstructorID:  &clm.UserID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		c, err = Create(ctx, db, c)
		if err != nil {
			return fmt.Errorf("creating course: %w", err)
		}
		cache.Invalidate(CacheKey)

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

// HandleUpdate lets admins edit any course and instructors their own.
func HandleUpdate(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		var up CourseUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", id, err)
		}

		owner := c.InstructorID != nil && *c.InstructorID == clm.UserID
		if clm.Role != claims.RoleAdmin && !owner {
			return weberr.Forbidden(fmt.Errorf("user[%s] does not teach course[%s]", clm.UserID, id))
		}

		up.Apply(&c)
		c.UpdatedAt = time.Now().UTC()
		if err := Update(ctx, db, c); err != nil {
			return fmt.Errorf("updating course[%s]: %w", id, err)
		}
		cache.Invalidate(CacheKey)

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}
