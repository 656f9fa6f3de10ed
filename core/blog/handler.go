package blog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gosimple/slug"
	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/fetch"
	"github.com/irsalhamdi/raiseup/validate"
	"github.com/jmoiron/sqlx"
)

const CacheKey = "blog"

func HandleList(db *sqlx.DB, cache *fetch.Cache, rd *Renderer) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v := fetch.Load(ctx, cache, fetch.Key(CacheKey, "posts"), []Post{}, func(ctx context.Context) ([]Post, error) {
			return ListPublished(ctx, db)
		})

		out := make([]Rendered, 0, len(v.Data))
		for _, p := range v.Data {
			out = append(out, rd.Post(p))
		}
		return web.Respond(ctx, w, fetch.View[[]Rendered]{Data: out, Error: v.Error}, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB, rd *Renderer) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		s := web.Param(r, "slug")

		p, err := FetchPublished(ctx, db, s)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err, weberr.WithField("post", s))
			}
			return err
		}
		return web.Respond(ctx, w, rd.Post(p), http.StatusOK)
	}
}

func HandleTags(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v := fetch.Load(ctx, cache, fetch.Key(CacheKey, "tags"), []Tag{}, func(ctx context.Context) ([]Tag, error) {
			return ListTags(ctx, db)
		})
		return web.Respond(ctx, w, v, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB, cache *fetch.Cache, rd *Renderer) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in PostNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		now := time.Now().UTC()
		p := Post{
			ID:          validate.GenerateID(),
			Title:       in.Title,
			Slug:        slug.Make(in.Title),
			Excerpt:     in.Excerpt,
			Content:     in.Content,
			ImageURL:    in.ImageURL,
			IsPublished: in.IsPublished,
			AuthorID:    &clm.UserID,
			CreatedAt:   now,
		}
		if p.IsPublished {
			p.PublishedAt = &now
		}

		if err := Create(ctx, db, p, in.TagIDs); err != nil {
			if errors.Is(err, ErrSlugTaken) {
				return weberr.Conflict(err)
			}
			return err
		}
		cache.Invalidate(CacheKey)

		return web.Respond(ctx, w, rd.Post(p), http.StatusCreated)
	}
}

func HandleCreateTag(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in TagNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		t := Tag{ID: validate.GenerateID(), Name: in.Name, Slug: slug.Make(in.Name)}
		if err := CreateTag(ctx, db, t); err != nil {
			if errors.Is(err, ErrSlugTaken) {
				return weberr.Conflict(err)
			}
			return err
		}
		cache.Invalidate(fetch.Key(CacheKey, "tags"))

		return web.Respond(ctx, w, t, http.StatusCreated)
	}
}
