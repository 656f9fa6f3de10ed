package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/core/enrollment"
	"github.com/irsalhamdi/raiseup/core/profile"
	"github.com/irsalhamdi/raiseup/fetch"
	"github.com/irsalhamdi/raiseup/validate"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v := fetch.Load(ctx, cache, CacheKey, []User{}, func(ctx context.Context) ([]User, error) {
			return List(ctx, db)
		})
		return web.Respond(ctx, w, v, http.StatusOK)
	}
}

func HandleUpdateRole(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		var up profile.RoleUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if _, err := profile.Fetch(ctx, db, id); err != nil {
			if errors.Is(err, profile.ErrNotFound) {
				return weberr.NotFound(ErrNotFound, weberr.WithField("user", id))
			}
			return fmt.Errorf("fetching profile[%s]: %w", id, err)
		}

		if err := profile.ReplaceRole(ctx, db, id, up.Role); err != nil {
			return fmt.Errorf("updating role of user[%s]: %w", id, err)
		}
		cache.Invalidate(CacheKey)

		return web.Respond(ctx, w, up, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if claims.IsUser(ctx, id) {
			err := errors.New("admins cannot delete their own account")
			return weberr.Conflict(err)
		}

		if err := Delete(ctx, db, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}
		cache.Invalidate(CacheKey)
		cache.Invalidate(enrollment.CacheKey)

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
