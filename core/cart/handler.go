package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/kv"
	"github.com/irsalhamdi/raiseup/validate"
	"github.com/sirupsen/logrus"
)

// Opener returns the cart of the browsing context bound to ctx.
type Opener func(ctx context.Context) *Store

func SessionOpener(log logrus.FieldLogger, sm *scs.SessionManager) Opener {
	return func(ctx context.Context) *Store {
		return New(log, kv.NewSession(ctx, sm), StorageKey)
	}
}

// Lookup resolves a course id to the line item the catalog sells, so
// titles and prices are never taken from the client.
type Lookup func(ctx context.Context, courseID string) (ItemNew, error)

type itemAdd struct {
	CourseID string `json:"courseId" validate:"required"`
}

func HandleShow(open Opener) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, open(ctx).Snapshot(), http.StatusOK)
	}
}

func HandleAddItem(open Opener, lookup Lookup) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in itemAdd
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		it, err := lookup(ctx, in.CourseID)
		if err != nil {
			if errors.Is(err, ErrUnknownItem) {
				return weberr.NotFound(fmt.Errorf("course[%s] is not for sale: %w", in.CourseID, err))
			}
			return fmt.Errorf("looking up course[%s]: %w", in.CourseID, err)
		}
		if err := validate.Check(it); err != nil {
			return fmt.Errorf("course[%s] cannot be sold: %w", in.CourseID, err)
		}

		c := open(ctx)
		if err := c.AddItem(it); err != nil {
			return weberr.InternalError(err, weberr.WithField("course_id", it.ID))
		}

		return web.Respond(ctx, w, c.Snapshot(), http.StatusOK)
	}
}

func HandleUpdateItem(open Opener) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "course_id")

		var up QuantityUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		c := open(ctx)
		if err := c.UpdateQuantity(id, up.Quantity); err != nil {
			return weberr.InternalError(err, weberr.WithField("course_id", id))
		}

		return web.Respond(ctx, w, c.Snapshot(), http.StatusOK)
	}
}

func HandleDeleteItem(open Opener) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "course_id")

		c := open(ctx)
		if err := c.RemoveItem(id); err != nil {
			return weberr.InternalError(err, weberr.WithField("course_id", id))
		}

		return web.Respond(ctx, w, c.Snapshot(), http.StatusOK)
	}
}

func HandleClear(open Opener) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := open(ctx).Clear(); err != nil {
			return weberr.InternalError(err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
