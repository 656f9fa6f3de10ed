package i18n

import (
	"context"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/kv"
	"github.com/irsalhamdi/raiseup/validate"
)

// Opener returns the locale store of the browsing context bound to ctx.
type Opener func(ctx context.Context) *Store

// SessionOpener keeps the locale in the scs session of the request.
func (c *Catalog) SessionOpener(storage func(ctx context.Context) kv.Storage) Opener {
	return func(ctx context.Context) *Store {
		return c.Open(storage(ctx))
	}
}

type localeView struct {
	Locale   string            `json:"locale"`
	Locales  []string          `json:"locales"`
	Messages map[string]string `json:"messages,omitempty"`
}

type localeUp struct {
	Locale string `json:"locale" validate:"required"`
}

func HandleShow(cat *Catalog, open Opener) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		s := open(ctx)
		v := localeView{Locale: s.Locale(), Locales: cat.Locales()}
		if r.URL.Query().Get("messages") == "true" {
			v.Messages = cat.Messages(s.Locale())
		}
		return web.Respond(ctx, w, v, http.StatusOK)
	}
}

// HandleUpdate switches the locale. Unknown locales leave it unchanged.
func HandleUpdate(cat *Catalog, open Opener) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var up localeUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		s := open(ctx)
		if _, err := s.SetLocale(up.Locale); err != nil {
			return weberr.InternalError(err)
		}
		return web.Respond(ctx, w, localeView{Locale: s.Locale(), Locales: cat.Locales()}, http.StatusOK)
	}
}
