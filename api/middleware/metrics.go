package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/metrics"
	"github.com/zenazn/goji/web/mutil"
)

// Metrics records the duration of every request labelled by route template,
// so ids in paths do not explode the label cardinality.
func Metrics(m *metrics.Metrics) web.Middleware {
	mw := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			start := time.Now()

			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			route := r.URL.Path
			if cr := mux.CurrentRoute(r); cr != nil {
				if tpl, terr := cr.GetPathTemplate(); terr == nil {
					route = tpl
				}
			}
			status := lw.Status()
			if status == 0 {
				status = http.StatusOK
			}

			m.ObserveRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
			return err
		}
		return h
	}
	return mw
}
