package enrollment

import (
	"context"
	"errors"
	"net/http"

	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/fetch"
	"github.com/jmoiron/sqlx"
)

const CacheKey = "enrollments"

type adminRow struct {
	Detail
	StudentName string `json:"studentName"`
}

func HandleListAll(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v := fetch.Load(ctx, cache, CacheKey, []Detail{}, func(ctx context.Context) ([]Detail, error) {
			return ListAll(ctx, db)
		})

		rows := make([]adminRow, 0, len(v.Data))
		for _, d := range v.Data {
			rows = append(rows, adminRow{Detail: d, StudentName: d.StudentName()})
		}
		return web.Respond(ctx, w, fetch.View[[]adminRow]{Data: rows, Error: v.Error}, http.StatusOK)
	}
}

func HandleDashboard(db *sqlx.DB, cache *fetch.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		v := fetch.Load(ctx, cache, fetch.Key(CacheKey, clm.UserID), []DashboardItem{}, func(ctx context.Context) ([]DashboardItem, error) {
			return ListByUser(ctx, db, clm.UserID)
		})
		return web.Respond(ctx, w, fetch.View[Dashboard]{Data: Summarize(v.Data), Error: v.Error}, http.StatusOK)
	}
}
