package report

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/core/course"
	"github.com/irsalhamdi/raiseup/core/enrollment"
	"github.com/irsalhamdi/raiseup/core/user"
	"github.com/irsalhamdi/raiseup/fetch"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// DBSources reads the collections through the query cache so the report
// shares results with the admin lists.
func DBSources(db *sqlx.DB, cache *fetch.Cache) Sources {
	return Sources{
		Enrollments: func(ctx context.Context) ([]enrollment.Enrollment, error) {
			ds, err := fetch.Get(ctx, cache, enrollment.CacheKey, func(ctx context.Context) ([]enrollment.Detail, error) {
				return enrollment.ListAll(ctx, db)
			})
			if err != nil {
				return nil, err
			}
			es := make([]enrollment.Enrollment, 0, len(ds))
			for _, d := range ds {
				es = append(es, d.Enrollment)
			}
			return es, nil
		},
		Courses: func(ctx context.Context) ([]course.Course, error) {
			ls, err := fetch.Get(ctx, cache, fetch.Key(course.CacheKey, "all"), func(ctx context.Context) ([]course.Listing, error) {
				return course.ListAll(ctx, db)
			})
			if err != nil {
				return nil, err
			}
			cs := make([]course.Course, 0, len(ls))
			for _, l := range ls {
				cs = append(cs, l.Course)
			}
			return cs, nil
		},
		Users: func(ctx context.Context) ([]user.User, error) {
			return fetch.Get(ctx, cache, user.CacheKey, func(ctx context.Context) ([]user.User, error) {
				return user.List(ctx, db)
			})
		},
	}
}

func HandleShow(log logrus.FieldLogger, src Sources) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		months := web.QueryInt(r, "months", 6)
		if months < 1 || months > 24 {
			months = 6
		}

		rep := Build(ctx, src, time.Now(), months)
		if len(rep.Errors) > 0 {
			log.WithField("errors", rep.Errors).Warn("report built from partial data")
		}
		return web.Respond(ctx, w, rep, http.StatusOK)
	}
}
