package lesson

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/core/enrollment"
	"github.com/irsalhamdi/raiseup/fetch"
	"github.com/irsalhamdi/raiseup/validate"
	"github.com/jmoiron/sqlx"
)

// Certifier issues the certificate of a finished enrollment.
type Certifier interface {
	Certify(ctx context.Context, enrollmentID string)
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		ls, err := ListByCourse(ctx, db, courseID)
		if err != nil {
			return fmt.Errorf("listing lessons: %w", err)
		}

		full, err := canWatch(ctx, db, courseID)
		if err != nil {
			return err
		}
		if !full {
			for i := range ls {
				ls[i] = ls[i].Preview()
			}
		}
		return web.Respond(ctx, w, ls, http.StatusOK)
	}
}

// HandleShow returns a lesson. The video is only included for free lessons
// and for users enrolled in the course.
func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		l, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err, weberr.WithField("lesson", id))
			}
			return fmt.Errorf("fetching lesson[%s]: %w", id, err)
		}

		full, err := canWatch(ctx, db, l.CourseID)
		if err != nil {
			return err
		}
		if !full {
			l = l.Preview()
		}
		return web.Respond(ctx, w, l, http.StatusOK)
	}
}

func canWatch(ctx context.Context, db sqlx.ExtContext, courseID string) (bool, error) {
	clm, err := claims.Get(ctx)
	if err != nil {
		return false, nil
	}
	if clm.Role.AtLeast(claims.RoleInstructor) {
		return true, nil
	}

	_, err = enrollment.FetchByCourse(ctx, db, clm.UserID, courseID)
	switch {
	case errors.Is(err, enrollment.ErrNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("checking enrollment: %w", err)
	}
	return true, nil
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in LessonNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		now := time.Now().UTC()
		l := Lesson{
			ID:              validate.GenerateID(),
			CourseID:        in.CourseID,
			Position:        in.Position,
			Title:           in.Title,
			Description:     in.Description,
			Free:            in.Free,
			VideoURL:        in.VideoURL,
			DurationMinutes: in.DurationMinutes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		if err := Create(ctx, db, l); err != nil {
			if errors.Is(err, ErrPositionUsed) {
				return weberr.Conflict(err)
			}
			return fmt.Errorf("creating lesson: %w", err)
		}
		return web.Respond(ctx, w, l, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		var up LessonUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		l, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching lesson[%s]: %w", id, err)
		}

		up.Apply(&l)
		l.UpdatedAt = time.Now().UTC()
		if err := Update(ctx, db, l); err != nil {
			if errors.Is(err, ErrPositionUsed) {
				return weberr.Conflict(err)
			}
			return fmt.Errorf("updating lesson[%s]: %w", id, err)
		}
		return web.Respond(ctx, w, l, http.StatusOK)
	}
}

// HandleComplete marks a lesson as done for the current student. The
// certifier is called once the enrollment reaches 100%.
func HandleComplete(db *sqlx.DB, cache *fetch.Cache, cert Certifier) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		l, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching lesson[%s]: %w", id, err)
		}

		e, err := enrollment.FetchByCourse(ctx, db, clm.UserID, l.CourseID)
		if err != nil {
			if errors.Is(err, enrollment.ErrNotFound) {
				return weberr.Forbidden(fmt.Errorf("user[%s] is not enrolled in course[%s]", clm.UserID, l.CourseID))
			}
			return fmt.Errorf("fetching enrollment: %w", err)
		}

		wasDone := e.Status == enrollment.Completed

		p, err := Complete(ctx, db, e, l.ID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("completing lesson[%s]: %w", id, err)
		}
		cache.Invalidate(enrollment.CacheKey)

		if p.Done() && !wasDone && cert != nil {
			cert.Certify(ctx, e.ID)
		}
		return web.Respond(ctx, w, p, http.StatusOK)
	}
}
