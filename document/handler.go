package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/validate"
)

// authorize lets students reach their own enrollments and admins any.
func (s *Store) authorize(ctx context.Context, enrollmentID string) error {
	clm, err := claims.Get(ctx)
	if err != nil {
		return weberr.NotAuthorized(errors.New("user not authenticated"))
	}
	if err := validate.CheckID(enrollmentID); err != nil {
		return weberr.NewError(err, err.Error(), http.StatusBadRequest)
	}

	owner, err := s.Owner(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return weberr.NotFound(errors.New("enrollment not found"))
		}
		return err
	}
	if owner != clm.UserID && !claims.IsAdmin(ctx) {
		return weberr.Forbidden(fmt.Errorf("enrollment[%s] belongs to another user", enrollmentID))
	}
	return nil
}

func (s *Store) HandleIssue() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := s.authorize(ctx, id); err != nil {
			return err
		}

		cert, err := s.Issue(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotCompleted) {
				return weberr.Unprocessable(err)
			}
			return fmt.Errorf("issuing certificate of enrollment[%s]: %w", id, err)
		}
		return web.Respond(ctx, w, cert, http.StatusOK)
	}
}

func (s *Store) HandleDownload() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := s.authorize(ctx, id); err != nil {
			return err
		}

		cert, err := s.Fetch(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		rc, err := s.bucket.Open(ctx, cert.Name())
		if err != nil {
			return fmt.Errorf("opening certificate %s: %w", cert.Number, err)
		}
		defer rc.Close()

		body, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("reading certificate %s: %w", cert.Number, err)
		}
		return web.RespondBytes(w, "application/pdf", path.Base(cert.Name()), body)
	}
}
