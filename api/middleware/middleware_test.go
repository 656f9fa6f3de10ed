package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/sirupsen/logrus"
)

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func serve(h web.Handler, mw ...web.Middleware) *httptest.ResponseRecorder {
	h = web.WrapMiddleware(mw, h)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_ = h(r.Context(), w, r)
	return w
}

func TestErrorsUsesWrappedResponse(t *testing.T) {
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return weberr.NotFound(errors.New("course missing"))
	}

	w := serve(h, RequestID(), Errors(discard()))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	var body weberr.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "the resource could not be found" {
		t.Fatalf("unexpected body %q", body.Error)
	}
}

func TestErrorsHidesUnknownErrors(t *testing.T) {
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errors.New("pq: connection refused")
	}

	w := serve(h, Errors(discard()))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if got := w.Body.String(); got != `{"error":"Internal Server Error"}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestPanicsBecomeErrors(t *testing.T) {
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	}

	w := serve(h, Errors(discard()), Panics())
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestRequestIDKeepsIncomingHeader(t *testing.T) {
	var got string
	h := RequestID()(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		got = ContextRequestID(ctx)
		return nil
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	_ = h(r.Context(), httptest.NewRecorder(), r)

	if got != "abc-123" {
		t.Fatalf("expected abc-123, got %q", got)
	}
}

func TestCorsHeaders(t *testing.T) {
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	w := serve(h, Cors("https://raiseup.com"))
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://raiseup.com" {
		t.Fatalf("unexpected origin header %q", got)
	}
}
