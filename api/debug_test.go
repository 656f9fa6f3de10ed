package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/irsalhamdi/raiseup/database/dbtest"
	"github.com/sirupsen/logrus"
)

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestReadiness(t *testing.T) {
	db := dbtest.NewDB(t)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := DebugMux(discard(), db, metrics)

	get := func(path string) (int, health) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		var body health
		if w.Code != http.StatusTeapot {
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decoding %s: %s", path, err)
			}
		}
		return w.Code, body
	}

	if code, body := get("/readiness"); code != http.StatusOK || body.Status != "ok" {
		t.Fatalf("expected ready, got %d %q", code, body.Status)
	}
	if code, _ := get("/metrics"); code != http.StatusTeapot {
		t.Fatalf("expected the metrics handler to serve /metrics, got %d", code)
	}

	db.Close()
	if code, body := get("/readiness"); code != http.StatusServiceUnavailable || body.Status != "db not ready" {
		t.Fatalf("expected not ready after the pool closed, got %d %q", code, body.Status)
	}
}
