package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/database"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// DebugMux serves the operational endpoints on the debug listener.
func DebugMux(log logrus.FieldLogger, db *sqlx.DB, metrics http.Handler) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics).Methods(http.MethodGet)
	r.Handle("/readiness", readiness(log, db)).Methods(http.MethodGet)
	return r
}

type health struct {
	Status string `json:"status"`
}

// readiness reports 503 while the database cannot be reached so load
// balancers stop routing to this instance.
func readiness(log logrus.FieldLogger, db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := database.StatusCheck(ctx, db); err != nil {
			log.WithError(err).Warn("readiness: database not ready")
			status, code = "db not ready", http.StatusServiceUnavailable
		}

		if err := web.Respond(ctx, w, health{Status: status}, code); err != nil {
			log.WithError(err).Error("readiness: writing response")
		}
	}
}
