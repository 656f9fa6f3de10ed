package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/irsalhamdi/raiseup/api/web"
)

const (
	RequestIDHeader = "X-Request-Id"

	requestIDLengthLimit = 128
)

type reqIDKeyCtx int

const reqIDKey reqIDKeyCtx = 1

var (
	reqSeq    int64
	reqPrefix = strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
)

// RequestID tags the context with the incoming X-Request-Id, or a
// process-unique one, and echoes it on the response.
func RequestID() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			id := r.Header.Get(RequestIDHeader)
			switch {
			case id == "":
				id = fmt.Sprintf("%s-%d", reqPrefix, atomic.AddInt64(&reqSeq, 1))
			case len(id) > requestIDLengthLimit:
				id = id[:requestIDLengthLimit]
			}

			w.Header().Set(RequestIDHeader, id)
			ctx = context.WithValue(ctx, reqIDKey, id)

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func ContextRequestID(ctx context.Context) string {
	id, _ := ctx.Value(reqIDKey).(string)
	return id
}
