package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewSlogLogger returns a middleware that logs each request as a structured
// JSON line via the provided slog.Logger. It captures method, path, HTTP
// status, bytes written, duration, the request ID set by chi's RequestID
// middleware and, on authenticated routes, the acting user.
//
// Wire it after chimiddleware.RequestID so the request ID is available.
// Responses with status 500 or above are logged at error level.
func NewSlogLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// The auth middleware runs further down the chain, so the user is
			// captured through a pointer it fills in.
			var user string
			r = r.WithContext(withUserSlot(r.Context(), &user))

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			}
			if user != "" {
				attrs = append(attrs, "user_id", user)
			}
			log.Log(r.Context(), level, "request", attrs...)
		})
	}
}

type userSlotKey struct{}

func withUserSlot(ctx context.Context, slot *string) context.Context {
	return context.WithValue(ctx, userSlotKey{}, slot)
}

// recordUser fills the logger's user slot, if the request has one.
func recordUser(ctx context.Context, id string) {
	if slot, ok := ctx.Value(userSlotKey{}).(*string); ok {
		*slot = id
	}
}
