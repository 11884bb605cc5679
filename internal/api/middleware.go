package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/auth"
)

type contextKey string

const requestInfoKey contextKey = "request_info"

// requestInfo is shared by the middleware chain of one request. AuthMiddleware
// runs deeper in the chain than LoggingMiddleware, so it writes the caller
// here instead of into a derived context the logger never sees.
type requestInfo struct {
	id     string
	userID uuid.UUID
	role   string
}

// RequestIDMiddleware accepts the caller's X-Request-ID or mints one.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestInfoKey, &requestInfo{id: requestID})
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		info := requestInfoFrom(r.Context())
		user := "-"
		if info.userID != uuid.Nil {
			user = info.userID.String()
		}

		log.Printf(
			"method=%s path=%s status=%d duration=%s request_id=%s user_id=%s role=%s remote=%s",
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			time.Since(start),
			info.id,
			user,
			orDash(info.role),
			r.RemoteAddr,
		)
	})
}

// AuthMiddleware resolves the bearer token into an auth.Actor stored in the
// request context. Requests without a valid token are refused with 401.
func AuthMiddleware(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			actor, err := tokens.Verify(strings.TrimSpace(raw))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			if info := requestInfoFrom(r.Context()); info.id != "" {
				info.userID = actor.UserID
				info.role = string(actor.Role)
			}

			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
		})
	}
}

// actorFrom returns the caller resolved by AuthMiddleware.
func actorFrom(r *http.Request) auth.Actor {
	a, _ := auth.ActorFrom(r.Context())
	return a
}

// GetRequestID returns the id assigned by RequestIDMiddleware, or "".
func GetRequestID(ctx context.Context) string {
	return requestInfoFrom(ctx).id
}

func requestInfoFrom(ctx context.Context) *requestInfo {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		return info
	}
	return &requestInfo{}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
