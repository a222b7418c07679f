package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/user"
)

type ctxKey struct{}

// UserFrom returns the account attached by the auth middleware, or nil.
func UserFrom(ctx context.Context) *user.User {
	u, _ := ctx.Value(ctxKey{}).(*user.User)
	return u
}

func withUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// authenticate verifies the bearer token and reloads the account so every
// handler sees the stored balance and role.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeMessage(w, http.StatusUnauthorized, "Access token required")
			return
		}

		claims, err := s.tokens.Verify(token)
		if err != nil {
			s.logger.DebugContext(r.Context(), "token rejected", "error", err)
			writeMessage(w, http.StatusForbidden, "Invalid or expired token")
			return
		}

		userID, err := id.ParseUserID(claims.UserID)
		if err != nil {
			writeMessage(w, http.StatusForbidden, "Invalid or expired token")
			return
		}

		u, err := s.ledger.GetUser(r.Context(), userID)
		if err != nil {
			if errors.Is(err, leadledger.ErrUserNotFound) {
				writeMessage(w, http.StatusUnauthorized, "User not found")
				return
			}
			s.writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}

// requireRole rejects accounts whose role is not in roles. It runs after
// authenticate.
func requireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFrom(r.Context())
			if u == nil {
				writeMessage(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !slices.Contains(roles, u.Role) {
				writeMessage(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.LogAttrs(r.Context(), slog.LevelInfo, "http request",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
