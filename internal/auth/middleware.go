package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey int

const userIDContextKey contextKey = iota

// ContextWithUserID returns a new context carrying the authenticated user id.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts the authenticated user id, or "" if absent.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey).(string)
	return id
}

// FailureReason classifies a rejected bearer token for logs and metrics.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errMissingToken):
		return "missing"
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	default:
		return "invalid"
	}
}

var errMissingToken = errors.New("missing bearer token")

// Middleware authenticates requests with a bearer token and injects the user
// id into the request context. Every rejection produces the same 401 body;
// the reason is only logged and passed to onFailure.
func Middleware(tokens TokenValidator, onFailure ...func(reason string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := authenticate(tokens, r)
			if err != nil {
				reason := FailureReason(err)
				slog.Warn("bearer authentication failed",
					"reason", reason,
					"path", r.URL.Path,
					"error", err,
				)
				for _, fn := range onFailure {
					fn(reason)
				}
				WriteUnauthorized(w)
				return
			}

			ctx := ContextWithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(tokens TokenValidator, r *http.Request) (string, error) {
	token := extractBearerToken(r)
	if token == "" {
		return "", errMissingToken
	}
	return tokens.Validate(token)
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type errorResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// WriteUnauthorized writes the 401 body shared by every bearer rejection.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Status:     "Unauthorized",
		Message:    "Unauthenticated",
		StatusCode: http.StatusUnauthorized,
	})
}
