package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rideshare-app/apiserver/internal/services"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

const maxBodyBytes = 1 << 20

// ErrorResponse is the payload of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

// MessageResponse acknowledges a command.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func withIdentity(ctx context.Context, identity services.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

func identityFromContext(ctx context.Context) (services.Identity, error) {
	identity, ok := ctx.Value(contextIdentityKey).(services.Identity)
	if !ok || identity.ID == "" {
		return services.Identity{}, errors.New("missing identity")
	}
	return identity, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Msg: message})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: message})
}

// writeServiceError maps a service error to its HTTP status. Internal
// failures are logged with the request id and reported generically.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := services.KindOf(err)
	if kind == services.KindInternal {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	writeError(w, statusForKind(kind), services.MessageOf(err))
}

func statusForKind(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindCredential:
		return http.StatusBadRequest
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
