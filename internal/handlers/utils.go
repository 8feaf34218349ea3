package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/playconnect/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// MessageResponse is the error payload shape shared by every endpoint.
type MessageResponse struct {
	Message string `json:"message"`
}

// ServerErrorResponse carries the operator-facing detail alongside the
// generic message on 5xx responses.
type ServerErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// userFromContext returns the account the access gate attached to the
// request.
func userFromContext(ctx context.Context) (types.User, error) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok || user.ID < 1 {
		return types.User{}, errors.New("no authenticated user in context")
	}
	return user, nil
}

func contextWithUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

func writeServerError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, ServerErrorResponse{
		Message: "Server error",
		Error:   err.Error(),
	})
}

// Healthz reports process liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: "ok"})
}
