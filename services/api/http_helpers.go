package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// identityHeader carries the authenticated identity injected by the session
// gateway. Session management itself lives outside this subsystem.
const identityHeader = "X-Identity-ID"

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// respondDomainError maps the error taxonomy onto HTTP statuses. Invalid
// tokens always surface as a generic not-found.
func respondDomainError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrInvalidToken):
		respondError(w, http.StatusNotFound, ErrInvalidToken)
	case errors.Is(err, ErrNotFound):
		respondError(w, http.StatusNotFound, ErrNotFound)
	case errors.Is(err, ErrSetArchived):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, ErrEditWindowClosed):
		respondError(w, http.StatusConflict, err)
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error": ve.Error(),
			"rows":  ve.Rows,
		})
	default:
		respondError(w, http.StatusInternalServerError, err)
	}
}

func identityFrom(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(identityHeader)
	if raw == "" {
		return uuid.Nil, errors.New("authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid identity header")
	}
	return id, nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}
