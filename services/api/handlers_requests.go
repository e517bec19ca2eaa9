package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

func (a *API) handleDispatch(w http.ResponseWriter, r *http.Request) {
	askerID, err := identityFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err)
		return
	}

	var req struct {
		SetID      string           `json:"set_id"`
		Message    string           `json:"message,omitempty"`
		Recipients []RecipientInput `json:"recipients"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	setID, err := uuid.Parse(strings.TrimSpace(req.SetID))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("valid set_id is required"))
		return
	}

	result, err := a.dispatcher.Dispatch(r.Context(), askerID, setID, strings.TrimSpace(req.Message), req.Recipients)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	a.notifyInvites(r, askerID, result)

	respondJSON(w, http.StatusCreated, map[string]any{
		"request":    result.Request,
		"recipients": a.dispatchResponse(result),
	})
}

// dispatchResponse shapes the per-recipient outcome, exposing the token and
// whether it was freshly minted.
func (a *API) dispatchResponse(result *DispatchResult) []map[string]any {
	out := make([]map[string]any, 0, len(result.Recipients))
	for _, rec := range result.Recipients {
		out = append(out, map[string]any{
			"recipient_id": rec.Recipient.ID,
			"email":        rec.Recipient.Email,
			"alias":        rec.Recipient.Alias,
			"token":        rec.Token,
			"reused":       rec.Reused,
		})
	}
	return out
}

// notifyInvites emits one invite event per newly minted token. Reused tokens
// get no fresh notification; the caller surfaces the existing link instead.
func (a *API) notifyInvites(r *http.Request, askerID uuid.UUID, result *DispatchResult) {
	asker, err := a.gdb.IdentityByID(r.Context(), askerID)
	if err != nil {
		a.logger.Error().Err(err).Msg("load asker for invite notification")
		return
	}
	askerName := fallbackDisplayName
	if asker != nil {
		askerName = displayNameFor("", asker, asker.Email)
	}

	for _, rec := range result.Recipients {
		if rec.Reused {
			continue
		}
		_ = a.publishJSON(r.Context(), inviteTopic, map[string]any{
			"recipient_email": rec.Recipient.Email,
			"token":           rec.Token,
			"asker_name":      askerName,
			"message":         result.Request.Message,
		})
	}
}
