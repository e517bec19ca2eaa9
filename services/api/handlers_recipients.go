package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// recipientOwnedBy loads the recipient if its send event belongs to the
// asker.
func (a *API) recipientOwnedBy(r *http.Request, askerID, recipientID uuid.UUID) (*recipientModel, error) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var model recipientModel
	err := a.store.ORM.WithContext(ctx).
		Joins("JOIN question_requests ON question_requests.id = recipients.request_id").
		Where("recipients.id = ? AND question_requests.asker_identity_id = ?", recipientID, askerID).
		First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return &model, nil
}

func (a *API) handleDeactivateRecipient(w http.ResponseWriter, r *http.Request) {
	askerID, err := identityFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err)
		return
	}

	recipientID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "recipientID")))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid recipient id"))
		return
	}

	model, err := a.recipientOwnedBy(r, askerID, recipientID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	// Deactivation kills the token; a later re-send to the same email mints
	// a fresh one.
	if err := a.store.ORM.WithContext(ctx).Model(model).
		Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()}).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"deactivated": true})
}

func (a *API) handleManualRemind(w http.ResponseWriter, r *http.Request) {
	askerID, err := identityFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err)
		return
	}

	recipientID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "recipientID")))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid recipient id"))
		return
	}

	if _, err := a.recipientOwnedBy(r, askerID, recipientID); err != nil {
		respondDomainError(w, err)
		return
	}

	allowed, err := a.limiter.CheckAndIncrement(r.Context(),
		fmt.Sprintf("manual-remind:%s", askerID), a.config.ManualRemindLimit, manualRemindWindow)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !allowed {
		respondError(w, http.StatusTooManyRequests, errors.New("reminder limit reached, try again tomorrow"))
		return
	}

	sent, err := a.sweeper.RemindOne(r.Context(), recipientID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"sent": sent})
}
