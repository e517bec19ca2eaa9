package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func tokenParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "token"))
}

func (a *API) handleOutstanding(w http.ResponseWriter, r *http.Request) {
	rec, questions, err := a.session.Outstanding(r.Context(), tokenParam(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	identity, err := a.gdb.IdentityByID(r.Context(), rec.IdentityID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"display_name": displayNameFor(rec.Alias, identity, rec.Email),
		"questions":    questions,
	})
}

func (a *API) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	questionID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "questionID")))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid question id"))
		return
	}

	var input SubmitInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.session.Submit(r.Context(), tokenParam(r), questionID, input)
	if errors.Is(err, ErrEditWindowClosed) {
		// Surface as read-only rather than a bare failure: the respondent
		// should still see their answer.
		existing, lookupErr := a.session.ReadAnswer(r.Context(), tokenParam(r), questionID)
		if lookupErr != nil {
			respondDomainError(w, lookupErr)
			return
		}
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":  ErrEditWindowClosed.Error(),
			"answer": existing,
		})
		return
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (a *API) handleMediaStatus(w http.ResponseWriter, r *http.Request) {
	mediaID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "mediaID")))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid media id"))
		return
	}

	result, err := a.session.MediaStatus(r.Context(), tokenParam(r), mediaID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (a *API) handleClaim(w http.ResponseWriter, r *http.Request) {
	var input ClaimInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.claims.Claim(r.Context(), tokenParam(r), input)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	_ = a.publishJSON(r.Context(), claimsTopic, map[string]any{
		"recipient_id":  result.Recipient.ID,
		"respondent_id": result.RespondentID,
		"repointed":     result.Repointed,
	})

	respondJSON(w, http.StatusOK, result)
}
