package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (a *API) handleUnifiedSets(w http.ResponseWriter, r *http.Request) {
	askerID, err := identityFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err)
		return
	}

	summaries, err := a.reporter.UnifiedSets(r.Context(), askerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"sets": summaries})
}

func (a *API) handleSetDetail(w http.ResponseWriter, r *http.Request) {
	askerID, err := identityFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err)
		return
	}

	setID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "setID")))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid set id"))
		return
	}

	set, err := a.gdb.SetByID(r.Context(), setID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !setOwnedBy(set, askerID) {
		respondError(w, http.StatusNotFound, ErrNotFound)
		return
	}

	groups, err := a.reporter.SetDetail(r.Context(), setID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"set":      set,
		"requests": groups,
	})
}
