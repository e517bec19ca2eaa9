package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	minQuestionsPerSet = 1
	maxQuestionsPerSet = 5
)

type questionInput struct {
	ID   *uuid.UUID `json:"id,omitempty"`
	Text string     `json:"text"`
}

func validateQuestionTexts(questions []questionInput) error {
	if len(questions) < minQuestionsPerSet || len(questions) > maxQuestionsPerSet {
		return errors.New("a set carries between 1 and 5 questions")
	}
	for _, q := range questions {
		if strings.TrimSpace(q.Text) == "" {
			return errors.New("question text is required")
		}
	}
	return nil
}

func (a *API) handleCreateSet(w http.ResponseWriter, r *http.Request) {
	askerID, err := identityFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err)
		return
	}

	var req struct {
		Name      string          `json:"name"`
		Questions []questionInput `json:"questions"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	if err := validateQuestionTexts(req.Questions); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()
	model := questionSetModel{
		ID:              uuid.New(),
		OwnerIdentityID: askerID,
		Name:            req.Name,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i, q := range req.Questions {
		model.Questions = append(model.Questions, questionModel{
			ID:        uuid.New(),
			SetID:     model.ID,
			Position:  i,
			Text:      strings.TrimSpace(q.Text),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := a.store.ORM.WithContext(ctx).Create(&model).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"set": model.toAPI()})
}

func (a *API) handleListSets(w http.ResponseWriter, r *http.Request) {
	askerID, err := identityFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var models []questionSetModel
	if err := a.store.ORM.WithContext(ctx).Preload("Questions").
		Where("owner_identity_id = ?", askerID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	sets := make([]QuestionSet, 0, len(models))
	for _, model := range models {
		sets = append(sets, model.toAPI())
	}
	respondJSON(w, http.StatusOK, map[string]any{"sets": sets})
}

func (a *API) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		Name      string          `json:"name,omitempty"`
		Questions []questionInput `json:"questions,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Questions != nil {
		if err := validateQuestionTexts(req.Questions); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	err = a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model questionSetModel
		if err := tx.Preload("Questions").First(&model, "id = ? AND owner_identity_id = ?", setID, askerID).Error; err != nil {
			return err
		}
		if model.ArchivedAt != nil {
			return ErrSetArchived
		}

		now := time.Now().UTC()
		updates := map[string]any{"updated_at": now}
		if name := strings.TrimSpace(req.Name); name != "" {
			updates["name"] = name
		}
		if err := tx.Model(&model).Updates(updates).Error; err != nil {
			return err
		}

		if req.Questions == nil {
			return nil
		}

		// Entries carrying an id keep it (answers stay attached through a
		// reorder or text edit); entries without one are new; questions
		// absent from the payload are removed.
		keep := make(map[uuid.UUID]bool, len(req.Questions))
		for i, q := range req.Questions {
			text := strings.TrimSpace(q.Text)
			if q.ID != nil {
				keep[*q.ID] = true
				if err := tx.Model(&questionModel{}).
					Where("id = ? AND set_id = ?", *q.ID, setID).
					Updates(map[string]any{"text": text, "position": i, "updated_at": now}).Error; err != nil {
					return err
				}
				continue
			}
			created := questionModel{
				ID:        uuid.New(),
				SetID:     setID,
				Position:  i,
				Text:      text,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
		}
		for _, existing := range model.Questions {
			if !keep[existing.ID] {
				if err := tx.Delete(&questionModel{}, "id = ?", existing.ID).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, ErrNotFound)
		return
	case errors.Is(err, ErrSetArchived):
		respondDomainError(w, err)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	set, err := a.gdb.SetByID(r.Context(), setID)
	if err != nil || set == nil {
		respondError(w, http.StatusInternalServerError, errors.New("reload set"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"set": set})
}

func (a *API) handleArchiveSet(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	// Soft archive: the set disappears from the new-send flow while every
	// outstanding token keeps working.
	now := time.Now().UTC()
	result := a.store.ORM.WithContext(ctx).Model(&questionSetModel{}).
		Where("id = ? AND owner_identity_id = ? AND archived_at IS NULL", setID, askerID).
		Updates(map[string]any{"archived_at": now, "updated_at": now})
	if result.Error != nil {
		respondError(w, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondError(w, http.StatusNotFound, ErrNotFound)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"archived": true})
}
