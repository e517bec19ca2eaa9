package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hearthside/pkg/db"
)

// gormStore adapts the GORM session to the narrow store surfaces consumed
// by the domain services.
type gormStore struct {
	orm *gorm.DB
}

func newGormStore(orm *gorm.DB) *gormStore {
	return &gormStore{orm: orm}
}

func (s *gormStore) SetByID(ctx context.Context, setID uuid.UUID) (*QuestionSet, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var model questionSetModel
	err := s.orm.WithContext(ctx).Preload("Questions").First(&model, "id = ?", setID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	set := model.toAPI()
	return &set, nil
}

func (s *gormStore) ActiveRecipient(ctx context.Context, setID uuid.UUID, emailNormalized string) (*Recipient, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var model recipientModel
	err := s.orm.WithContext(ctx).
		Where("set_id = ? AND email_normalized = ? AND active", setID, emailNormalized).
		First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	rec := model.toAPI()
	return &rec, nil
}

func (s *gormStore) ResolveIdentity(ctx context.Context, email string) (Identity, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	normalized := normalizeEmail(email)
	orm := s.orm.WithContext(ctx)

	var model identityModel
	err := orm.Where("email = ?", normalized).First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		model = identityModel{
			ID:        uuid.New(),
			Email:     normalized,
			CreatedAt: time.Now().UTC(),
		}
		if createErr := orm.Create(&model).Error; createErr != nil {
			if db.IsUniqueViolation(createErr, "") {
				// Concurrent provision: the winner's row is authoritative.
				if err := orm.Where("email = ?", normalized).First(&model).Error; err != nil {
					return Identity{}, err
				}
				return model.toAPI(), nil
			}
			return Identity{}, createErr
		}
		return model.toAPI(), nil
	case err != nil:
		return Identity{}, err
	}
	return model.toAPI(), nil
}

func (s *gormStore) IdentityByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var model identityModel
	err := s.orm.WithContext(ctx).First(&model, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	identity := model.toAPI()
	return &identity, nil
}

func (s *gormStore) CreateRequest(ctx context.Context, req *QuestionRequest) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	model := questionRequestModel{
		ID:              req.ID,
		SetID:           req.SetID,
		AskerIdentityID: req.AskerID,
		Message:         req.Message,
		CreatedAt:       req.CreatedAt,
	}
	return s.orm.WithContext(ctx).Create(&model).Error
}

func (s *gormStore) CreateRecipient(ctx context.Context, rec *Recipient) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	model := recipientModel{
		ID:              rec.ID,
		RequestID:       rec.RequestID,
		SetID:           rec.SetID,
		Email:           rec.Email,
		EmailNormalized: rec.EmailNormalized,
		Alias:           rec.Alias,
		Token:           rec.Token,
		IdentityID:      rec.IdentityID,
		Active:          rec.Active,
		CreatedAt:       rec.CreatedAt,
	}
	// The create runs in its own savepoint so a dedup collision rolls back
	// only this insert, not an enclosing batch transaction.
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		if db.IsUniqueViolation(err, "idx_recipients_active_dedup") {
			return errDuplicateRecipient
		}
		return err
	}
	return nil
}

// InTransaction runs fn against a store bound to a single transaction.
func (s *gormStore) InTransaction(ctx context.Context, fn func(tx dispatchStore) error) error {
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{orm: tx})
	})
}

func (s *gormStore) RecipientByToken(ctx context.Context, token string) (*Recipient, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var model recipientModel
	err := s.orm.WithContext(ctx).Where("token = ? AND active", token).First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	rec := model.toAPI()
	return &rec, nil
}

func (s *gormStore) QuestionsForSet(ctx context.Context, setID uuid.UUID) ([]Question, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var models []questionModel
	if err := s.orm.WithContext(ctx).Where("set_id = ?", setID).Order("position ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	questions := make([]Question, 0, len(models))
	for _, m := range models {
		questions = append(questions, m.toAPI())
	}
	return questions, nil
}

func (s *gormStore) AnswersForRecipient(ctx context.Context, recipientID uuid.UUID) ([]Answer, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var models []answerModel
	if err := s.orm.WithContext(ctx).Preload("Media").Where("recipient_id = ?", recipientID).Find(&models).Error; err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	answers := make([]Answer, 0, len(models))
	for _, m := range models {
		answers = append(answers, m.toAPI(now))
	}
	return answers, nil
}

func (s *gormStore) AnswerFor(ctx context.Context, recipientID, questionID uuid.UUID) (*Answer, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var model answerModel
	err := s.orm.WithContext(ctx).Preload("Media").
		Where("recipient_id = ? AND question_id = ?", recipientID, questionID).
		First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	answer := model.toAPI(time.Now().UTC())
	return &answer, nil
}

func (s *gormStore) SaveAnswer(ctx context.Context, answer *Answer, media []MediaAsset) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := answerModel{
			ID:            answer.ID,
			RecipientID:   answer.RecipientID,
			QuestionID:    answer.QuestionID,
			Body:          answer.Body,
			AnswerDate:    answer.AnswerDate,
			DatePrecision: answer.DatePrecision,
			AnsweredAt:    answer.AnsweredAt,
			UpdatedAt:     answer.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&model).Error; err != nil {
			return err
		}

		for _, asset := range media {
			assetModel := mediaAssetModel{
				ID:              asset.ID,
				AnswerID:        asset.AnswerID,
				RecipientID:     asset.RecipientID,
				OwnerIdentityID: asset.OwnerIdentityID,
				ContentID:       asset.ContentID,
				FileID:          asset.FileID,
				FileName:        asset.FileName,
				ContentType:     asset.ContentType,
				AddressKey:      asset.AddressKey,
				Status:          asset.Status,
				Meta:            toJSONMap(asset.Meta),
				CreatedAt:       asset.CreatedAt,
			}
			if err := tx.Create(&assetModel).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *gormStore) MediaByID(ctx context.Context, recipientID, mediaID uuid.UUID) (*MediaAsset, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var model mediaAssetModel
	err := s.orm.WithContext(ctx).Where("id = ? AND recipient_id = ?", mediaID, recipientID).First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	asset := model.toAPI()
	return &asset, nil
}

func (s *gormStore) MarkMediaUploaded(ctx context.Context, mediaID uuid.UUID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return s.orm.WithContext(ctx).Model(&mediaAssetModel{}).
		Where("id = ?", mediaID).
		Update("status", MediaStatusUploaded).Error
}

func (s *gormStore) Transact(ctx context.Context, fn func(claimStore) error) error {
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{orm: tx})
	})
}

func (s *gormStore) MarkIdentityClaimed(ctx context.Context, id uuid.UUID, name string, profile map[string]any) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	orm := s.orm.WithContext(ctx)

	var model identityModel
	if err := orm.First(&model, "id = ?", id).Error; err != nil {
		return err
	}

	updates := map[string]any{
		"claimed":    true,
		"updated_at": time.Now().UTC(),
	}
	if name != "" {
		updates["name"] = name
		updates["profile_completed"] = true
	}
	if len(profile) > 0 {
		merged := mapFromJSONMap(model.Profile)
		for k, v := range profile {
			merged[k] = v
		}
		updates["profile"] = toJSONMap(merged)
	}

	return orm.Model(&model).Updates(updates).Error
}

func (s *gormStore) RepointRecipient(ctx context.Context, recipientID, identityID uuid.UUID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return s.orm.WithContext(ctx).Model(&recipientModel{}).
		Where("id = ?", recipientID).
		Updates(map[string]any{
			"identity_id": identityID,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (s *gormStore) AskerForRequest(ctx context.Context, requestID uuid.UUID) (uuid.UUID, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var model questionRequestModel
	if err := s.orm.WithContext(ctx).First(&model, "id = ?", requestID).Error; err != nil {
		return uuid.Nil, err
	}
	return model.AskerIdentityID, nil
}

func (s *gormStore) EnsureRelationship(ctx context.Context, askerID, respondentID uuid.UUID) (Relationship, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	orm := s.orm.WithContext(ctx)

	var existing relationshipModel
	err := orm.Where("asker_identity_id = ? AND respondent_identity_id = ?", askerID, respondentID).First(&existing).Error
	switch {
	case err == nil:
		return existing.toAPI(), false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Relationship{}, false, err
	}

	model := relationshipModel{
		ID:                   uuid.New(),
		AskerIdentityID:      askerID,
		RespondentIdentityID: respondentID,
		CreatedAt:            time.Now().UTC(),
	}
	if createErr := orm.Create(&model).Error; createErr != nil {
		if db.IsUniqueViolation(createErr, "idx_relationships_pair") {
			if err := orm.Where("asker_identity_id = ? AND respondent_identity_id = ?", askerID, respondentID).First(&existing).Error; err != nil {
				return Relationship{}, false, err
			}
			return existing.toAPI(), false, nil
		}
		return Relationship{}, false, createErr
	}
	return model.toAPI(), true, nil
}

// reminderCandidateRow is the flat scan target for the sweep query.
type reminderCandidateRow struct {
	recipientModel
	RequestCreatedAt time.Time
	AskerIdentityID  uuid.UUID
}

func (s *gormStore) DueReminders(ctx context.Context, now time.Time, interval time.Duration) ([]ReminderCandidate, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows []reminderCandidateRow
	err := s.orm.WithContext(ctx).
		Table("recipients").
		Select("recipients.*, question_requests.created_at AS request_created_at, question_requests.asker_identity_id").
		Joins("JOIN question_requests ON question_requests.id = recipients.request_id").
		Where("recipients.active").
		Where("recipients.reminders_sent < ?", reminderMaxCount).
		Where("question_requests.created_at <= ?", now.Add(-reminderMinAge)).
		Where("NOT EXISTS (SELECT 1 FROM answers WHERE answers.recipient_id = recipients.id)").
		Where("recipients.last_reminder_at IS NULL OR recipients.last_reminder_at < ?", now.Add(-interval)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]ReminderCandidate, 0, len(rows))
	for _, row := range rows {
		candidate, err := s.buildCandidate(ctx, row)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func (s *gormStore) CandidateByID(ctx context.Context, recipientID uuid.UUID) (*ReminderCandidate, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var row reminderCandidateRow
	err := s.orm.WithContext(ctx).
		Table("recipients").
		Select("recipients.*, question_requests.created_at AS request_created_at, question_requests.asker_identity_id").
		Joins("JOIN question_requests ON question_requests.id = recipients.request_id").
		Where("recipients.id = ?", recipientID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}

	candidate, err := s.buildCandidate(ctx, row)
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

func (s *gormStore) buildCandidate(ctx context.Context, row reminderCandidateRow) (ReminderCandidate, error) {
	var answerCount int64
	if err := s.orm.WithContext(ctx).Model(&answerModel{}).
		Where("recipient_id = ?", row.ID).
		Count(&answerCount).Error; err != nil {
		return ReminderCandidate{}, err
	}

	answered := make(map[uuid.UUID]bool)
	if answerCount > 0 {
		var answeredIDs []uuid.UUID
		if err := s.orm.WithContext(ctx).Model(&answerModel{}).
			Where("recipient_id = ?", row.ID).
			Pluck("question_id", &answeredIDs).Error; err != nil {
			return ReminderCandidate{}, err
		}
		for _, id := range answeredIDs {
			answered[id] = true
		}
	}

	questions, err := s.QuestionsForSet(ctx, row.SetID)
	if err != nil {
		return ReminderCandidate{}, err
	}
	remaining := make([]string, 0, len(questions))
	for _, q := range questions {
		if !answered[q.ID] {
			remaining = append(remaining, q.Text)
		}
	}

	return ReminderCandidate{
		Recipient:          row.recipientModel.toAPI(),
		RequestCreatedAt:   row.RequestCreatedAt,
		AskerID:            row.AskerIdentityID,
		AnswerCount:        int(answerCount),
		RemainingQuestions: remaining,
	}, nil
}

func (s *gormStore) ClaimReminder(ctx context.Context, recipientID uuid.UUID, expectedCount int, staleBefore time.Time) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result := s.orm.WithContext(ctx).Model(&recipientModel{}).
		Where("id = ? AND reminders_sent = ? AND (last_reminder_at IS NULL OR last_reminder_at < ?)",
			recipientID, expectedCount, staleBefore).
		Updates(map[string]any{
			"reminders_sent":   expectedCount + 1,
			"last_reminder_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *gormStore) RevertReminder(ctx context.Context, recipientID uuid.UUID, lastReminderAt *time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return s.orm.WithContext(ctx).Model(&recipientModel{}).
		Where("id = ? AND reminders_sent > 0", recipientID).
		Updates(map[string]any{
			"reminders_sent":   gorm.Expr("reminders_sent - 1"),
			"last_reminder_at": lastReminderAt,
		}).Error
}
