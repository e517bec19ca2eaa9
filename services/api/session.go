package api

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// editWindow is the fixed period after first answering during which a
// respondent may revise an answer. Expiry is computed from the original
// submission, never from later edits, and never depends on identity state.
const editWindow = 7 * 24 * time.Hour

// editableAt reports whether an answer first submitted at answeredAt may
// still be edited at now.
func editableAt(answeredAt, now time.Time) bool {
	return now.Sub(answeredAt) < editWindow
}

func validPrecision(p string) bool {
	switch p {
	case PrecisionExact, PrecisionMonth, PrecisionYear, PrecisionDecade:
		return true
	default:
		return false
	}
}

// OutstandingQuestion pairs a question with the current answer, if any, so
// callers can render submitted answers read-only or editable instead of
// hiding them.
type OutstandingQuestion struct {
	Question Question `json:"question"`
	Answer   *Answer  `json:"answer,omitempty"`
}

// MediaInput describes one file the respondent intends to attach.
type MediaInput struct {
	FileName    string         `json:"file_name"`
	ContentType string         `json:"content_type"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// SubmitInput is the inbound answer payload.
type SubmitInput struct {
	Body          string       `json:"body"`
	AnswerDate    *time.Time   `json:"answer_date,omitempty"`
	DatePrecision string       `json:"date_precision,omitempty"`
	Media         []MediaInput `json:"media,omitempty"`
}

// MediaUpload pairs a registered asset with its presigned upload URL.
type MediaUpload struct {
	Asset     MediaAsset `json:"asset"`
	UploadURL string     `json:"upload_url"`
}

// SubmitResult is the outcome of one answer submission.
type SubmitResult struct {
	Answer  Answer        `json:"answer"`
	Uploads []MediaUpload `json:"uploads,omitempty"`
}

// MediaStatusResult reports an asset's processing state plus a resolve URL
// once the bytes are present.
type MediaStatusResult struct {
	Asset      MediaAsset `json:"asset"`
	ResolveURL string     `json:"resolve_url,omitempty"`
}

// sessionStore is the persistence surface of the token-scoped session.
type sessionStore interface {
	// RecipientByToken returns the active recipient holding the token, or
	// nil when the token is unknown or deactivated.
	RecipientByToken(ctx context.Context, token string) (*Recipient, error)
	QuestionsForSet(ctx context.Context, setID uuid.UUID) ([]Question, error)
	AnswersForRecipient(ctx context.Context, recipientID uuid.UUID) ([]Answer, error)
	AnswerFor(ctx context.Context, recipientID, questionID uuid.UUID) (*Answer, error)
	// SaveAnswer persists the answer and its new media rows in one
	// transaction; a failure leaves no partial answer behind.
	SaveAnswer(ctx context.Context, answer *Answer, media []MediaAsset) error
	MediaByID(ctx context.Context, recipientID, mediaID uuid.UUID) (*MediaAsset, error)
	MarkMediaUploaded(ctx context.Context, mediaID uuid.UUID) error
}

// Session is the token-scoped answer surface. It is stateless between
// calls; the token is the only credential.
type Session struct {
	store sessionStore
	media *MediaService
	now   func() time.Time
}

// NewSession constructs a Session bound to the provided store and media
// service.
func NewSession(store sessionStore, media *MediaService) *Session {
	return &Session{
		store: store,
		media: media,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Session) recipient(ctx context.Context, token string) (*Recipient, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	rec, err := s.store.RecipientByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Active {
		return nil, ErrInvalidToken
	}
	return rec, nil
}

// Outstanding returns every question in the originating set with the
// current answer attached where one exists.
func (s *Session) Outstanding(ctx context.Context, token string) (*Recipient, []OutstandingQuestion, error) {
	rec, err := s.recipient(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	questions, err := s.store.QuestionsForSet(ctx, rec.SetID)
	if err != nil {
		return nil, nil, err
	}
	answers, err := s.store.AnswersForRecipient(ctx, rec.ID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	byQuestion := make(map[uuid.UUID]*Answer, len(answers))
	for i := range answers {
		answers[i].Editable = editableAt(answers[i].AnsweredAt, now)
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	out := make([]OutstandingQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, OutstandingQuestion{Question: q, Answer: byQuestion[q.ID]})
	}
	return rec, out, nil
}

// Submit creates or overwrites the answer for (recipient, question). An
// existing answer outside the edit window is rejected with
// ErrEditWindowClosed; reads remain available.
func (s *Session) Submit(ctx context.Context, token string, questionID uuid.UUID, input SubmitInput) (*SubmitResult, error) {
	rec, err := s.recipient(ctx, token)
	if err != nil {
		return nil, err
	}

	questions, err := s.store.QuestionsForSet(ctx, rec.SetID)
	if err != nil {
		return nil, err
	}
	var question *Question
	for i := range questions {
		if questions[i].ID == questionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return nil, ErrNotFound
	}

	precision := input.DatePrecision
	if input.AnswerDate != nil && precision == "" {
		precision = PrecisionExact
	}
	if precision != "" && !validPrecision(precision) {
		return nil, &ValidationError{Rows: []RowError{{Index: 0, Reason: "unknown date precision"}}}
	}

	now := s.now()
	existing, err := s.store.AnswerFor(ctx, rec.ID, questionID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !editableAt(existing.AnsweredAt, now) {
		return nil, ErrEditWindowClosed
	}

	answer := Answer{
		ID:            uuid.New(),
		RecipientID:   rec.ID,
		QuestionID:    questionID,
		Body:          input.Body,
		AnswerDate:    input.AnswerDate,
		DatePrecision: precision,
		AnsweredAt:    now,
		UpdatedAt:     now,
	}
	if existing != nil {
		// Edits keep the original identity of the answer: same row, same
		// answered-at, so the window keeps counting from first submission.
		answer.ID = existing.ID
		answer.AnsweredAt = existing.AnsweredAt
	}

	// Media is keyed by the recipient's bound identity, not by any other
	// identity in scope at call time.
	assets := make([]MediaAsset, 0, len(input.Media))
	for _, m := range input.Media {
		fileID := uuid.New()
		assets = append(assets, MediaAsset{
			ID:              uuid.New(),
			AnswerID:        answer.ID,
			RecipientID:     rec.ID,
			OwnerIdentityID: rec.IdentityID,
			ContentID:       answer.ID,
			FileID:          fileID,
			FileName:        m.FileName,
			ContentType:     m.ContentType,
			AddressKey:      mediaAddressKey(rec.IdentityID, answer.ID, fileID),
			Status:          MediaStatusPending,
			Meta:            m.Meta,
			CreatedAt:       now,
		})
	}

	// Presign before persisting so an addressing failure leaves no partial
	// answer record.
	uploads := make([]MediaUpload, 0, len(assets))
	for _, asset := range assets {
		url, err := s.media.UploadURL(ctx, asset)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, MediaUpload{Asset: asset, UploadURL: url})
	}

	if err := s.store.SaveAnswer(ctx, &answer, assets); err != nil {
		return nil, err
	}

	answer.Media = assets
	answer.Editable = editableAt(answer.AnsweredAt, now)
	return &SubmitResult{Answer: answer, Uploads: uploads}, nil
}

// ReadAnswer returns the stored answer for (recipient, question), if any.
// Reading stays available after the edit window closes.
func (s *Session) ReadAnswer(ctx context.Context, token string, questionID uuid.UUID) (*Answer, error) {
	rec, err := s.recipient(ctx, token)
	if err != nil {
		return nil, err
	}
	answer, err := s.store.AnswerFor(ctx, rec.ID, questionID)
	if err != nil {
		return nil, err
	}
	if answer != nil {
		answer.Editable = editableAt(answer.AnsweredAt, s.now())
	}
	return answer, nil
}

// MediaStatus reports an asset's state, lazily flipping pending assets to
// uploaded once the bytes are present, and resolves a viewing URL through
// the persisted address key.
func (s *Session) MediaStatus(ctx context.Context, token string, mediaID uuid.UUID) (*MediaStatusResult, error) {
	rec, err := s.recipient(ctx, token)
	if err != nil {
		return nil, err
	}

	asset, err := s.store.MediaByID(ctx, rec.ID, mediaID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrNotFound
	}

	if asset.Status == MediaStatusPending {
		present, err := s.media.Uploaded(ctx, *asset)
		if err != nil {
			return nil, err
		}
		if present {
			if err := s.store.MarkMediaUploaded(ctx, asset.ID); err != nil {
				return nil, err
			}
			asset.Status = MediaStatusUploaded
		}
	}

	result := &MediaStatusResult{Asset: *asset}
	if asset.Status == MediaStatusUploaded {
		url, err := s.media.ResolveURL(ctx, *asset)
		if err != nil {
			return nil, err
		}
		result.ResolveURL = url
	}
	return result, nil
}
