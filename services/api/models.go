package api

import (
	"time"

	"github.com/google/uuid"
)

// Identity is an account record. Recipients are bound to an identity at
// dispatch time; authentication later flips Claimed but never rewrites what
// was stored under the identity.
type Identity struct {
	ID               uuid.UUID      `json:"id"`
	Email            string         `json:"email"`
	Name             string         `json:"name,omitempty"`
	Claimed          bool           `json:"claimed"`
	ProfileCompleted bool           `json:"profile_completed"`
	Profile          map[string]any `json:"profile,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// QuestionSet is a named, ordered collection of questions owned by one user.
type QuestionSet struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	Name       string     `json:"name"`
	Questions  []Question `json:"questions"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Question is one prompt within a set, ordered by Position.
type Question struct {
	ID       uuid.UUID `json:"id"`
	SetID    uuid.UUID `json:"set_id"`
	Position int       `json:"position"`
	Text     string    `json:"text"`
}

// QuestionRequest is one send event of a set. Immutable once created.
type QuestionRequest struct {
	ID        uuid.UUID `json:"id"`
	SetID     uuid.UUID `json:"set_id"`
	AskerID   uuid.UUID `json:"asker_id"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recipient is one person's participation in one send event. The token is
// the sole credential for the answer surface.
type Recipient struct {
	ID              uuid.UUID  `json:"id"`
	RequestID       uuid.UUID  `json:"request_id"`
	SetID           uuid.UUID  `json:"set_id"`
	Email           string     `json:"email"`
	EmailNormalized string     `json:"-"`
	Alias           string     `json:"alias,omitempty"`
	Token           string     `json:"-"`
	IdentityID      uuid.UUID  `json:"identity_id"`
	Active          bool       `json:"active"`
	RemindersSent   int        `json:"reminders_sent"`
	LastReminderAt  *time.Time `json:"last_reminder_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Date precision markers carried alongside an answer's date value.
const (
	PrecisionExact  = "exact"
	PrecisionMonth  = "month"
	PrecisionYear   = "year"
	PrecisionDecade = "decade"
)

// Answer is one response to one question, scoped to one recipient.
// AnsweredAt is set on first submission only; edits never refresh it.
type Answer struct {
	ID            uuid.UUID    `json:"id"`
	RecipientID   uuid.UUID    `json:"recipient_id"`
	QuestionID    uuid.UUID    `json:"question_id"`
	Body          string       `json:"body"`
	AnswerDate    *time.Time   `json:"answer_date,omitempty"`
	DatePrecision string       `json:"date_precision,omitempty"`
	Media         []MediaAsset `json:"media,omitempty"`
	AnsweredAt    time.Time    `json:"answered_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	Editable      bool         `json:"editable"`
}

// Media processing states.
const (
	MediaStatusPending  = "pending"
	MediaStatusUploaded = "uploaded"
)

// MediaAsset records one uploaded file. OwnerIdentityID is fixed at store
// time and resolution always goes through the persisted AddressKey.
type MediaAsset struct {
	ID              uuid.UUID      `json:"id"`
	AnswerID        uuid.UUID      `json:"answer_id"`
	RecipientID     uuid.UUID      `json:"recipient_id"`
	OwnerIdentityID uuid.UUID      `json:"-"`
	ContentID       uuid.UUID      `json:"content_id"`
	FileID          uuid.UUID      `json:"file_id"`
	FileName        string         `json:"file_name,omitempty"`
	ContentType     string         `json:"content_type,omitempty"`
	AddressKey      string         `json:"-"`
	Status          string         `json:"status"`
	Meta            map[string]any `json:"meta,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Relationship links an asker with an identified respondent. Stored once per
// pair and treated as symmetric.
type Relationship struct {
	ID           uuid.UUID `json:"id"`
	AskerID      uuid.UUID `json:"asker_id"`
	RespondentID uuid.UUID `json:"respondent_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Per-recipient completion states reported by the aggregation views.
const (
	StatusNone     = "none"
	StatusPartial  = "partial"
	StatusComplete = "complete"
)

// SetSummary is one row of the unified dashboard: totals across every send
// event ever created from the set.
type SetSummary struct {
	Set                QuestionSet `json:"set"`
	TotalRecipients    int         `json:"total_recipients"`
	AnsweredRecipients int         `json:"answered_recipients"`
	LastActivityAt     *time.Time  `json:"last_activity_at,omitempty"`
	TotalQuestions     int         `json:"total_questions"`
}

// RequestGroup is the drill-down view: recipients grouped by send event.
type RequestGroup struct {
	Request    QuestionRequest   `json:"request"`
	Recipients []RecipientStatus `json:"recipients"`
}

// RecipientStatus carries one recipient's progress within a send event.
type RecipientStatus struct {
	Recipient     Recipient `json:"recipient"`
	DisplayName   string    `json:"display_name"`
	AnsweredCount int       `json:"answered_count"`
	TotalCount    int       `json:"total_count"`
	Status        string    `json:"status"`
}
