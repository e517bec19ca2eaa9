package api

import (
	"time"

	"github.com/google/uuid"
)

type questionRequestModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	SetID           uuid.UUID `gorm:"type:uuid;not null;index"`
	AskerIdentityID uuid.UUID `gorm:"type:uuid;not null;index"`
	Message         string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (questionRequestModel) TableName() string { return "question_requests" }

func (m questionRequestModel) toAPI() QuestionRequest {
	return QuestionRequest{
		ID:        m.ID,
		SetID:     m.SetID,
		AskerID:   m.AskerIdentityID,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
}

type recipientModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RequestID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	SetID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	Email           string     `gorm:"type:text;not null"`
	EmailNormalized string     `gorm:"type:text;not null"`
	Alias           string     `gorm:"type:text"`
	Token           string     `gorm:"type:text;uniqueIndex;not null"`
	IdentityID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Active          bool       `gorm:"type:boolean;not null;default:true"`
	RemindersSent   int        `gorm:"type:integer;not null;default:0"`
	LastReminderAt  *time.Time `gorm:"type:timestamptz"`
	CreatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (recipientModel) TableName() string { return "recipients" }

func (m recipientModel) toAPI() Recipient {
	return Recipient{
		ID:              m.ID,
		RequestID:       m.RequestID,
		SetID:           m.SetID,
		Email:           m.Email,
		EmailNormalized: m.EmailNormalized,
		Alias:           m.Alias,
		Token:           m.Token,
		IdentityID:      m.IdentityID,
		Active:          m.Active,
		RemindersSent:   m.RemindersSent,
		LastReminderAt:  m.LastReminderAt,
		CreatedAt:       m.CreatedAt,
	}
}
