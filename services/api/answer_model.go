package api

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type answerModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RecipientID   uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_answers_recipient_question"`
	QuestionID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_answers_recipient_question"`
	Body          string     `gorm:"type:text"`
	AnswerDate    *time.Time `gorm:"type:date"`
	DatePrecision string     `gorm:"type:text"`
	AnsweredAt    time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt     time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`

	Media []mediaAssetModel `gorm:"foreignKey:AnswerID;references:ID"`
}

func (answerModel) TableName() string { return "answers" }

func (m answerModel) toAPI(now time.Time) Answer {
	media := make([]MediaAsset, 0, len(m.Media))
	for _, asset := range m.Media {
		media = append(media, asset.toAPI())
	}

	return Answer{
		ID:            m.ID,
		RecipientID:   m.RecipientID,
		QuestionID:    m.QuestionID,
		Body:          m.Body,
		AnswerDate:    m.AnswerDate,
		DatePrecision: m.DatePrecision,
		Media:         media,
		AnsweredAt:    m.AnsweredAt,
		UpdatedAt:     m.UpdatedAt,
		Editable:      editableAt(m.AnsweredAt, now),
	}
}

type mediaAssetModel struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey"`
	AnswerID        uuid.UUID         `gorm:"type:uuid;not null;index"`
	RecipientID     uuid.UUID         `gorm:"type:uuid;not null;index"`
	OwnerIdentityID uuid.UUID         `gorm:"type:uuid;not null"`
	ContentID       uuid.UUID         `gorm:"type:uuid;not null"`
	FileID          uuid.UUID         `gorm:"type:uuid;not null"`
	FileName        string            `gorm:"type:text"`
	ContentType     string            `gorm:"type:text"`
	AddressKey      string            `gorm:"type:text;uniqueIndex;not null"`
	Status          string            `gorm:"type:text;not null;default:'pending'"`
	Meta            datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (mediaAssetModel) TableName() string { return "media_assets" }

func (m mediaAssetModel) toAPI() MediaAsset {
	return MediaAsset{
		ID:              m.ID,
		AnswerID:        m.AnswerID,
		RecipientID:     m.RecipientID,
		OwnerIdentityID: m.OwnerIdentityID,
		ContentID:       m.ContentID,
		FileID:          m.FileID,
		FileName:        m.FileName,
		ContentType:     m.ContentType,
		AddressKey:      m.AddressKey,
		Status:          m.Status,
		Meta:            mapFromJSONMap(m.Meta),
		CreatedAt:       m.CreatedAt,
	}
}
