package api

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type questionSetModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OwnerIdentityID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name            string     `gorm:"type:text;not null"`
	ArchivedAt      *time.Time `gorm:"type:timestamptz"`
	CreatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`

	Questions []questionModel `gorm:"foreignKey:SetID;references:ID"`
}

func (questionSetModel) TableName() string { return "question_sets" }

func (m questionSetModel) toAPI() QuestionSet {
	questions := make([]Question, 0, len(m.Questions))
	for _, q := range m.Questions {
		questions = append(questions, q.toAPI())
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Position < questions[j].Position })

	return QuestionSet{
		ID:         m.ID,
		OwnerID:    m.OwnerIdentityID,
		Name:       m.Name,
		Questions:  questions,
		ArchivedAt: m.ArchivedAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

type questionModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SetID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Position  int       `gorm:"type:integer;not null"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (questionModel) TableName() string { return "questions" }

func (m questionModel) toAPI() Question {
	return Question{
		ID:       m.ID,
		SetID:    m.SetID,
		Position: m.Position,
		Text:     m.Text,
	}
}
