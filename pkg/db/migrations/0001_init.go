package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Identity struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Email            string            `gorm:"type:text;uniqueIndex;not null"`
	Name             string            `gorm:"type:text"`
	Claimed          bool              `gorm:"type:boolean;not null;default:false"`
	ProfileCompleted bool              `gorm:"type:boolean;not null;default:false"`
	Profile          datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt        time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type QuestionSet struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OwnerIdentityID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name            string     `gorm:"type:text;not null"`
	ArchivedAt      *time.Time `gorm:"type:timestamptz"`
	CreatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Owner           Identity   `gorm:"foreignKey:OwnerIdentityID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Question struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey"`
	SetID     uuid.UUID   `gorm:"type:uuid;not null;index"`
	Position  int         `gorm:"type:integer;not null"`
	Text      string      `gorm:"type:text;not null"`
	CreatedAt time.Time   `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time   `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Set       QuestionSet `gorm:"foreignKey:SetID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type QuestionRequest struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey"`
	SetID           uuid.UUID   `gorm:"type:uuid;not null;index"`
	AskerIdentityID uuid.UUID   `gorm:"type:uuid;not null;index"`
	Message         string      `gorm:"type:text"`
	CreatedAt       time.Time   `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Set             QuestionSet `gorm:"foreignKey:SetID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Asker           Identity    `gorm:"foreignKey:AskerIdentityID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Recipient struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RequestID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	SetID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	Email           string          `gorm:"type:text;not null"`
	EmailNormalized string          `gorm:"type:text;not null"`
	Alias           string          `gorm:"type:text"`
	Token           string          `gorm:"type:text;uniqueIndex;not null"`
	IdentityID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Active          bool            `gorm:"type:boolean;not null;default:true"`
	RemindersSent   int             `gorm:"type:integer;not null;default:0"`
	LastReminderAt  *time.Time      `gorm:"type:timestamptz"`
	CreatedAt       time.Time       `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Request         QuestionRequest `gorm:"foreignKey:RequestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Identity        Identity        `gorm:"foreignKey:IdentityID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

type Answer struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RecipientID   uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_answers_recipient_question"`
	QuestionID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_answers_recipient_question"`
	Body          string     `gorm:"type:text"`
	AnswerDate    *time.Time `gorm:"type:date"`
	DatePrecision string     `gorm:"type:text"`
	AnsweredAt    time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt     time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Recipient     Recipient  `gorm:"foreignKey:RecipientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Question      Question   `gorm:"foreignKey:QuestionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type MediaAsset struct {
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
	Answer          Answer            `gorm:"foreignKey:AnswerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Relationship struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	AskerIdentityID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_relationships_pair"`
	RespondentIdentityID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_relationships_pair"`
	CreatedAt            time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Asker                Identity  `gorm:"foreignKey:AskerIdentityID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Respondent           Identity  `gorm:"foreignKey:RespondentIdentityID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type RateCounter struct {
	Key         string    `gorm:"type:text;primaryKey"`
	BucketStart time.Time `gorm:"type:timestamptz;primaryKey"`
	Count       int       `gorm:"type:integer;not null;default:0"`
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&Identity{},
		&QuestionSet{},
		&Question{},
		&QuestionRequest{},
		&Recipient{},
		&Answer{},
		&MediaAsset{},
		&Relationship{},
		&RateCounter{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	for _, c := range []struct {
		model any
		rel   string
	}{
		{&QuestionSet{}, "Owner"},
		{&Question{}, "Set"},
		{&QuestionRequest{}, "Set"},
		{&QuestionRequest{}, "Asker"},
		{&Recipient{}, "Request"},
		{&Recipient{}, "Identity"},
		{&Answer{}, "Recipient"},
		{&Answer{}, "Question"},
		{&MediaAsset{}, "Answer"},
		{&Relationship{}, "Asker"},
		{&Relationship{}, "Respondent"},
	} {
		if err := m.CreateConstraint(c.model, c.rel); err != nil {
			return err
		}
	}

	// One live token per (set, email): only active rows participate, so a
	// deactivated recipient never blocks minting a replacement. Concurrent
	// dispatchers racing on the same pair collide here and the loser retries
	// as a reuse lookup.
	if _, err := tx.ExecContext(ctx, `
		CREATE UNIQUE INDEX idx_recipients_active_dedup
		ON recipients (set_id, email_normalized)
		WHERE active
	`); err != nil {
		return err
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Migrator().DropTable(
		&RateCounter{},
		&Relationship{},
		&MediaAsset{},
		&Answer{},
		&Recipient{},
		&QuestionRequest{},
		&Question{},
		&QuestionSet{},
		&Identity{},
	); err != nil {
		return err
	}

	return nil
}
