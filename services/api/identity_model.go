package api

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type identityModel struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Email            string            `gorm:"type:text;uniqueIndex;not null"`
	Name             string            `gorm:"type:text"`
	Claimed          bool              `gorm:"type:boolean;not null;default:false"`
	ProfileCompleted bool              `gorm:"type:boolean;not null;default:false"`
	Profile          datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt        time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (identityModel) TableName() string { return "identities" }

func (m identityModel) toAPI() Identity {
	return Identity{
		ID:               m.ID,
		Email:            m.Email,
		Name:             m.Name,
		Claimed:          m.Claimed,
		ProfileCompleted: m.ProfileCompleted,
		Profile:          mapFromJSONMap(m.Profile),
		CreatedAt:        m.CreatedAt,
	}
}

type relationshipModel struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	AskerIdentityID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_relationships_pair"`
	RespondentIdentityID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_relationships_pair"`
	CreatedAt            time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (relationshipModel) TableName() string { return "relationships" }

func (m relationshipModel) toAPI() Relationship {
	return Relationship{
		ID:           m.ID,
		AskerID:      m.AskerIdentityID,
		RespondentID: m.RespondentIdentityID,
		CreatedAt:    m.CreatedAt,
	}
}
