package api

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// SeedCatalog is the on-disk format for starter question sets.
type SeedCatalog struct {
	Sets []SeedSet `yaml:"sets"`
}

// SeedSet is one starter set: a name plus its ordered question texts.
type SeedSet struct {
	Name      string   `yaml:"name"`
	Questions []string `yaml:"questions"`
}

// SeedStarterSets loads a YAML catalog of starter question sets and creates
// any set the owner does not already have, matched by name. Existing sets are
// left untouched, so re-running the seed is safe. It returns the number of
// sets created.
func SeedStarterSets(ctx context.Context, orm *gorm.DB, ownerID uuid.UUID, r io.Reader) (int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	var catalog SeedCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return 0, fmt.Errorf("parse seed catalog: %w", err)
	}
	if len(catalog.Sets) == 0 {
		return 0, fmt.Errorf("seed catalog contains no sets")
	}

	for i, set := range catalog.Sets {
		if strings.TrimSpace(set.Name) == "" {
			return 0, fmt.Errorf("seed set %d: name is required", i)
		}
		if len(set.Questions) < minQuestionsPerSet || len(set.Questions) > maxQuestionsPerSet {
			return 0, fmt.Errorf("seed set %q: a set carries between %d and %d questions",
				set.Name, minQuestionsPerSet, maxQuestionsPerSet)
		}
		for _, text := range set.Questions {
			if strings.TrimSpace(text) == "" {
				return 0, fmt.Errorf("seed set %q: question text is required", set.Name)
			}
		}
	}

	created := 0
	err = orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, set := range catalog.Sets {
			name := strings.TrimSpace(set.Name)

			var count int64
			if err := tx.Model(&questionSetModel{}).
				Where("owner_identity_id = ? AND name = ?", ownerID, name).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			now := time.Now().UTC()
			model := questionSetModel{
				ID:              uuid.New(),
				OwnerIdentityID: ownerID,
				Name:            name,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			for pos, text := range set.Questions {
				model.Questions = append(model.Questions, questionModel{
					ID:        uuid.New(),
					SetID:     model.ID,
					Position:  pos,
					Text:      strings.TrimSpace(text),
					CreatedAt: now,
					UpdatedAt: now,
				})
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
