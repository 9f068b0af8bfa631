package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/curation-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// DefaultPlanPrompt is seeded into system_prompts when the CURATION_PLAN row
// does not exist yet.
const DefaultPlanPrompt = `Eres un curador experto de recursos educativos. Para cada lección y componente solicitado, ` +
	`busca en la web con la herramienta de búsqueda y propone UNA fuente pública, estable y de alta calidad ` +
	`(documentación oficial, universidades, artículos técnicos reconocidos). Nunca inventes URLs.`

const DefaultValidatePrompt = `Eres un revisor pedagógico. Evalúa si la fuente es adecuada para el componente ` +
	`de la lección indicada. Responde solo con JSON.`

// SeedDefaults inserts the settings row and the system prompts when missing.
// Existing rows are left untouched.
func SeedDefaults(db *gorm.DB) error {
	now := time.Now().UTC()
	settings := &types.CurationSettings{
		ID:            1,
		ModelName:     "gemini-2.5-flash",
		FallbackModel: "gemini-2.5-pro",
		Temperature:   0.7,
		ThinkingLevel: "medium",
		UpdatedAt:     now,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(settings).Error; err != nil {
		return fmt.Errorf("seed curation_settings: %w", err)
	}
	prompts := []*types.SystemPrompt{
		{ID: uuid.New(), Code: "CURATION_PLAN", Content: DefaultPlanPrompt, UpdatedAt: now},
		{ID: uuid.New(), Code: "CURATION_VALIDATE", Content: DefaultValidatePrompt, UpdatedAt: now},
	}
	if err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).Create(&prompts).Error; err != nil {
		return fmt.Errorf("seed system_prompts: %w", err)
	}
	return nil
}
