package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/curation-backend/internal/domain"
)

func SeedCuration(tb testing.TB, ctx context.Context, tx *gorm.DB, state string) *types.Curation {
	tb.Helper()
	now := time.Now().UTC()
	c := &types.Curation{
		ID:            uuid.New(),
		State:         state,
		CourseName:    "Estructuras de datos",
		IdeaCentral:   "Aprender estructuras de datos con ejemplos prácticos",
		AttemptNumber: 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed curation: %v", err)
	}
	return c
}

func SeedRow(tb testing.TB, ctx context.Context, tx *gorm.DB, curationID uuid.UUID, lessonID, component string, apta *bool) *types.CurationRow {
	tb.Helper()
	row := &types.CurationRow{
		ID:          uuid.New(),
		CurationID:  curationID,
		LessonID:    lessonID,
		LessonTitle: "Lesson " + lessonID,
		Component:   component,
		SourceRef:   "https://example.edu/" + lessonID + "/" + component,
		SourceTitle: "Source",
		URLStatus:   "verified",
		Apta:        apta,
		Notes:       "google_verified",
		CreatedAt:   time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed curation row: %v", err)
	}
	return row
}
