package curation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/curation-backend/internal/data/dberr"
	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

type CurationRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Curation, error)
	// MarkGenerating creates the record when missing and moves it to
	// PHASE2_GENERATING, refreshing the run inputs.
	MarkGenerating(dbc dbctx.Context, c *types.Curation) error
	// Finish sets the terminal state of a run.
	Finish(dbc dbctx.Context, id uuid.UUID, state string, totalInserted int, lastErr string) error
}

type curationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCurationRepo(db *gorm.DB, baseLog *logger.Logger) CurationRepo {
	return &curationRepo{db: db, log: baseLog.With("repo", "CurationRepo")}
}

func (r *curationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Curation, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var c types.Curation
	err := dbc.Or(r.db).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dberr.Map("get curation", err)
	}
	return &c, nil
}

func (r *curationRepo) MarkGenerating(dbc dbctx.Context, c *types.Curation) error {
	if c == nil || c.ID == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.State = types.StateGenerating
	c.LastError = ""
	if c.AttemptNumber <= 0 {
		c.AttemptNumber = 1
	}
	err := dbc.Or(r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"state",
			"attempt_number",
			"total_components",
			"course_name",
			"idea_central",
			"last_error",
			"updated_at",
		}),
	}).Create(c).Error
	return dberr.Map("mark curation generating", err)
}

func (r *curationRepo) Finish(dbc dbctx.Context, id uuid.UUID, state string, totalInserted int, lastErr string) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"state":          state,
		"total_inserted": totalInserted,
		"last_error":     lastErr,
		"updated_at":     now,
	}
	if state == types.StateGenerated {
		updates["generated_at"] = now
	}
	err := dbc.Or(r.db).Model(&types.Curation{}).Where("id = ?", id).Updates(updates).Error
	return dberr.Map("finish curation", err)
}
