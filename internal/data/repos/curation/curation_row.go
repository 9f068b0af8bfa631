package curation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/curation-backend/internal/data/dberr"
	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

// ValidationVerdict is what the validation agent writes back onto a row.
type ValidationVerdict struct {
	Apta              bool
	CoberturaCompleta bool
	Score             int
	Notes             string
	CheckedAt         time.Time
}

type CurationRowRepo interface {
	// InsertBatch writes all rows in a single statement. Either every row is
	// stored or none is.
	InsertBatch(dbc dbctx.Context, rows []*types.CurationRow) error
	ListByCuration(dbc dbctx.Context, curationID uuid.UUID) ([]*types.CurationRow, error)
	// ListForValidation returns rows without a verdict, or every row when
	// includeGraded is set.
	ListForValidation(dbc dbctx.Context, curationID uuid.UUID, includeGraded bool) ([]*types.CurationRow, error)
	CoveredKeys(dbc dbctx.Context, curationID uuid.UUID) (map[types.ComponentKey]bool, error)
	SaveVerdict(dbc dbctx.Context, id uuid.UUID, v ValidationVerdict) error
}

type curationRowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCurationRowRepo(db *gorm.DB, baseLog *logger.Logger) CurationRowRepo {
	return &curationRowRepo{db: db, log: baseLog.With("repo", "CurationRowRepo")}
}

func (r *curationRowRepo) InsertBatch(dbc dbctx.Context, rows []*types.CurationRow) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
	}
	err := dbc.Or(r.db).Create(&rows).Error
	return dberr.Map("insert curation rows", err)
}

func (r *curationRowRepo) ListByCuration(dbc dbctx.Context, curationID uuid.UUID) ([]*types.CurationRow, error) {
	var out []*types.CurationRow
	if curationID == uuid.Nil {
		return out, nil
	}
	err := dbc.Or(r.db).
		Where("curation_id = ?", curationID).
		Order("created_at ASC, lesson_id ASC, component ASC").
		Find(&out).Error
	if err != nil {
		return nil, dberr.Map("list curation rows", err)
	}
	return out, nil
}

func (r *curationRowRepo) ListForValidation(dbc dbctx.Context, curationID uuid.UUID, includeGraded bool) ([]*types.CurationRow, error) {
	var out []*types.CurationRow
	if curationID == uuid.Nil {
		return out, nil
	}
	q := dbc.Or(r.db).Where("curation_id = ?", curationID)
	if !includeGraded {
		q = q.Where("apta IS NULL")
	}
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, dberr.Map("list rows for validation", err)
	}
	return out, nil
}

func (r *curationRowRepo) CoveredKeys(dbc dbctx.Context, curationID uuid.UUID) (map[types.ComponentKey]bool, error) {
	out := map[types.ComponentKey]bool{}
	if curationID == uuid.Nil {
		return out, nil
	}
	var keys []struct {
		LessonID  string
		Component string
	}
	err := dbc.Or(r.db).
		Model(&types.CurationRow{}).
		Select("DISTINCT lesson_id, component").
		Where("curation_id = ?", curationID).
		Scan(&keys).Error
	if err != nil {
		return nil, dberr.Map("covered keys", err)
	}
	for _, k := range keys {
		out[types.ComponentKey{LessonID: k.LessonID, Component: k.Component}] = true
	}
	return out, nil
}

func (r *curationRowRepo) SaveVerdict(dbc dbctx.Context, id uuid.UUID, v ValidationVerdict) error {
	if id == uuid.Nil {
		return nil
	}
	checked := v.CheckedAt
	if checked.IsZero() {
		checked = time.Now().UTC()
	}
	err := dbc.Or(r.db).
		Model(&types.CurationRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"apta":               v.Apta,
			"cobertura_completa": v.CoberturaCompleta,
			"validation_score":   v.Score,
			"notes":              v.Notes,
			"auto_evaluated":     true,
			"last_checked_at":    checked,
		}).Error
	return dberr.Map("save validation verdict", err)
}
