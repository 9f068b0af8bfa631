package curation

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/curation-backend/internal/data/dberr"
	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

const settingsRowID = 1

type SettingsRepo interface {
	// Get returns row 1 of curation_settings, or nil when it was never written.
	Get(dbc dbctx.Context) (*types.CurationSettings, error)
}

type settingsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSettingsRepo(db *gorm.DB, baseLog *logger.Logger) SettingsRepo {
	return &settingsRepo{db: db, log: baseLog.With("repo", "SettingsRepo")}
}

func (r *settingsRepo) Get(dbc dbctx.Context) (*types.CurationSettings, error) {
	var s types.CurationSettings
	err := dbc.Or(r.db).Where("id = ?", settingsRowID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dberr.Map("get curation settings", err)
	}
	return &s, nil
}
