package curation

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/curation-backend/internal/data/dberr"
	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

type SystemPromptRepo interface {
	GetByCode(dbc dbctx.Context, code string) (*types.SystemPrompt, error)
}

type systemPromptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSystemPromptRepo(db *gorm.DB, baseLog *logger.Logger) SystemPromptRepo {
	return &systemPromptRepo{db: db, log: baseLog.With("repo", "SystemPromptRepo")}
}

func (r *systemPromptRepo) GetByCode(dbc dbctx.Context, code string) (*types.SystemPrompt, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var p types.SystemPrompt
	err := dbc.Or(r.db).Where("code = ?", code).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dberr.Map("get system prompt", err)
	}
	return &p, nil
}
