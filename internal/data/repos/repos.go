package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/curation-backend/internal/data/repos/curation"
	"github.com/yungbote/curation-backend/internal/data/repos/jobs"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

type CurationRepo = curation.CurationRepo
type CurationRowRepo = curation.CurationRowRepo
type SettingsRepo = curation.SettingsRepo
type SystemPromptRepo = curation.SystemPromptRepo
type ValidationVerdict = curation.ValidationVerdict

type JobRunRepo = jobs.JobRunRepo

type Repos struct {
	Curation     CurationRepo
	CurationRow  CurationRowRepo
	Settings     SettingsRepo
	SystemPrompt SystemPromptRepo
	JobRun       JobRunRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Curation:     curation.NewCurationRepo(db, log),
		CurationRow:  curation.NewCurationRowRepo(db, log),
		Settings:     curation.NewSettingsRepo(db, log),
		SystemPrompt: curation.NewSystemPromptRepo(db, log),
		JobRun:       jobs.NewJobRunRepo(db, log),
	}
}
