package curation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/gcp"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

// Transcript is the raw record of one rung, kept for auditing.
type Transcript struct {
	CurationID    uuid.UUID            `json:"curation_id"`
	RunID         string               `json:"run_id"`
	Batch         int                  `json:"batch"`
	Recovery      bool                 `json:"recovery"`
	Rung          int                  `json:"rung"`
	Model         string               `json:"model"`
	Temperature   float64              `json:"temperature"`
	Outcome       string               `json:"outcome"`
	Error         string               `json:"error,omitempty"`
	ParseError    string               `json:"parse_error,omitempty"`
	RawText       string               `json:"raw_text"`
	Grounding     []types.GroundingURL `json:"grounding"`
	Rejected      []types.GroundingURL `json:"rejected,omitempty"`
	SearchQueries []string             `json:"search_queries,omitempty"`
	RecordedAt    time.Time            `json:"recorded_at"`
}

func (t Transcript) Key() string {
	round := ""
	if t.Recovery {
		round = "recovery-"
	}
	return fmt.Sprintf("curations/%s/%s/%sbatch-%d-rung-%d.json", t.CurationID, t.RunID, round, t.Batch, t.Rung)
}

type Archiver interface {
	Archive(ctx context.Context, t Transcript)
}

type objectArchiver struct {
	log *logger.Logger
	w   gcp.ObjectWriter
}

// NewArchiver stores transcripts through w. Write failures are logged and
// dropped.
func NewArchiver(log *logger.Logger, w gcp.ObjectWriter) Archiver {
	if w == nil {
		w = gcp.NewNopWriter()
	}
	return &objectArchiver{log: log.With("component", "TranscriptArchiver"), w: w}
}

func (a *objectArchiver) Archive(ctx context.Context, t Transcript) {
	if t.RecordedAt.IsZero() {
		t.RecordedAt = time.Now().UTC()
	}
	if err := a.w.WriteJSON(ctx, t.Key(), t); err != nil {
		a.log.Warn("curation: transcript archive failed", "key", t.Key(), "error", err)
	}
}

func transcriptOf(in BatchInput, res AttemptResult) Transcript {
	t := Transcript{
		CurationID:    in.CurationID,
		RunID:         in.RunID,
		Batch:         in.Number,
		Recovery:      in.Recovery,
		Rung:          res.Rung.Index,
		Model:         res.Rung.Model,
		Temperature:   res.Rung.Temperature,
		Outcome:       res.Outcome.String(),
		RawText:       res.RawText,
		Grounding:     res.Grounding,
		Rejected:      res.Rejected,
		SearchQueries: res.Queries,
	}
	if res.Err != nil {
		t.Error = res.Err.Error()
	}
	if res.ParseErr != nil {
		t.ParseError = res.ParseErr.Error()
	}
	return t
}
