package curation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/curation-backend/internal/data/db"
	"github.com/yungbote/curation-backend/internal/data/repos"
	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/observability"
	"github.com/yungbote/curation-backend/internal/platform/apierr"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/platform/logger"
	"github.com/yungbote/curation-backend/internal/platform/webfetch"
)

// Grader returns a JSON object matching schema. Both the Gemini and the
// OpenAI clients satisfy it.
type Grader interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

type PageFetcher interface {
	Read(ctx context.Context, rawURL string) (*webfetch.Page, error)
}

var gradeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"relevance":        map[string]any{"type": "integer"},
		"depth":            map[string]any{"type": "integer"},
		"quality":          map[string]any{"type": "integer"},
		"applicability":    map[string]any{"type": "integer"},
		"feedback":         map[string]any{"type": "string"},
		"covers_component": map[string]any{"type": "boolean"},
	},
	"required":             []string{"relevance", "depth", "quality", "applicability", "feedback", "covers_component"},
	"additionalProperties": false,
}

type ValidateInput struct {
	CurationID  uuid.UUID
	Revalidate  bool
	Concurrency int
}

type ValidationSummary struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Errors   int `json:"errors"`
}

// Grade is the parsed grader answer for one row.
type Grade struct {
	Relevance       int
	Depth           int
	Quality         int
	Applicability   int
	Feedback        string
	CoversComponent bool
}

func (g Grade) Average() int {
	return int(math.Round(float64(g.Relevance+g.Depth+g.Quality+g.Applicability) / 4))
}

type ValidationDeps struct {
	Log     *logger.Logger
	Config  ValidationConfig
	Rows    repos.CurationRowRepo
	Prompts repos.SystemPromptRepo
	Pages   PageFetcher
	Grader  Grader
	Metrics *observability.Metrics
}

type ValidationAgent struct {
	log  *logger.Logger
	deps ValidationDeps
	now  func() time.Time
}

func NewValidationAgent(deps ValidationDeps) *ValidationAgent {
	return &ValidationAgent{
		log:  deps.Log.With("component", "ValidationAgent"),
		deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Run grades the curation's rows in groups of Concurrency. Each group is
// awaited before the next starts. Per-row failures are counted, not
// returned.
func (a *ValidationAgent) Run(ctx context.Context, in ValidateInput, progress ProgressFunc) (*ValidationSummary, error) {
	if in.CurationID == uuid.Nil {
		return nil, fmt.Errorf("curationId required: %w", apierr.ErrInvalidArgument)
	}
	if progress == nil {
		progress = func(string, int, string) {}
	}
	conc := in.Concurrency
	if conc <= 0 {
		conc = a.deps.Config.Concurrency
	}
	if conc <= 0 {
		conc = 3
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := a.deps.Rows.ListForValidation(dbc, in.CurationID, in.Revalidate)
	if err != nil {
		return nil, fmt.Errorf("list rows for validation: %w", err)
	}
	system := db.DefaultValidatePrompt
	if p, err := a.deps.Prompts.GetByCode(dbc, types.PromptCodeValidate); err != nil {
		a.log.Warn("curation: validate prompt lookup failed, using default", "error", err)
	} else if p != nil && strings.TrimSpace(p.Content) != "" {
		system = p.Content
	}

	log := a.log.With("curation_id", in.CurationID.String())
	summary := &ValidationSummary{Total: len(rows)}
	var mu sync.Mutex
	for start := 0; start < len(rows); start += conc {
		end := start + conc
		if end > len(rows) {
			end = len(rows)
		}
		var g errgroup.Group
		for _, row := range rows[start:end] {
			row := row
			g.Go(func() error {
				verdict, err := a.validateRow(ctx, system, row)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					summary.Errors++
					a.deps.Metrics.ObserveVerdict("error")
					log.Warn("curation: row validation failed", "row_id", row.ID.String(), "source", row.SourceRef, "error", err)
				case verdict.Apta:
					summary.Approved++
					a.deps.Metrics.ObserveVerdict("approved")
				default:
					summary.Rejected++
					a.deps.Metrics.ObserveVerdict("rejected")
				}
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		progress("validate", 100*end/len(rows), fmt.Sprintf("validated %d/%d rows", end, len(rows)))
	}
	log.Info("curation: validation complete",
		"total", summary.Total,
		"approved", summary.Approved,
		"rejected", summary.Rejected,
		"errors", summary.Errors,
	)
	return summary, nil
}

// validateRow grades one row and persists the verdict. A page that cannot be
// fetched is persisted as rejected with zero scores. A grader failure leaves
// the row ungraded so a later run can retry it.
func (a *ValidationAgent) validateRow(ctx context.Context, system string, row *types.CurationRow) (repos.ValidationVerdict, error) {
	threshold := a.deps.Config.ApprovalThreshold
	page, err := a.deps.Pages.Read(ctx, row.SourceRef)
	if err != nil {
		verdict := repos.ValidationVerdict{
			Apta:      false,
			Score:     0,
			Notes:     fmt.Sprintf("fetch failed: %v", err),
			CheckedAt: a.now(),
		}
		if sErr := a.deps.Rows.SaveVerdict(dbctx.Context{Ctx: ctx}, row.ID, verdict); sErr != nil {
			return verdict, sErr
		}
		return verdict, nil
	}

	obj, err := a.deps.Grader.GenerateJSON(ctx, system, gradingPrompt(row, page, a.deps.Config.MaxContentChars), "source_grade", gradeSchema)
	if err != nil {
		return repos.ValidationVerdict{}, fmt.Errorf("grade: %w", err)
	}
	grade := ParseGrade(obj)
	avg := grade.Average()
	verdict := repos.ValidationVerdict{
		Apta:              avg >= threshold,
		CoberturaCompleta: grade.CoversComponent,
		Score:             avg,
		Notes:             fmt.Sprintf("%d/100 - %s", avg, strings.TrimSpace(grade.Feedback)),
		CheckedAt:         a.now(),
	}
	if err := a.deps.Rows.SaveVerdict(dbctx.Context{Ctx: ctx}, row.ID, verdict); err != nil {
		return verdict, fmt.Errorf("save verdict: %w", err)
	}
	return verdict, nil
}

func gradingPrompt(row *types.CurationRow, page *webfetch.Page, maxChars int) string {
	text := page.Text
	if maxChars > 0 && len([]rune(text)) > maxChars {
		text = string([]rune(text)[:maxChars])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Lección: %s (%s)\n", row.LessonTitle, row.LessonID)
	fmt.Fprintf(&b, "Componente: %s\n", row.Component)
	if row.IsCritical {
		b.WriteString("Componente crítico: sí\n")
	}
	fmt.Fprintf(&b, "Fuente: %s\n", row.SourceRef)
	fmt.Fprintf(&b, "Título declarado: %s\n", row.SourceTitle)
	if page.Title != "" {
		fmt.Fprintf(&b, "Título de la página: %s\n", page.Title)
	}
	fmt.Fprintf(&b, "Palabras: %d\n\n", page.WordCount)
	b.WriteString("Contenido:\n")
	b.WriteString(text)
	b.WriteString("\n\nPuntúa de 0 a 100 relevance, depth, quality y applicability para este componente de la lección. ")
	b.WriteString("Incluye feedback breve y covers_component=true si la fuente cubre el componente por completo.\n")
	return b.String()
}

// ParseGrade reads the grader object. Scores are clamped to 0..100; missing
// or non-numeric scores count as zero.
func ParseGrade(obj map[string]any) Grade {
	return Grade{
		Relevance:       score(obj["relevance"]),
		Depth:           score(obj["depth"]),
		Quality:         score(obj["quality"]),
		Applicability:   score(obj["applicability"]),
		Feedback:        fmt.Sprint(valueOr(obj["feedback"], "")),
		CoversComponent: obj["covers_component"] == true,
	}
}

func score(v any) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Round(math.Min(100, math.Max(0, f))))
}

func valueOr(v any, def any) any {
	if v == nil {
		return def
	}
	return v
}
