package curation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/curation-backend/internal/data/repos"
	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/platform/gemini"
	"github.com/yungbote/curation-backend/internal/platform/logger"
	"github.com/yungbote/curation-backend/internal/platform/webfetch"
)

// scriptedGenerator answers each call with the next step of script. Calls
// past the end reuse the last step.
type scriptedGenerator struct {
	mu     sync.Mutex
	script []genStep
	calls  []gemini.GroundedRequest
}

type genStep struct {
	resp *gemini.GroundedResponse
	err  error
}

func (g *scriptedGenerator) GenerateGrounded(ctx context.Context, req gemini.GroundedRequest) (*gemini.GroundedResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := len(g.calls)
	g.calls = append(g.calls, req)
	if len(g.script) == 0 {
		return &gemini.GroundedResponse{}, nil
	}
	if i >= len(g.script) {
		i = len(g.script) - 1
	}
	return g.script[i].resp, g.script[i].err
}

func (g *scriptedGenerator) requests() []gemini.GroundedRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gemini.GroundedRequest(nil), g.calls...)
}

// identityResolver returns the input unless a redirect is registered.
type identityResolver struct {
	redirects map[string]string
}

func (r identityResolver) Resolve(ctx context.Context, rawURL string) string {
	if to, ok := r.redirects[rawURL]; ok {
		return to
	}
	return rawURL
}

// hostVerifier rejects URLs whose host contains "bad".
type hostVerifier struct{}

func (hostVerifier) Verify(ctx context.Context, rawURL string) webfetch.Verification {
	if strings.Contains(rawURL, "bad") {
		return webfetch.Verification{Valid: false, HTTPStatus: 404, Error: "HTTP 404"}
	}
	return webfetch.Verification{Valid: true, WordCount: 120, HTTPStatus: 200}
}

type memRows struct {
	mu        sync.Mutex
	rows      []*types.CurationRow
	insertErr error
	inserts   int
	verdicts  map[uuid.UUID]repos.ValidationVerdict
}

var _ repos.CurationRowRepo = (*memRows)(nil)

func (m *memRows) InsertBatch(dbc dbctx.Context, rows []*types.CurationRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return m.insertErr
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memRows) ListByCuration(dbc dbctx.Context, curationID uuid.UUID) ([]*types.CurationRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.CurationRow
	for _, r := range m.rows {
		if r.CurationID == curationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRows) ListForValidation(dbc dbctx.Context, curationID uuid.UUID, includeGraded bool) ([]*types.CurationRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.CurationRow
	for _, r := range m.rows {
		if r.CurationID == curationID && (includeGraded || r.Apta == nil) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRows) CoveredKeys(dbc dbctx.Context, curationID uuid.UUID) (map[types.ComponentKey]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[types.ComponentKey]bool{}
	for _, r := range m.rows {
		if r.CurationID == curationID {
			out[types.ComponentKey{LessonID: r.LessonID, Component: r.Component}] = true
		}
	}
	return out, nil
}

func (m *memRows) SaveVerdict(dbc dbctx.Context, id uuid.UUID, v repos.ValidationVerdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.verdicts == nil {
		m.verdicts = map[uuid.UUID]repos.ValidationVerdict{}
	}
	for _, r := range m.rows {
		if r.ID == id {
			apta, cob, score := v.Apta, v.CoberturaCompleta, v.Score
			r.Apta, r.CoberturaCompleta, r.ValidationScore = &apta, &cob, &score
			r.Notes = v.Notes
			m.verdicts[id] = v
			return nil
		}
	}
	return fmt.Errorf("row %s not found", id)
}

type memCurations struct {
	mu      sync.Mutex
	records map[uuid.UUID]*types.Curation
}

var _ repos.CurationRepo = (*memCurations)(nil)

func (m *memCurations) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Curation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id], nil
}

func (m *memCurations) MarkGenerating(dbc dbctx.Context, c *types.Curation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = map[uuid.UUID]*types.Curation{}
	}
	cp := *c
	cp.State = types.StateGenerating
	m.records[c.ID] = &cp
	return nil
}

func (m *memCurations) Finish(dbc dbctx.Context, id uuid.UUID, state string, totalInserted int, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.records[id]
	if !ok {
		return errors.New("curation not found")
	}
	c.State, c.TotalInserted, c.LastError = state, totalInserted, lastErr
	return nil
}

type staticSettings struct {
	row *types.CurationSettings
	err error
}

func (s staticSettings) Get(dbc dbctx.Context) (*types.CurationSettings, error) { return s.row, s.err }

type staticPrompts map[string]string

func (p staticPrompts) GetByCode(dbc dbctx.Context, code string) (*types.SystemPrompt, error) {
	content, ok := p[code]
	if !ok {
		return nil, nil
	}
	return &types.SystemPrompt{ID: uuid.New(), Code: code, Content: content}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchDelay = 0
	cfg.RecoveryBatchDelay = 0
	cfg.RungDelay = 0
	cfg.RungErrorDelay = 0
	cfg.RecoveryRungDelay = 0
	return cfg
}

func testSettings() Settings {
	return Settings{Model: "primary", FallbackModel: "fallback", Temperature: 0.7, ThinkingLevel: "low"}
}

func newTestBatchProcessor(gen Generator, rows repos.CurationRowRepo) *BatchProcessor {
	log := logger.NewNop()
	runner := NewAttemptRunner(gen, identityResolver{}, hostVerifier{})
	return NewBatchProcessor(log, testConfig(), runner, rows, nil, nil)
}

func components(n int) []types.RequiredComponent {
	out := make([]types.RequiredComponent, n)
	for i := range out {
		out[i] = types.RequiredComponent{
			LessonID:      fmt.Sprintf("L%d", i+1),
			LessonTitle:   fmt.Sprintf("Lección %d", i+1),
			ComponentType: "lectura",
			IsCritical:    i == 0,
		}
	}
	return out
}

func chunks(urls ...string) []gemini.Chunk {
	out := make([]gemini.Chunk, len(urls))
	for i, u := range urls {
		out[i] = gemini.Chunk{URI: u, Title: fmt.Sprintf("Fuente %d", i+1)}
	}
	return out
}

// planJSON builds a model answer claiming urls[i] for comps[i].
func planJSON(comps []types.RequiredComponent, urls []string) string {
	var b strings.Builder
	b.WriteString("```json\n{\"lessons\":[")
	for i, u := range urls {
		if i > 0 {
			b.WriteString(",")
		}
		c := comps[i]
		fmt.Fprintf(&b, `{"lessonId":%q,"lessonTitle":%q,"components":[{"componentType":%q,"url":%q,"title":"Claimed %d","rationale":"fits"}]}`,
			c.LessonID, c.LessonTitle, c.ComponentType, u, i+1)
	}
	b.WriteString("]}\n```")
	return b.String()
}

func urls(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://%s.example.edu/article-%d", prefix, i+1)
	}
	return out
}

func countOrigin(rows []*types.CurationRow, origin types.Origin) int {
	n := 0
	for _, r := range rows {
		if r.Notes == string(origin) {
			n++
		}
	}
	return n
}
