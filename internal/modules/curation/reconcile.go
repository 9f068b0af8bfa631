package curation

import (
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/urlnorm"
)

const urlStatusVerified = "verified"

// Reconcile turns a grounded plan into rows. Model claims that match an
// unused grounding URL keep the model's URL, title and rationale. Claims
// without a match queue their component for a leftover grounding URL. At
// most one row is emitted per (lesson_id, component).
func Reconcile(curationID uuid.UUID, batch []types.RequiredComponent, plan *Plan, grounding []types.GroundingURL) []*types.CurationRow {
	if len(grounding) == 0 || plan == nil {
		return nil
	}
	candidates := make([]string, len(grounding))
	for i, g := range grounding {
		candidates[i] = g.ResolvedURI
	}
	used := make([]bool, len(grounding))
	covered := map[types.ComponentKey]bool{}
	queued := map[types.ComponentKey]bool{}
	var fallback []types.RequiredComponent
	var rows []*types.CurationRow

	for _, lesson := range plan.Lessons {
		for _, claim := range lesson.Components {
			comp, ok := locate(batch, lesson, claim.Type(), covered, queued)
			if !ok {
				continue
			}
			key := comp.Key()
			idx := urlnorm.FirstMatch(claim.URL, candidates, used)
			if idx < 0 {
				queued[key] = true
				fallback = append(fallback, comp)
				continue
			}
			used[idx] = true
			covered[key] = true
			rows = append(rows, newRow(curationID, comp, types.CandidateSource{
				URI:       strings.TrimSpace(claim.URL),
				Title:     firstNonEmpty(claim.Title, grounding[idx].Title),
				Rationale: strings.TrimSpace(claim.Rationale),
				Origin:    types.OriginGoogleVerified,
			}, grounding[idx]))
		}
	}

	next := 0
	for _, comp := range fallback {
		if covered[comp.Key()] {
			continue
		}
		for next < len(grounding) && used[next] {
			next++
		}
		if next >= len(grounding) {
			break
		}
		g := grounding[next]
		used[next] = true
		covered[comp.Key()] = true
		rows = append(rows, newRow(curationID, comp, types.CandidateSource{
			URI:    g.ResolvedURI,
			Title:  g.Title,
			Origin: types.OriginGroundingFallback,
		}, g))
	}
	return rows
}

// AssignDirect pairs grounding URLs with the batch components one-to-one in
// batch order. Used when the model answer could not be parsed.
func AssignDirect(curationID uuid.UUID, batch []types.RequiredComponent, grounding []types.GroundingURL) []*types.CurationRow {
	n := len(batch)
	if len(grounding) < n {
		n = len(grounding)
	}
	rows := make([]*types.CurationRow, 0, n)
	for i := 0; i < n; i++ {
		g := grounding[i]
		rows = append(rows, newRow(curationID, batch[i], types.CandidateSource{
			URI:    g.ResolvedURI,
			Title:  g.Title,
			Origin: types.OriginGroundingDirect,
		}, g))
	}
	return rows
}

// locate finds the batch component a claim refers to: same type and same
// lesson id or title first, then same type alone when no component of that
// type belongs to the claimed lesson. A lesson match that is already covered
// or queued rejects the claim.
func locate(batch []types.RequiredComponent, lesson PlanLesson, componentType string, covered, queued map[types.ComponentKey]bool) (types.RequiredComponent, bool) {
	ct := normalizeLabel(componentType)
	if ct == "" {
		return types.RequiredComponent{}, false
	}
	lid := strings.TrimSpace(lesson.LessonID)
	ltitle := normalizeLabel(lesson.LessonTitle)
	taken := func(c types.RequiredComponent) bool {
		k := c.Key()
		return covered[k] || queued[k]
	}
	lessonMatched := false
	for _, c := range batch {
		if normalizeLabel(c.ComponentType) != ct {
			continue
		}
		if (lid != "" && c.LessonID == lid) || (ltitle != "" && normalizeLabel(c.LessonTitle) == ltitle) {
			if !taken(c) {
				return c, true
			}
			lessonMatched = true
		}
	}
	if lessonMatched {
		return types.RequiredComponent{}, false
	}
	for _, c := range batch {
		if normalizeLabel(c.ComponentType) == ct && !taken(c) {
			return c, true
		}
	}
	return types.RequiredComponent{}, false
}

func newRow(curationID uuid.UUID, comp types.RequiredComponent, src types.CandidateSource, g types.GroundingURL) *types.CurationRow {
	row := &types.CurationRow{
		ID:              uuid.New(),
		CurationID:      curationID,
		LessonID:        comp.LessonID,
		LessonTitle:     comp.LessonTitle,
		Component:       comp.ComponentType,
		IsCritical:      comp.IsCritical,
		SourceRef:       src.URI,
		SourceTitle:     src.Title,
		SourceRationale: src.Rationale,
		URLStatus:       urlStatusVerified,
		Notes:           string(src.Origin),
	}
	if g.HTTPStatus > 0 {
		status := g.HTTPStatus
		row.HTTPStatusCode = &status
	}
	return row
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
