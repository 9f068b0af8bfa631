package curation

import (
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/curation-backend/internal/domain"
)

func grounding(uris ...string) []types.GroundingURL {
	out := make([]types.GroundingURL, len(uris))
	for i, u := range uris {
		out[i] = types.GroundingURL{ResolvedURI: u, OriginalURI: u, Title: "G" + u, Valid: true, HTTPStatus: 200}
	}
	return out
}

func TestReconcileMatchesClaimsAndFallsBack(t *testing.T) {
	batch := []types.RequiredComponent{
		{LessonID: "L1", LessonTitle: "Intro", ComponentType: "lectura"},
		{LessonID: "L1", LessonTitle: "Intro", ComponentType: "video"},
		{LessonID: "L2", LessonTitle: "Canales", ComponentType: "lectura"},
	}
	plan := &Plan{Lessons: []PlanLesson{
		{LessonID: "L1", Components: []PlanComponent{
			{ComponentType: "Lectura", URL: "https://news.example.com/Great-Article/", Title: "Great", Rationale: "clear"},
			{ComponentType: "video", URL: "https://made-up.invalid/video"},
		}},
		{LessonTitle: "canales", Components: []PlanComponent{
			{Component: "lectura", URL: "https://go.dev/doc/effective_go", Title: ""},
		}},
	}}
	g := grounding(
		"https://www.news.example.com/great-article",
		"https://go.dev/doc/effective_go",
		"https://leftover.example.org/page",
	)

	rows := Reconcile(uuid.New(), batch, plan, g)

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	byKey := map[types.ComponentKey]*types.CurationRow{}
	for _, r := range rows {
		k := types.ComponentKey{LessonID: r.LessonID, Component: r.Component}
		if byKey[k] != nil {
			t.Fatalf("component %+v covered twice", k)
		}
		byKey[k] = r
	}
	intro := byKey[types.ComponentKey{LessonID: "L1", Component: "lectura"}]
	if intro.Notes != string(types.OriginGoogleVerified) || intro.SourceRef != "https://news.example.com/Great-Article/" || intro.SourceTitle != "Great" || intro.SourceRationale != "clear" {
		t.Fatalf("unexpected verified row: %+v", intro)
	}
	canales := byKey[types.ComponentKey{LessonID: "L2", Component: "lectura"}]
	if canales.Notes != string(types.OriginGoogleVerified) || canales.SourceTitle != "Ghttps://go.dev/doc/effective_go" {
		t.Fatalf("title should fall back to grounding title: %+v", canales)
	}
	video := byKey[types.ComponentKey{LessonID: "L1", Component: "video"}]
	if video.Notes != string(types.OriginGroundingFallback) || video.SourceRef != "https://leftover.example.org/page" {
		t.Fatalf("hallucinated claim should get a leftover grounding URL: %+v", video)
	}
}

func TestReconcileNeverStoresUngroundedClaims(t *testing.T) {
	batch := components(2)
	plan := &Plan{Lessons: []PlanLesson{
		{LessonID: "L1", Components: []PlanComponent{{ComponentType: "lectura", URL: "https://invented.example/a"}}},
		{LessonID: "L2", Components: []PlanComponent{{ComponentType: "lectura", URL: "https://invented.example/b"}}},
	}}
	rows := Reconcile(uuid.New(), batch, plan, grounding("https://real.example.edu/only"))
	if len(rows) != 1 {
		t.Fatalf("expected a single fallback row, got %d", len(rows))
	}
	if rows[0].SourceRef != "https://real.example.edu/only" || rows[0].LessonID != "L1" {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
	if Reconcile(uuid.New(), batch, plan, nil) != nil {
		t.Fatalf("no grounding must mean no rows")
	}
}

func TestReconcileIgnoresRepeatedAndUnknownClaims(t *testing.T) {
	batch := components(1)
	plan := &Plan{Lessons: []PlanLesson{
		{LessonID: "L1", Components: []PlanComponent{
			{ComponentType: "lectura", URL: "https://a.example.edu/1"},
			{ComponentType: "lectura", URL: "https://b.example.edu/2"},
			{ComponentType: "podcast", URL: "https://b.example.edu/2"},
		}},
		{LessonID: "L99", Components: []PlanComponent{{ComponentType: "ejercicio", URL: "https://c.example.edu"}}},
	}}
	rows := Reconcile(uuid.New(), batch, plan, grounding("https://a.example.edu/1", "https://b.example.edu/2"))
	if len(rows) != 1 || rows[0].SourceRef != "https://a.example.edu/1" {
		t.Fatalf("expected one row for L1 lectura, got %+v", rows)
	}
}

func TestReconcileKeepsRepeatedClaimInItsLesson(t *testing.T) {
	batch := []types.RequiredComponent{
		{LessonID: "L1", LessonTitle: "Intro", ComponentType: "lectura"},
		{LessonID: "L2", LessonTitle: "Canales", ComponentType: "lectura"},
	}
	plan := &Plan{Lessons: []PlanLesson{
		{LessonID: "L1", Components: []PlanComponent{
			{ComponentType: "lectura", URL: "https://a.example.edu/intro", Rationale: "intro reading for L1"},
			{ComponentType: "lectura", URL: "https://b.example.edu/intro-2", Rationale: "second intro reading for L1"},
		}},
	}}
	rows := Reconcile(uuid.New(), batch, plan, grounding("https://a.example.edu/intro", "https://b.example.edu/intro-2"))
	if len(rows) != 1 {
		t.Fatalf("expected only the L1 row, got %d", len(rows))
	}
	if rows[0].LessonID != "L1" || rows[0].SourceRef != "https://a.example.edu/intro" {
		t.Fatalf("unexpected row: %+v", rows[0])
	}

	// a claim for a lesson outside the batch may still fill a free component of the same type
	other := &Plan{Lessons: []PlanLesson{
		{LessonID: "L9", Components: []PlanComponent{{ComponentType: "lectura", URL: "https://a.example.edu/intro"}}},
	}}
	rows = Reconcile(uuid.New(), batch, other, grounding("https://a.example.edu/intro"))
	if len(rows) != 1 || rows[0].LessonID != "L1" || rows[0].Notes != string(types.OriginGoogleVerified) {
		t.Fatalf("expected type-only match onto L1, got %+v", rows)
	}
}

func TestAssignDirectPairsInOrder(t *testing.T) {
	batch := components(3)
	rows := AssignDirect(uuid.New(), batch, grounding("https://x.example/1", "https://x.example/2"))
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for i, r := range rows {
		if r.LessonID != batch[i].LessonID || r.Notes != string(types.OriginGroundingDirect) || r.URLStatus != "verified" {
			t.Fatalf("row %d: %+v", i, r)
		}
	}
	if !rows[0].IsCritical {
		t.Fatalf("critical flag not carried")
	}
}
