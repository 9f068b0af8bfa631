package curation

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/gemini"
	"github.com/yungbote/curation-backend/internal/platform/urlnorm"
	"github.com/yungbote/curation-backend/internal/platform/webfetch"
)

type Generator interface {
	GenerateGrounded(ctx context.Context, req gemini.GroundedRequest) (*gemini.GroundedResponse, error)
}

type URLResolver interface {
	Resolve(ctx context.Context, rawURL string) string
}

type ContentVerifier interface {
	Verify(ctx context.Context, rawURL string) webfetch.Verification
}

// Outcome classifies one rung.
type Outcome int

const (
	// OutcomeError: the model call failed.
	OutcomeError Outcome = iota
	// OutcomeUngrounded: no citation passed the content gate. Any JSON the
	// model produced is ignored.
	OutcomeUngrounded
	// OutcomeGroundedNoPlan: verified citations but no usable JSON answer.
	OutcomeGroundedNoPlan
	// OutcomeGrounded: verified citations and a parsed plan.
	OutcomeGrounded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGrounded:
		return "grounded"
	case OutcomeGroundedNoPlan:
		return "grounded_no_plan"
	case OutcomeUngrounded:
		return "ungrounded"
	default:
		return "error"
	}
}

type AttemptResult struct {
	Rung      Rung
	Outcome   Outcome
	Grounding []types.GroundingURL
	// Rejected holds citations that failed resolution or verification.
	Rejected []types.GroundingURL
	Plan     *Plan
	ParseErr error
	RawText  string
	Queries  []string
	Err      error
}

type AttemptRunner struct {
	gen      Generator
	resolver URLResolver
	verifier ContentVerifier
}

func NewAttemptRunner(gen Generator, resolver URLResolver, verifier ContentVerifier) *AttemptRunner {
	return &AttemptRunner{gen: gen, resolver: resolver, verifier: verifier}
}

type AttemptInput struct {
	System        string
	Prompt        string
	Rung          Rung
	ThinkingLevel string
}

func (r *AttemptRunner) Run(ctx context.Context, in AttemptInput) AttemptResult {
	res := AttemptResult{Rung: in.Rung}
	resp, err := r.gen.GenerateGrounded(ctx, gemini.GroundedRequest{
		Model:         in.Rung.Model,
		System:        in.System,
		Prompt:        in.Prompt,
		Temperature:   in.Rung.Temperature,
		ThinkingLevel: in.ThinkingLevel,
	})
	if err != nil {
		res.Outcome = OutcomeError
		res.Err = err
		return res
	}
	res.RawText = resp.Text
	res.Queries = resp.Queries

	checked := r.verifyChunks(ctx, resp.Chunks)
	// citations resolving to the same page count as one grounding URL
	seen := map[string]bool{}
	for _, g := range checked {
		if !g.Valid {
			res.Rejected = append(res.Rejected, g)
			continue
		}
		key := urlnorm.URL(g.ResolvedURI)
		if seen[key] {
			continue
		}
		seen[key] = true
		res.Grounding = append(res.Grounding, g)
	}

	res.Plan, res.ParseErr = ParsePlan(resp.Text)
	switch {
	case len(res.Grounding) == 0:
		res.Outcome = OutcomeUngrounded
	case res.Plan == nil:
		res.Outcome = OutcomeGroundedNoPlan
	default:
		res.Outcome = OutcomeGrounded
	}
	return res
}

// verifyChunks resolves and verifies every chunk concurrently. One failure
// never cancels the others; results keep chunk order.
func (r *AttemptRunner) verifyChunks(ctx context.Context, chunks []gemini.Chunk) []types.GroundingURL {
	out := make([]types.GroundingURL, len(chunks))
	var g errgroup.Group
	for i, ch := range chunks {
		i, ch := i, ch
		g.Go(func() error {
			resolved := strings.TrimSpace(r.resolver.Resolve(ctx, ch.URI))
			if resolved == "" {
				resolved = ch.URI
			}
			v := r.verifier.Verify(ctx, resolved)
			out[i] = types.GroundingURL{
				ResolvedURI:       resolved,
				OriginalURI:       ch.URI,
				Title:             ch.Title,
				Valid:             v.Valid,
				VerificationError: v.Error,
				WordCount:         v.WordCount,
				HTTPStatus:        v.HTTPStatus,
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
