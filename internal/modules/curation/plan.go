package curation

import (
	"encoding/json"
	"errors"
	"strings"
)

// Plan is the model's JSON answer: lessons, each with the sources it picked
// per component.
type Plan struct {
	Lessons []PlanLesson `json:"lessons"`
}

type PlanLesson struct {
	LessonID    string          `json:"lessonId"`
	LessonTitle string          `json:"lessonTitle"`
	Components  []PlanComponent `json:"components"`
}

type PlanComponent struct {
	ComponentType string `json:"componentType"`
	Component     string `json:"component,omitempty"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	Rationale     string `json:"rationale"`
}

func (c PlanComponent) Type() string {
	if t := strings.TrimSpace(c.ComponentType); t != "" {
		return t
	}
	return strings.TrimSpace(c.Component)
}

func (p *Plan) entries() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, l := range p.Lessons {
		n += len(l.Components)
	}
	return n
}

var errNoJSON = errors.New("no JSON object in model output")

// ExtractJSON strips code fences and control characters and trims the text
// to its outermost {...} span.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", errNoJSON
	}
	return s[start : end+1], nil
}

// ParsePlan decodes the model answer. A plan without any component entry is
// reported as an error so callers fall back to grounding-only assignment.
func ParsePlan(text string) (*Plan, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var p Plan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	if p.entries() == 0 {
		return nil, errors.New("plan has no component entries")
	}
	return &p, nil
}
