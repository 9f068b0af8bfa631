package curation

// RequiredComponent is one unit of requested work. Identity is
// (LessonID, ComponentType).
type RequiredComponent struct {
	LessonID      string `json:"lessonId"`
	LessonTitle   string `json:"lessonTitle"`
	ComponentType string `json:"componentType"`
	IsCritical    bool   `json:"isCritical"`
}

type ComponentKey struct {
	LessonID  string `json:"lessonId"`
	Component string `json:"componentType"`
}

func (c RequiredComponent) Key() ComponentKey {
	return ComponentKey{LessonID: c.LessonID, Component: c.ComponentType}
}

// Origin records how a source was attached to a component. The value is
// persisted verbatim in curation_rows.notes.
type Origin string

const (
	OriginGoogleVerified    Origin = "google_verified"
	OriginGroundingFallback Origin = "grounding_fallback"
	OriginGroundingDirect   Origin = "grounding_direct"
)

// CandidateSource lives only while one attempt is being reconciled.
type CandidateSource struct {
	URI       string
	Title     string
	Rationale string
	Origin    Origin
}

// GroundingURL is a search citation that went through redirect resolution
// and the content gate.
type GroundingURL struct {
	ResolvedURI       string `json:"resolved_uri"`
	OriginalURI       string `json:"original_uri"`
	Title             string `json:"title,omitempty"`
	Valid             bool   `json:"valid"`
	VerificationError string `json:"verification_error,omitempty"`
	WordCount         int    `json:"word_count,omitempty"`
	HTTPStatus        int    `json:"http_status,omitempty"`
}
