package observability

import "testing"

func TestParseHeaders(t *testing.T) {
	got := parseHeaders(" authorization=Bearer x , bad, =nokey, empty= ,x-team=curation")
	if len(got) != 2 {
		t.Fatalf("expected 2 headers, got %v", got)
	}
	if got["authorization"] != "Bearer x" || got["x-team"] != "curation" {
		t.Fatalf("unexpected headers: %v", got)
	}
	if parseHeaders("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestLoadExporterSettings(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLER_RATIO", "4")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	s := loadExporterSettings()
	if !s.Enabled || s.Endpoint != "collector:4318" {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if s.SampleRatio != 1 {
		t.Fatalf("expected ratio clamped to 1, got %v", s.SampleRatio)
	}
	if clampRatio(-0.5) != 0 {
		t.Fatalf("expected negative ratio clamped to 0")
	}
}
