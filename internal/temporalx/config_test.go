package temporalx

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "")
	t.Setenv("TEMPORAL_NAMESPACE", "")
	t.Setenv("TEMPORAL_TASK_QUEUE", "curation-test")
	cfg := LoadConfig()
	if cfg.Address != "" || cfg.Namespace != "curation" || cfg.TaskQueue != "curation-test" || cfg.mTLS() {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
