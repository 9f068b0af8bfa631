package jobrun

import "testing"

func TestTickResultDone(t *testing.T) {
	for status, want := range map[string]bool{
		"queued":    false,
		"running":   false,
		"succeeded": true,
		"failed":    true,
		"canceled":  true,
	} {
		if got := (TickResult{Status: status}).Done(); got != want {
			t.Fatalf("%s: Done()=%v want %v", status, got, want)
		}
	}
}

func TestShouldContinueAsNew(t *testing.T) {
	if shouldContinueAsNew(10, 1) {
		t.Fatalf("fresh workflow should not continue as new")
	}
	if !shouldContinueAsNew(10, continueTickLimit) {
		t.Fatalf("tick limit should trigger continue-as-new")
	}
	if !shouldContinueAsNew(continueHistoryLimit, 1) {
		t.Fatalf("history limit should trigger continue-as-new")
	}
}
