package envutil

import (
	"testing"
	"time"
)

func TestReaders(t *testing.T) {
	t.Setenv("ENVUTIL_INT", " 12 ")
	t.Setenv("ENVUTIL_BAD", "x")
	t.Setenv("ENVUTIL_BOOL", "off")
	t.Setenv("ENVUTIL_FLOAT", "0.25")
	t.Setenv("ENVUTIL_SECS", "-3")

	if got := Int("ENVUTIL_INT", 1); got != 12 {
		t.Fatalf("Int: got %d", got)
	}
	if got := Int("ENVUTIL_BAD", 7); got != 7 {
		t.Fatalf("Int fallback: got %d", got)
	}
	if got := Bool("ENVUTIL_BOOL", true); got {
		t.Fatalf("Bool: got true")
	}
	if got := Bool("ENVUTIL_MISSING", true); !got {
		t.Fatalf("Bool default: got false")
	}
	if got := Float("ENVUTIL_FLOAT", 1); got != 0.25 {
		t.Fatalf("Float: got %v", got)
	}
	if got := Seconds("ENVUTIL_SECS", 5); got != 0 {
		t.Fatalf("Seconds clamp: got %v", got)
	}
	if got := Seconds("ENVUTIL_MISSING", 5); got != 5*time.Second {
		t.Fatalf("Seconds default: got %v", got)
	}
	if got := String("ENVUTIL_MISSING", "d"); got != "d" {
		t.Fatalf("String default: got %q", got)
	}
}
