package env

import "testing"

func TestFirstPrefersEarlierKeys(t *testing.T) {
	t.Setenv("SHOPZEN_LOG_FORMAT", "console")
	t.Setenv("LOG_FORMAT", "json")
	if got := First("json", "SHOPZEN_LOG_FORMAT", "LOG_FORMAT"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
	if got := First("fallback", "SHOPZEN_UNSET_VALUE"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestFirstSkipsBlankValues(t *testing.T) {
	t.Setenv("SHOPZEN_INSTANCE_ID", "   ")
	t.Setenv("HOSTNAME", " api-7f9c ")
	if got := First("local", "SHOPZEN_INSTANCE_ID", "HOSTNAME"); got != "api-7f9c" {
		t.Fatalf("expected trimmed hostname, got %q", got)
	}
}
