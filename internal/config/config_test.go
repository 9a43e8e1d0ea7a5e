package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddress == "" {
		t.Fatalf("expected default http address")
	}
	if cfg.CerebrasModelID == "" {
		t.Fatalf("expected default model id")
	}
	if cfg.SupabaseBucket == "" {
		t.Fatalf("expected default bucket")
	}
	if cfg.SpeechIdleMs != 2000 && cfg.SpeechIdleMs <= 0 {
		t.Fatalf("unexpected speech idle %d", cfg.SpeechIdleMs)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("TEST_INT_VALID", "250")
	t.Setenv("TEST_INT_GARBAGE", "abc")
	t.Setenv("TEST_INT_NEGATIVE", "-5")

	if got := envInt("TEST_INT_VALID", 100); got != 250 {
		t.Fatalf("valid: got %d", got)
	}
	if got := envInt("TEST_INT_GARBAGE", 100); got != 100 {
		t.Fatalf("garbage: got %d", got)
	}
	if got := envInt("TEST_INT_NEGATIVE", 100); got != 100 {
		t.Fatalf("negative: got %d", got)
	}
	if got := envInt("TEST_INT_UNSET", 100); got != 100 {
		t.Fatalf("unset: got %d", got)
	}
}

func TestLoad_IdleOverrides(t *testing.T) {
	t.Setenv("SPEECH_IDLE_MS", "1500")
	t.Setenv("CODE_IDLE_MS", "20000")
	t.Setenv("MIN_INVOCATION_INTERVAL_MS", "500")

	cfg := Load()
	if cfg.SpeechIdleMs != 1500 || cfg.CodeIdleMs != 20000 || cfg.MinInvocationIntervalMs != 500 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}
