package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode without token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_UnknownMode(t *testing.T) {
	cfg := AuthConfig{Mode: "oauth", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown mode should fail")
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefaultRecurrenceSettings(t *testing.T) {
	cfg := NewDefaultConfig()
	r := cfg.Recurrence

	if !r.Enabled {
		t.Error("recurrence should default to enabled")
	}
	s := r.Settings()
	if !s.IsTerminal("complete") || !s.IsTerminal("wont-do") {
		t.Errorf("terminal statuses = %v", s.TerminalStatuses)
	}
	if s.DefaultStatus != "open" {
		t.Errorf("default status = %q", s.DefaultStatus)
	}
	if r.SuppressionWindow() != 5*time.Minute {
		t.Errorf("suppression window = %v", r.SuppressionWindow())
	}
	if r.SettleDelay() != 250*time.Millisecond {
		t.Errorf("settle delay = %v", r.SettleDelay())
	}
}

func TestRecurrenceConfig_SuppressionWindowBounds(t *testing.T) {
	base := NewDefaultConfig().Recurrence

	cfg := base
	cfg.SuppressionWindowMinutes = 0
	if err := cfg.Validate(); err == nil {
		t.Error("window below 1 minute should fail")
	}

	cfg = base
	cfg.SuppressionWindowMinutes = 31
	if err := cfg.Validate(); err == nil {
		t.Error("window above 30 minutes should fail")
	}

	cfg = base
	cfg.SuppressionWindowMinutes = 30
	if err := cfg.Validate(); err != nil {
		t.Errorf("30 minutes should pass: %v", err)
	}
}

func TestRecurrenceConfig_RequiredFields(t *testing.T) {
	cfg := NewDefaultConfig().Recurrence
	cfg.TerminalStatuses = nil
	if err := cfg.Validate(); err == nil {
		t.Error("empty terminal statuses should fail")
	}

	cfg = NewDefaultConfig().Recurrence
	cfg.DefaultStatus = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty default status should fail")
	}
}

func TestHTTPConfig_Address(t *testing.T) {
	cfg := HTTPConfig{Port: 8080}
	if cfg.Address() != ":8080" {
		t.Errorf("address = %q", cfg.Address())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid port rejected: %v", err)
	}
	bad := HTTPConfig{Port: 0}
	if err := bad.Validate(); err == nil {
		t.Error("port 0 should fail")
	}
}
