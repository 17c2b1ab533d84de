package config

import (
	"os"
	"path/filepath"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative port")
	}

	cfg.Server.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidate_InvalidDelivery(t *testing.T) {
	cfg := Defaults()
	cfg.WhatsApp.Delivery = "carrier-pigeon"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown delivery strategy")
	}
}

func TestValidate_ValidDeliveries(t *testing.T) {
	for _, strategy := range []string{"inline", "upload"} {
		cfg := Defaults()
		cfg.WhatsApp.Delivery = strategy
		if err := Validate(cfg); err != nil {
			t.Fatalf("delivery %q should be valid: %v", strategy, err)
		}
	}
}

func TestValidate_EmptyTargetLanguage(t *testing.T) {
	cfg := Defaults()
	cfg.Translation.TargetLanguage = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty targetLanguage")
	}
}

func TestValidate_WebhookPath(t *testing.T) {
	cfg := Defaults()
	cfg.Server.WebhookPath = "webhook"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for path without leading slash")
	}
}

func TestValidate_JournalRetention(t *testing.T) {
	cfg := Defaults()
	cfg.Journal.Enabled = true
	cfg.Journal.RetentionDays = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for retentionDays=0 with journal enabled")
	}

	cfg.Journal.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Fatalf("retention should not matter when journal disabled: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "loud"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_Set(t *testing.T) {
	t.Setenv("VR_TEST_TOKEN", "secret123")
	got := ExpandEnvVars(`{"accessToken":"${VR_TEST_TOKEN}"}`)
	want := `{"accessToken":"secret123"}`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestExpandEnvVars_Default(t *testing.T) {
	os.Unsetenv("VR_TEST_MISSING")
	got := ExpandEnvVars(`${VR_TEST_MISSING:-fallback}`)
	if got != "fallback" {
		t.Errorf("got %s, want fallback", got)
	}
}

func TestExpandEnvVars_UnsetNoDefault(t *testing.T) {
	os.Unsetenv("VR_TEST_MISSING")
	got := ExpandEnvVars(`${VR_TEST_MISSING}`)
	if got != "${VR_TEST_MISSING}" {
		t.Errorf("unset var without default should stay literal, got %s", got)
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Defaults()
	cfg.Server.Port = 8123
	cfg.WhatsApp.PhoneNumberID = "123456"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Server.Port != 8123 {
		t.Errorf("port = %d, want 8123", loaded.Server.Port)
	}
	if loaded.WhatsApp.PhoneNumberID != "123456" {
		t.Errorf("phoneNumberId = %q", loaded.WhatsApp.PhoneNumberID)
	}
	// Defaults filled for omitted fields.
	if loaded.OpenAI.TranscribeModel != "whisper-1" {
		t.Errorf("transcribeModel = %q, want whisper-1", loaded.OpenAI.TranscribeModel)
	}
}

func TestLoad_ExpandsEnvInFile(t *testing.T) {
	t.Setenv("VR_TEST_KEY", "sk-test")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"openai":{"apiKey":"${VR_TEST_KEY}"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("apiKey = %q, want sk-test", cfg.OpenAI.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"whatsapp":{"delivery":"smoke-signal"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

// --- Accessor ---

func TestGetByPath(t *testing.T) {
	cfg := Defaults()
	val, err := GetByPath(cfg, "whatsapp.delivery")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if val != "inline" {
		t.Errorf("got %v, want inline", val)
	}
}

func TestGetByPath_NotFound(t *testing.T) {
	if _, err := GetByPath(Defaults(), "whatsapp.missing"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetByPath(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "server.port", "9999"); err != nil {
		t.Fatalf("SetByPath: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}

	if err := SetByPath(cfg, "journal.enabled", "false"); err != nil {
		t.Fatalf("SetByPath bool: %v", err)
	}
	if cfg.Journal.Enabled {
		t.Error("journal.enabled should be false")
	}
}

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.WhatsApp.AccessToken = "EAAGlongplatformtoken1234"
	cfg.OpenAI.APIKey = "sk-proj-abcdefgh12345678"
	cfg.WhatsApp.AppSecret = "appsecret"

	s := Sanitize(cfg)
	if s.WhatsApp.AccessToken == cfg.WhatsApp.AccessToken {
		t.Error("accessToken not masked")
	}
	if s.OpenAI.APIKey == cfg.OpenAI.APIKey {
		t.Error("apiKey not masked")
	}
	if s.WhatsApp.AppSecret != "***" {
		t.Errorf("appSecret = %q, want ***", s.WhatsApp.AppSecret)
	}
	// Original untouched.
	if cfg.OpenAI.APIKey != "sk-proj-abcdefgh12345678" {
		t.Error("Sanitize mutated the original config")
	}
}
