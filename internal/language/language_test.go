package language

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestName_KnownCodes(t *testing.T) {
	r := New()
	want := map[string]string{
		"es": "Spanish",
		"fr": "French",
		"de": "German",
		"hi": "Hindi",
		"zh": "Chinese",
		"en": "English",
	}
	for code, name := range want {
		if got := r.Name(code); got != name {
			t.Errorf("Name(%q) = %q, want %q", code, got, name)
		}
	}
}

func TestName_UnknownFallsBack(t *testing.T) {
	r := New()
	for _, code := range []string{"xx", "", "klingon"} {
		if got := r.Name(code); got != FallbackName {
			t.Errorf("Name(%q) = %q, want %q", code, got, FallbackName)
		}
	}
}

func TestName_CaseAndWhitespace(t *testing.T) {
	r := New()
	if got := r.Name(" ES "); got != "Spanish" {
		t.Errorf("Name(\" ES \") = %q, want Spanish", got)
	}
}

func TestLoadPacks_MergesAndOverrides(t *testing.T) {
	dir := t.TempDir()
	packYAML := "languages:\n  pt: Portuguese\n  zh: Mandarin Chinese\n"
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(packYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New()
	if err := r.LoadPacks(dir, testLogger()); err != nil {
		t.Fatalf("LoadPacks: %v", err)
	}

	if got := r.Name("pt"); got != "Portuguese" {
		t.Errorf("pack entry not merged: Name(pt) = %q", got)
	}
	if got := r.Name("zh"); got != "Mandarin Chinese" {
		t.Errorf("pack entry should override builtin: Name(zh) = %q", got)
	}
	if got := r.Name("es"); got != "Spanish" {
		t.Errorf("builtin entry lost: Name(es) = %q", got)
	}
}

func TestLoadPacks_MissingDirIsNotError(t *testing.T) {
	r := New()
	if err := r.LoadPacks(filepath.Join(t.TempDir(), "nope"), testLogger()); err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
}

func TestLoadPacks_MalformedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New()
	if err := r.LoadPacks(dir, testLogger()); err != nil {
		t.Fatalf("malformed file should be skipped, got: %v", err)
	}
	if got := r.Name("fr"); got != "French" {
		t.Errorf("builtin table damaged: Name(fr) = %q", got)
	}
}
