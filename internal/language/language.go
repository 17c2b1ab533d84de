// Package language maps short language codes to the human-readable names
// used in translation prompts.
package language

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FallbackName is returned for any code the resolver does not know.
const FallbackName = "English"

// builtin covers the codes the relay ships with.
var builtin = map[string]string{
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"hi": "Hindi",
	"zh": "Chinese",
	"en": "English",
}

// Resolver resolves language codes to names. Zero value is not usable;
// construct with New.
type Resolver struct {
	names map[string]string
}

// New returns a Resolver seeded with the builtin table.
func New() *Resolver {
	names := make(map[string]string, len(builtin))
	for code, name := range builtin {
		names[code] = name
	}
	return &Resolver{names: names}
}

// Name returns the human-readable name for code, or FallbackName when the
// code is unknown or empty. Codes are matched case-insensitively.
func (r *Resolver) Name(code string) string {
	if name, ok := r.names[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return FallbackName
}

// pack is the schema of a language-pack YAML file.
type pack struct {
	Languages map[string]string `yaml:"languages"`
}

// LoadPacks merges code->name entries from YAML files in dir over the
// builtin table. Pack entries win on conflict. A missing directory is not
// an error; unreadable or malformed files are skipped with a warning.
func (r *Resolver) LoadPacks(dir string, logger *slog.Logger) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("language pack directory does not exist, skipping", "dir", dir)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read language pack dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read language pack", "path", path, "err", err)
			continue
		}

		var p pack
		if err := yaml.Unmarshal(data, &p); err != nil {
			logger.Warn("cannot parse language pack", "path", path, "err", err)
			continue
		}

		for code, langName := range p.Languages {
			code = strings.ToLower(strings.TrimSpace(code))
			langName = strings.TrimSpace(langName)
			if code == "" || langName == "" {
				continue
			}
			r.names[code] = langName
		}
		logger.Info("language pack loaded", "path", path, "entries", len(p.Languages))
	}

	return nil
}
