package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/keyline/internal/catalog"
	"github.com/kokistudios/keyline/internal/export"
	"github.com/kokistudios/keyline/internal/suggest"
)

// DataConfig locates the article file.
type DataConfig struct {
	File string `yaml:"file"`
}

// SearchConfig holds search and autocomplete settings.
type SearchConfig struct {
	IgnoreCase   bool `yaml:"ignore_case"`
	SuggestLimit int  `yaml:"suggest_limit"`
}

// ExportConfig holds search-result export settings.
type ExportConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

// Config holds keyline configuration.
type Config struct {
	Version string       `yaml:"version"`
	Data    DataConfig   `yaml:"data"`
	Search  SearchConfig `yaml:"search"`
	Export  ExportConfig `yaml:"export"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Version: "1",
		Data: DataConfig{
			File: "article_data.json",
		},
		Search: SearchConfig{
			IgnoreCase:   false,
			SuggestLimit: suggest.DefaultLimit,
		},
		Export: ExportConfig{
			Dir:    "exports",
			Format: string(export.FormatJSON),
		},
	}
}

// Store represents a loaded keyline home.
type Store struct {
	Home   string
	Config Config
}

// Issue represents a health check finding.
type Issue struct {
	Severity string // "warning" or "error"
	Message  string
}

// Home returns the keyline home path, respecting the KEYLINE_HOME env var.
func Home() string {
	if h := os.Getenv("KEYLINE_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".keyline")
	}
	return filepath.Join(home, ".keyline")
}

// Init creates the keyline home directory structure.
func Init(home string, force bool) error {
	if _, err := os.Stat(filepath.Join(home, "config.yaml")); err == nil && !force {
		return fmt.Errorf("keyline home already exists at %s (use --force to reinitialize)", home)
	}

	cfg := DefaultConfig()
	for _, d := range []string{home, filepath.Join(home, cfg.Export.Dir)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Load reads an existing keyline home.
// Missing config fields are filled from defaults.
func Load(home string) (*Store, error) {
	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read keyline config at %s: %w", cfgPath, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config.yaml: %w", err)
	}
	return &Store{Home: home, Config: cfg}, nil
}

// LoadOrDefault is Load, except that a home without config.yaml yields the
// default configuration. Nothing is written.
func LoadOrDefault(home string) (*Store, error) {
	if _, err := os.Stat(filepath.Join(home, "config.yaml")); errors.Is(err, os.ErrNotExist) {
		return &Store{Home: home, Config: DefaultConfig()}, nil
	}
	return Load(home)
}

// SaveConfig writes the current config to config.yaml.
func (s *Store) SaveConfig() error {
	data, err := yaml.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(s.Home, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.Home, err)
	}
	if err := os.WriteFile(s.Path("config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ConfigKeys lists the keys accepted by SetConfigValue.
var ConfigKeys = []string{
	"data.file",
	"search.ignore_case",
	"search.suggest_limit",
	"export.dir",
	"export.format",
}

// SetConfigValue sets a config value by dot-path key (e.g. "export.format")
// and saves the config.
func (s *Store) SetConfigValue(key, value string) error {
	switch key {
	case "data.file":
		if value == "" {
			return fmt.Errorf("data.file must not be empty")
		}
		s.Config.Data.File = value
	case "search.ignore_case":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("search.ignore_case must be true or false")
		}
		s.Config.Search.IgnoreCase = b
	case "search.suggest_limit":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("search.suggest_limit must be a non-negative integer")
		}
		s.Config.Search.SuggestLimit = n
	case "export.dir":
		if value == "" {
			return fmt.Errorf("export.dir must not be empty")
		}
		s.Config.Export.Dir = value
	case "export.format":
		f, err := export.ParseFormat(value)
		if err != nil {
			return err
		}
		s.Config.Export.Format = string(f)
	default:
		return fmt.Errorf("unknown config key: %s\nValid keys: data.file, search.ignore_case, search.suggest_limit, export.dir, export.format", key)
	}
	return s.SaveConfig()
}

// Path resolves a path within the keyline home.
func (s *Store) Path(parts ...string) string {
	all := append([]string{s.Home}, parts...)
	return filepath.Join(all...)
}

// DataPath is the article file, resolved against the home when relative.
func (s *Store) DataPath() string {
	return s.resolve(s.Config.Data.File)
}

// ExportDir is where saved searches go, resolved against the home when relative.
func (s *Store) ExportDir() string {
	return s.resolve(s.Config.Export.Dir)
}

// ExportFormat is the configured export format, falling back to JSON.
func (s *Store) ExportFormat() export.Format {
	f, err := export.ParseFormat(s.Config.Export.Format)
	if err != nil {
		return export.FormatJSON
	}
	return f
}

func (s *Store) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return s.Path(p)
}

// CheckHealth verifies the keyline home structure.
func CheckHealth(home string) []Issue {
	var issues []Issue

	info, err := os.Stat(home)
	if err != nil {
		return append(issues, Issue{"error", fmt.Sprintf("missing keyline home: %s", home)})
	} else if !info.IsDir() {
		return append(issues, Issue{"error", fmt.Sprintf("expected directory but found file: %s", home)})
	}

	cfg := DefaultConfig()
	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("cannot read config.yaml: %v", err)})
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("config.yaml is not valid YAML: %v", err)})
		cfg = DefaultConfig()
	} else if _, err := export.ParseFormat(cfg.Export.Format); err != nil {
		issues = append(issues, Issue{"warning", fmt.Sprintf("config.yaml: %v", err)})
	}

	s := &Store{Home: home, Config: cfg}
	exportDir := s.ExportDir()
	if info, err := os.Stat(exportDir); err != nil {
		issues = append(issues, Issue{"warning", fmt.Sprintf("missing directory: %s", exportDir)})
	} else if !info.IsDir() {
		issues = append(issues, Issue{"error", fmt.Sprintf("expected directory but found file: %s", exportDir)})
	}

	return append(issues, CheckDataIntegrity(s.DataPath())...)
}

// CheckDataIntegrity inspects the article file without modifying it. A
// missing file is fine; it is created on the first save.
func CheckDataIntegrity(path string) []Issue {
	var issues []Issue
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return issues
	}
	if err != nil {
		return append(issues, Issue{"error", fmt.Sprintf("cannot read data file %s: %v", path, err)})
	}

	var doc catalog.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return append(issues, Issue{"error", fmt.Sprintf("data file %s is not valid JSON (it will load as empty): %v", path, err)})
	}

	seen := make(map[string]bool)
	for i, a := range doc.Articles {
		switch {
		case a.ID == "":
			issues = append(issues, Issue{"warning", fmt.Sprintf("article #%d has no id (one is assigned on load)", i+1)})
		case seen[a.ID]:
			issues = append(issues, Issue{"warning", fmt.Sprintf("article %s: duplicate id (reassigned on load)", a.ID)})
		}
		seen[a.ID] = true

		tagSeen := make(map[string]bool)
		for _, t := range a.Tags {
			if t == "" || tagSeen[t] {
				issues = append(issues, Issue{"warning", fmt.Sprintf("article %s: empty or duplicate tags (dropped on load)", a.ID)})
				break
			}
			tagSeen[t] = true
		}
	}
	return issues
}

// FixIssues attempts to repair simple issues in the keyline home. The data
// file is never touched.
func FixIssues(home string) []string {
	var fixed []string

	if _, err := os.Stat(home); err != nil {
		if err := os.MkdirAll(home, 0755); err == nil {
			fixed = append(fixed, fmt.Sprintf("created keyline home: %s", home))
		}
	}

	cfgPath := filepath.Join(home, "config.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		data, _ := yaml.Marshal(DefaultConfig())
		if os.WriteFile(cfgPath, data, 0644) == nil {
			fixed = append(fixed, "recreated missing config.yaml with defaults")
		}
	}

	s, err := Load(home)
	if err != nil {
		return fixed
	}
	if _, err := os.Stat(s.ExportDir()); err != nil {
		if err := os.MkdirAll(s.ExportDir(), 0755); err == nil {
			fixed = append(fixed, fmt.Sprintf("recreated missing directory: %s", s.Config.Export.Dir))
		}
	}

	return fixed
}
