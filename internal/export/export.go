package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/keyline/internal/article"
)

var (
	ErrNoResults     = errors.New("no results to export")
	ErrUnknownFormat = errors.New("unsupported export format")
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml". Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w %q: use json or yaml", ErrUnknownFormat, s)
	}
}

// Result is a saved search.
type Result struct {
	SearchType string           `json:"search_type" yaml:"search_type"`
	Keywords   []string         `json:"keywords" yaml:"keywords"`
	SearchTime time.Time        `json:"search_time" yaml:"search_time"`
	Results    []article.Record `json:"results" yaml:"results"`
}

// NewResult captures a finished search at time at.
func NewResult(searchType string, keywords []string, found []article.Article, at time.Time) Result {
	r := Result{
		SearchType: searchType,
		Keywords:   append([]string{}, keywords...),
		SearchTime: at,
		Results:    make([]article.Record, len(found)),
	}
	for i, a := range found {
		r.Results[i] = a.ToRecord()
	}
	return r
}

// FileName is search_result_<YYYYMMDD_HHMMSS>.<ext>, formatted in t's location.
func FileName(t time.Time, f Format) string {
	return fmt.Sprintf("search_result_%s.%s", t.Format("20060102_150405"), f)
}

// Marshal encodes r in format f.
func Marshal(r Result, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("marshaling JSON: %w", err)
		}
		return buf.Bytes(), nil
	case FormatYAML:
		data, err := yaml.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshaling YAML: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
}

// Write saves r under dir and returns the file path. Empty results are
// refused with ErrNoResults.
func Write(dir string, r Result, f Format) (string, error) {
	if len(r.Results) == 0 {
		return "", ErrNoResults
	}
	data, err := Marshal(r, f)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(r.SearchTime, f))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// Read loads an export file, picking the decoder from the extension.
func Read(path string) (Result, error) {
	var r Result
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("cannot read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &r)
	default:
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return r, fmt.Errorf("invalid export file %s: %w", path, err)
	}
	return r, nil
}
