package backup

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/keyline/internal/catalog"
	"github.com/kokistudios/keyline/internal/store"
)

// Extension is appended to backup files that lack it.
const Extension = ".keyline"

const (
	manifestName = "manifest.yaml"
	configName   = "config.yaml"
	dataName     = "articles.json"
	exportsDir   = "exports"
)

// ErrDataExists is returned by Restore when the target data file already
// holds articles and force was not given.
var ErrDataExists = errors.New("data file already exists")

// ErrCorruptData is returned by Restore when the archived article file does
// not parse. Nothing is written in that case.
var ErrCorruptData = errors.New("archived article file is not valid")

// Manifest describes the contents of a backup archive.
type Manifest struct {
	Version   string    `yaml:"version"`
	CreatedAt time.Time `yaml:"created_at"`
	DataFile  string    `yaml:"data_file"`
	Articles  int       `yaml:"articles"`
	Files     []string  `yaml:"files"`
}

// Result summarizes a restore.
type Result struct {
	Manifest       *Manifest
	DataPath       string
	ConfigRestored bool
	ExportsWritten int
	ExportsSkipped int
}

// DefaultName is the file name used when no output path is given.
func DefaultName(t time.Time) string {
	return "keyline_" + t.Format("20060102_150405") + Extension
}

// Create writes a gzipped tar holding config.yaml, the article file at
// dataPath, and every saved search under the export directory. It returns the
// path actually written.
func Create(st *store.Store, dataPath, outputPath string, now time.Time) (string, *Manifest, error) {
	if outputPath == "" {
		outputPath = DefaultName(now)
	}
	if info, err := os.Stat(outputPath); err == nil && info.IsDir() {
		outputPath = filepath.Join(outputPath, DefaultName(now))
	} else if !strings.HasSuffix(outputPath, Extension) {
		outputPath += Extension
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	defer outFile.Close()

	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)

	manifest := &Manifest{
		Version:   "1",
		CreatedAt: now.UTC(),
		DataFile:  filepath.Base(dataPath),
		Articles:  catalog.Load(dataPath).Len(),
	}

	add := func(name, path string) error {
		content, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := writeEntry(tw, name, content, now); err != nil {
			return err
		}
		manifest.Files = append(manifest.Files, name)
		return nil
	}

	if err := add(configName, st.Path(configName)); err != nil {
		return "", nil, err
	}
	if err := add(dataName, dataPath); err != nil {
		return "", nil, err
	}

	exportDir := st.ExportDir()
	entries, err := os.ReadDir(exportDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", nil, fmt.Errorf("failed to read export directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := add(exportsDir+"/"+e.Name(), filepath.Join(exportDir, e.Name())); err != nil {
			return "", nil, err
		}
	}

	manifestData, err := yaml.Marshal(manifest)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := writeEntry(tw, manifestName, manifestData, now); err != nil {
		return "", nil, err
	}

	if err := tw.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := gw.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return outputPath, manifest, nil
}

func writeEntry(tw *tar.Writer, name string, content []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Size:    int64(len(content)),
		Mode:    0644,
		ModTime: modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("failed to write tar content: %w", err)
	}
	return nil
}

// readAll loads every entry of the archive into memory.
func readAll(path string) (*Manifest, map[string][]byte, error) {
	inFile, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer inFile.Close()

	gr, err := gzip.NewReader(inFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read gzip: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	var manifest *Manifest
	files := make(map[string][]byte)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read tar: %w", err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		if header.Name == manifestName {
			manifest = &Manifest{}
			if err := yaml.Unmarshal(content, manifest); err != nil {
				return nil, nil, fmt.Errorf("failed to parse manifest: %w", err)
			}
			continue
		}
		files[header.Name] = content
	}
	if manifest == nil {
		return nil, nil, fmt.Errorf("invalid backup: manifest not found")
	}
	return manifest, files, nil
}

// ReadManifest returns the manifest of a backup without restoring it.
func ReadManifest(path string) (*Manifest, error) {
	m, _, err := readAll(path)
	return m, err
}

// Restore unpacks a backup. The article file goes to dataPath and saved
// searches go to the export directory, where existing files are kept.
// config.yaml is only restored when the home has none. An existing article
// file with articles in it is only replaced when force is set.
func Restore(st *store.Store, dataPath, backupPath string, force bool) (*Result, error) {
	manifest, files, err := readAll(backupPath)
	if err != nil {
		return nil, err
	}

	data, hasData := files[dataName]
	if hasData {
		var doc catalog.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
		}
	}

	if !force && catalog.Load(dataPath).Len() > 0 {
		return nil, fmt.Errorf("%w: %s (use --force to replace it)", ErrDataExists, dataPath)
	}

	result := &Result{Manifest: manifest, DataPath: dataPath}

	if hasData {
		if err := writeFile(dataPath, data); err != nil {
			return nil, err
		}
	}

	if cfg, ok := files[configName]; ok {
		cfgPath := st.Path(configName)
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			if err := writeFile(cfgPath, cfg); err != nil {
				return nil, err
			}
			result.ConfigRestored = true
		}
	}

	exportDir := st.ExportDir()
	for name, content := range files {
		rel := strings.TrimPrefix(name, exportsDir+"/")
		if rel == name || rel == "" || strings.Contains(rel, "/") || rel == ".." {
			continue
		}
		dest := filepath.Join(exportDir, rel)
		if _, err := os.Stat(dest); err == nil {
			result.ExportsSkipped++
			continue
		}
		if err := writeFile(dest, content); err != nil {
			return nil, err
		}
		result.ExportsWritten++
	}

	return result, nil
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
