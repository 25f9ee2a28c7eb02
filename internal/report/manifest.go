package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TimestampLayout formats the manifest generation time.
const TimestampLayout = "2006-01-02 15:04:05"

// ScriptVariable is the global the script form of the manifest assigns.
const ScriptVariable = "window.VIEWS_MANIFEST"

// Page is one generated view.
type Page struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// Manifest lists every generated view.
type Manifest struct {
	GeneratedAt string `json:"generated_at"`
	Pages       []Page `json:"pages"`
}

// NewManifest starts an empty manifest stamped with t.
func NewManifest(t time.Time) *Manifest {
	return &Manifest{GeneratedAt: t.Format(TimestampLayout), Pages: []Page{}}
}

// Add records a generated page.
func (m *Manifest) Add(name, file string) {
	m.Pages = append(m.Pages, Page{Name: name, File: file})
}

// Write persists the manifest as manifest.json and manifest.js in dir. Both
// files carry the same payload.
func (m *Manifest) Write(dir string) (jsonPath, jsPath string, err error) {
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encode manifest: %w", err)
	}

	jsonPath = filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(jsonPath, payload, 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", jsonPath, err)
	}

	script := make([]byte, 0, len(payload)+len(ScriptVariable)+8)
	script = append(script, ScriptVariable+" = "...)
	script = append(script, payload...)
	script = append(script, ";\n"...)
	jsPath = filepath.Join(dir, "manifest.js")
	if err := os.WriteFile(jsPath, script, 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", jsPath, err)
	}
	return jsonPath, jsPath, nil
}

// ReadManifest loads manifest.json from dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
