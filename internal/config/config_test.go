package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dockscreen.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Prep.Timeout != 10*time.Second {
		t.Errorf("prep timeout = %v, want 10s", cfg.Prep.Timeout)
	}
	if cfg.Docking.Center != [3]float64{-10.6, 12.6, 68.8} {
		t.Errorf("center = %v", cfg.Docking.Center)
	}
	if cfg.Docking.CPU != 8 || cfg.Docking.Exhaustiveness != 32 {
		t.Errorf("cpu/exhaustiveness = %d/%d, want 8/32", cfg.Docking.CPU, cfg.Docking.Exhaustiveness)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") = %v", err)
	}
	if cfg.Docking.Receptor != "data/receptor.pdbqt" {
		t.Errorf("receptor = %q", cfg.Docking.Receptor)
	}
}

func TestLoad_Overlay(t *testing.T) {
	path := writeConfig(t, `
prep:
  timeout: 3s
  workers: 2
docking:
  receptor: fixtures/rec.pdbqt
  workers: 2
  transport: local
  center: [1, 2, 3]
report:
  target: Test target
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load = %v", err)
	}
	if cfg.Prep.Timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", cfg.Prep.Timeout)
	}
	if cfg.Prep.PrepWorkers() != 2 {
		t.Errorf("prep workers = %d, want 2", cfg.Prep.PrepWorkers())
	}
	if cfg.Docking.Transport != "local" || cfg.Docking.Workers != 2 {
		t.Errorf("docking = %+v", cfg.Docking)
	}
	if cfg.Docking.Center != [3]float64{1, 2, 3} {
		t.Errorf("center = %v", cfg.Docking.Center)
	}
	// untouched fields keep their defaults
	if cfg.Docking.Exhaustiveness != 32 {
		t.Errorf("exhaustiveness = %d, want 32", cfg.Docking.Exhaustiveness)
	}
	if cfg.Report.Target != "Test target" {
		t.Errorf("target = %q", cfg.Report.Target)
	}
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeConfig(t, "docking:\n  recepter: x\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

// The structure format is fixed; a config that tries to change it must fail
// loudly instead of preparing files docking never picks up.
func TestLoad_StructureFormatNotConfigurable(t *testing.T) {
	path := writeConfig(t, "prep:\n  file_extension: mol2\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "file_extension") {
		t.Fatalf("err = %v, want unknown field file_extension", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero workers", func(c *Config) { c.Docking.Workers = 0 }, "Workers"},
		{"bad transport", func(c *Config) { c.Docking.Transport = "mpi" }, "Transport"},
		{"no receptor", func(c *Config) { c.Docking.Receptor = "" }, "Receptor"},
		{"zero timeout", func(c *Config) { c.Prep.Timeout = 0 }, "Timeout"},
		{"ph out of range", func(c *Config) { c.Prep.PH = 15 }, "PH"},
		{"zero box", func(c *Config) { c.Docking.Size[1] = 0 }, "Size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}

func TestResolveEngine(t *testing.T) {
	d := Default().Docking
	d.Engine = "/opt/vina/bin/vina"
	if got := d.ResolveEngine(); got != "/opt/vina/bin/vina" {
		t.Errorf("ResolveEngine() = %q", got)
	}

	d.Engine = ""
	t.Setenv("PATH", t.TempDir())
	t.Setenv("VINA_EXECUTABLE", "/custom/vina")
	if got := d.ResolveEngine(); got != "/custom/vina" {
		t.Errorf("ResolveEngine() with env = %q, want /custom/vina", got)
	}
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "dockscreen.example.yaml"))
	if err != nil {
		t.Fatalf("example config: %v", err)
	}
	want := Default()
	if cfg.Docking != want.Docking || cfg.Report != want.Report || cfg.Store != want.Store {
		t.Errorf("example config drifted from defaults:\n got %+v\nwant %+v", cfg.Docking, want.Docking)
	}
	if cfg.Prep.Timeout != 10*time.Second || cfg.Prep.PrepWorkers() < 1 {
		t.Errorf("prep = %+v", cfg.Prep)
	}
}
