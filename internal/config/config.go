// Package config holds the explicit configuration passed into every pipeline stage.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration.
type Config struct {
	Prep    PrepConfig    `yaml:"prep"`
	Docking DockingConfig `yaml:"docking"`
	Report  ReportConfig  `yaml:"report"`
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
}

// PrepConfig configures ligand preparation.
type PrepConfig struct {
	InputCSV    string        `yaml:"input_csv" validate:"required"`
	OutputDir   string        `yaml:"output_dir" validate:"required"`
	Converter   string        `yaml:"converter" validate:"required"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	PH          float64       `yaml:"ph" validate:"gte=0,lte=14"`
	ChargeModel string        `yaml:"charge_model"`
	Workers     int           `yaml:"workers" validate:"gte=0"` // 0 means runtime.NumCPU()
}

// StructureExt is the extension of prepared ligands and docked poses. The
// converter picks its output format from it and the engine only reads PDBQT.
const StructureExt = ".pdbqt"

// DockingConfig configures the docking engine and the worker layout.
type DockingConfig struct {
	Engine         string     `yaml:"engine"` // empty resolves via $PATH, then $VINA_EXECUTABLE
	Receptor       string     `yaml:"receptor" validate:"required"`
	LigandDir      string     `yaml:"ligand_dir" validate:"required"`
	ResultsDir     string     `yaml:"results_dir" validate:"required"`
	Center         [3]float64 `yaml:"center"`
	Size           [3]float64 `yaml:"size" validate:"dive,gt=0"`
	CPU            int        `yaml:"cpu" validate:"gte=1"`
	Exhaustiveness int        `yaml:"exhaustiveness" validate:"gte=1"`
	Workers        int        `yaml:"workers" validate:"gte=1"`
	Transport      string     `yaml:"transport" validate:"oneof=process local"`
}

// ReportConfig configures report generation.
type ReportConfig struct {
	ViewsDir     string `yaml:"views_dir" validate:"required"`
	SummaryPath  string `yaml:"summary_path" validate:"required"`
	Target       string `yaml:"target"`
	PipelineName string `yaml:"pipeline_name"`
	EngineName   string `yaml:"engine_name"`
	ViewerScript string `yaml:"viewer_script" validate:"required"`
}

// StoreConfig configures the run history database. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the view server.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Default returns the configuration of a standard screen against the 6LU7 active site.
func Default() Config {
	return Config{
		Prep: PrepConfig{
			InputCSV:      "data/test.csv",
			OutputDir:     "ligands",
			Converter:     "obabel",
			Timeout:       10 * time.Second,
			PH:            7.4,
			ChargeModel:   "gasteiger",
			Workers:       runtime.NumCPU(),
		},
		Docking: DockingConfig{
			Receptor:       "data/receptor.pdbqt",
			LigandDir:      "ligands",
			ResultsDir:     "results",
			Center:         [3]float64{-10.6, 12.6, 68.8},
			Size:           [3]float64{30, 30, 30},
			CPU:            8,
			Exhaustiveness: 32,
			Workers:        8,
			Transport:      "process",
		},
		Report: ReportConfig{
			ViewsDir:     "views",
			SummaryPath:  "final_summary.csv",
			Target:       "SARS-CoV-2 Mpro (6LU7)",
			PipelineName: "dockscreen",
			EngineName:   "AutoDock Vina",
			ViewerScript: "https://cdn.jsdelivr.net/npm/ngl@2.3.1/dist/ngl.js",
		},
		Store: StoreConfig{
			Path: ".dockscreen/runs.db",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads a YAML file and overlays it on Default. Unknown keys are rejected.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := decode(bytes.NewReader(data), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and returns a readable error listing every violation.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// PrepWorkers returns the preparation pool size.
func (p PrepConfig) PrepWorkers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}

// ResolveEngine returns the docking engine path: the configured value,
// then "vina" on $PATH, then $VINA_EXECUTABLE.
func (d DockingConfig) ResolveEngine() string {
	if d.Engine != "" {
		return d.Engine
	}
	if p, err := exec.LookPath("vina"); err == nil {
		return p
	}
	if env := os.Getenv("VINA_EXECUTABLE"); env != "" {
		return env
	}
	return "vina"
}
