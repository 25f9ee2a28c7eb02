package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// SummaryHeader is the fixed CSV header.
var SummaryHeader = []string{"Ligand", "Affinity (kcal/mol)", "Ligand Efficiency"}

// Record is one row of the summary.
type Record struct {
	Name    string
	Metrics Metrics
}

// WriteSummary writes records in the given order.
func WriteSummary(path string, records []Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create summary dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	w := csv.NewWriter(f)
	w.Write(SummaryHeader)
	for _, r := range records {
		w.Write([]string{r.Name, r.Metrics.AffinityText(), r.Metrics.EfficiencyText()})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	return f.Close()
}
