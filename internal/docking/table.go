package docking

import (
	"fmt"
	"io"
	"strings"
)

// RenderTable writes results as a fixed-width table in the given order.
func RenderTable(w io.Writer, results []Result) error {
	if _, err := fmt.Fprintf(w, "%-15s | %-20s | %-10s\n", "LIGAND", "AFFINITY (kcal/mol)", "TIME (s)"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 55)); err != nil {
		return err
	}
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%-15s | %-20s | %.2f\n", r.Ligand, r.ScoreText(), r.Elapsed.Seconds()); err != nil {
			return err
		}
	}
	return nil
}
