// Package report turns docking outputs into a CSV summary, one HTML view per
// ligand and a manifest of the generated pages.
package report

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ResultMarker prefixes the per-pose score remark in docking output files.
const ResultMarker = "REMARK VINA RESULT:"

// Placeholder is printed for values that could not be extracted.
const Placeholder = "N/A"

// Metrics holds what the report needs from one docking output.
type Metrics struct {
	Affinity    float64
	HasAffinity bool
	HeavyAtoms  int
	Efficiency  float64
}

// AffinityText renders the affinity or the placeholder.
func (m Metrics) AffinityText() string {
	if !m.HasAffinity {
		return Placeholder
	}
	return strconv.FormatFloat(m.Affinity, 'f', -1, 64)
}

// EfficiencyText renders the ligand efficiency.
func (m Metrics) EfficiencyText() string {
	return strconv.FormatFloat(m.Efficiency, 'f', -1, 64)
}

// Efficiency returns -affinity/heavyAtoms rounded to 3 decimals, or 0 when
// either value is missing or zero.
func Efficiency(affinity float64, heavyAtoms int) float64 {
	if affinity == 0 || heavyAtoms <= 0 {
		return 0
	}
	return math.Round(-affinity/float64(heavyAtoms)*1000) / 1000
}

// ExtractMetrics reads a docking output file.
func ExtractMetrics(path string) (Metrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metrics{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	m, err := ParseMetrics(f)
	if err != nil {
		return Metrics{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// ParseMetrics scans the first model (the best pose) of a PDBQT stream. The
// affinity is the fourth token of the result remark; heavy atoms are the
// coordinate records whose atom type is not a hydrogen type.
func ParseMetrics(r io.Reader) (Metrics, error) {
	var m Metrics
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "ENDMDL") {
			break
		}
		if !m.HasAffinity && strings.Contains(line, ResultMarker) {
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				if v, err := strconv.ParseFloat(fields[3], 64); err == nil {
					m.Affinity, m.HasAffinity = v, true
				}
			}
			continue
		}
		if strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM") {
			if !isHydrogen(atomType(line)) {
				m.HeavyAtoms++
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Metrics{}, err
	}
	if m.HasAffinity {
		m.Efficiency = Efficiency(m.Affinity, m.HeavyAtoms)
	}
	return m, nil
}

// atomType returns the AutoDock atom type, the last column of a coordinate record.
func atomType(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func isHydrogen(t string) bool {
	switch strings.ToUpper(t) {
	case "H", "HD", "HS":
		return true
	}
	return false
}
