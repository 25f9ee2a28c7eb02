// Package ligand converts a table of ligand descriptors into 3D structure files.
package ligand

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// Descriptor is one row of the input table.
type Descriptor struct {
	Name   string
	SMILES string
}

// ReadTable parses a name,smiles CSV. The header row and rows with fewer
// than two columns are skipped.
func ReadTable(r io.Reader) ([]Descriptor, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var (
		out    []Descriptor
		header = true
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read table: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(row) < 2 {
			continue
		}
		out = append(out, Descriptor{
			Name:   strings.TrimSpace(row[0]),
			SMILES: strings.TrimSpace(row[1]),
		})
	}
	return out, nil
}

// SanitizeName keeps letters, digits, '-' and '_' so the name is safe as a file stem.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
