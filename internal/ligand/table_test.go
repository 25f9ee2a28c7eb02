package ligand

import (
	"strings"
	"testing"
)

func TestReadTable(t *testing.T) {
	input := "name,smiles\n" +
		"aspirin, CC(=O)OC1=CC=CC=C1C(=O)O \n" +
		"lonely\n" +
		"caffeine,CN1C=NC2=C1C(=O)N(C(=O)N2C)C,extra\n" +
		"\n" +
		"ibuprofen,CC(C)CC1=CC=C(C=C1)C(C)C(=O)O\n"

	got, err := ReadTable(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	want := []Descriptor{
		{Name: "aspirin", SMILES: "CC(=O)OC1=CC=CC=C1C(=O)O"},
		{Name: "caffeine", SMILES: "CN1C=NC2=C1C(=O)N(C(=O)N2C)C"},
		{Name: "ibuprofen", SMILES: "CC(C)CC1=CC=C(C=C1)C(C)C(=O)O"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d descriptors, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReadTable_HeaderOnly(t *testing.T) {
	got, err := ReadTable(strings.NewReader("name,smiles\n"))
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d descriptors, want 0", len(got))
	}
}

func TestReadTable_Empty(t *testing.T) {
	got, err := ReadTable(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d descriptors, want 0", len(got))
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"aspirin", "aspirin"},
		{"ZINC-000_123", "ZINC-000_123"},
		{"Compound (R)/3.5", "CompoundR35"},
		{"a b\tc", "abc"},
		{"../../etc/passwd", "etcpasswd"},
		{"!!!", ""},
		{"ß-lactam", "ß-lactam"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
