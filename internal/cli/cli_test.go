package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/me/dockscreen/internal/docking"
	"github.com/me/dockscreen/internal/logging"
	"github.com/me/dockscreen/internal/pipeline"
	"github.com/me/dockscreen/internal/store"
)

const fakeObabel = `#!/bin/sh
out=""
smiles=""
while [ $# -gt 0 ]; do
  case "$1" in
    -O) out="$2"; shift ;;
    -:*) smiles="${1#-:}" ;;
  esac
  shift
done
[ "$smiles" = "XXX" ] && exit 1
printf 'ATOM      1  C   UNL     1       0.000   0.000   0.000  1.00  0.00     0.000 C\n' > "$out"
`

const fakeVina = `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --ligand) lig="$2"; shift ;;
    --out) out="$2"; shift ;;
  esac
  shift
done
name=$(basename "$lig" .pdbqt)
case "$name" in
  aspirin) score=-6.5 ;;
  caffeine) score=-8.1 ;;
  *) echo "Error: cannot parse ligand" >&2; exit 1 ;;
esac
printf 'MODEL 1\nREMARK VINA RESULT:    %s      0.000      0.000\nATOM      1  C   UNL     1       0.000   0.000   0.000  1.00  0.00     0.000 C\nATOM      2  O   UNL     1       1.000   0.000   0.000  1.00  0.00     0.000 OA\nENDMDL\n' "$score" > "$out"
printf 'mode |   affinity\n-----+-----------\n   1       %s          0          0\n' "$score"
`

const screenTable = `name,smiles
aspirin,CC(=O)OC1=CC=CC=C1C(=O)O
caffeine,CN1C=NC2=C1C(=O)N(C(=O)N2C)C
broken,XXX
menthol,CC(C)C1CCC(C)CC1O
`

type workspace struct {
	root   string
	config string
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
}

// newWorkspace lays out fake binaries, inputs and a config file in a temp dir.
func newWorkspace(t *testing.T) workspace {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binaries are shell scripts")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bin", "obabel"), fakeObabel, 0o755)
	writeFile(t, filepath.Join(root, "bin", "vina"), fakeVina, 0o755)
	writeFile(t, filepath.Join(root, "data", "test.csv"), screenTable, 0o644)
	writeFile(t, filepath.Join(root, "data", "receptor.pdbqt"), "ATOM      1  N   SER A   1\n", 0o644)

	cfg := fmt.Sprintf(`prep:
  input_csv: %[1]s/data/test.csv
  output_dir: %[1]s/ligands
  converter: %[1]s/bin/obabel
  timeout: 5s
  workers: 2
docking:
  engine: %[1]s/bin/vina
  receptor: %[1]s/data/receptor.pdbqt
  ligand_dir: %[1]s/ligands
  results_dir: %[1]s/results
  workers: 2
  transport: local
report:
  views_dir: %[1]s/views
  summary_path: %[1]s/final_summary.csv
store:
  path: %[1]s/state/runs.db
`, root)
	path := filepath.Join(root, "screen.yaml")
	writeFile(t, path, cfg, 0o644)
	return workspace{root: root, config: path}
}

func runCLI(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := NewRootCmd("v0.0.0-test")

	var out, errBuf bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errBuf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err = root.Execute()
	return out.String(), errBuf.String(), err
}

func TestRootCommand_ListsSubcommands(t *testing.T) {
	out, _, err := runCLI(t, "", "--help")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"run", "prepare", "dock", "report", "serve", "history", "check"} {
		if !strings.Contains(out, name) {
			t.Errorf("help missing %q:\n%s", name, out)
		}
	}
	if strings.Contains(out, "\n  worker ") {
		t.Error("worker subcommand should be hidden")
	}
}

func TestVersionFlag(t *testing.T) {
	out, _, err := runCLI(t, "", "--version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "v0.0.0-test") {
		t.Errorf("version output = %q", out)
	}
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "docking:\n  transport: carrier-pigeon\n", 0o644)
	_, _, err := runCLI(t, "", "--config", path, "check")
	if err == nil || !strings.Contains(err.Error(), "Transport") {
		t.Fatalf("err = %v, want transport validation error", err)
	}
}

func TestUnknownLogFormat(t *testing.T) {
	_, _, err := runCLI(t, "", "--log-format", "xml", "check")
	if err == nil || !strings.Contains(err.Error(), "log format") {
		t.Fatalf("err = %v, want log format error", err)
	}
}

func TestRunCommand_EndToEnd(t *testing.T) {
	ws := newWorkspace(t)
	metricsPath := filepath.Join(ws.root, "metrics.json")

	out, stderr, err := runCLI(t, "", "--config", ws.config, "--metrics", "--metrics-file", metricsPath, "run")
	if err != nil {
		t.Fatalf("run: %v\nstdout:\n%s\nstderr:\n%s", err, out, stderr)
	}

	iCaf := strings.Index(out, "caffeine        | -8.1")
	iAsp := strings.Index(out, "aspirin         | -6.5")
	iMen := strings.Index(out, "menthol         | 999.9 (failed)")
	if iCaf < 0 || iAsp < 0 || iMen < 0 || !(iCaf < iAsp && iAsp < iMen) {
		t.Errorf("ranked table wrong (caffeine=%d aspirin=%d menthol=%d):\n%s", iCaf, iAsp, iMen, out)
	}
	if !strings.Contains(out, "Structures ready: 3/4") {
		t.Errorf("missing prep summary:\n%s", out)
	}
	if !strings.Contains(stderr, "Pipeline Summary") {
		t.Errorf("--metrics should print a summary on stderr:\n%s", stderr)
	}

	summary, err := os.ReadFile(filepath.Join(ws.root, "final_summary.csv"))
	if err != nil {
		t.Fatal(err)
	}
	want := "Ligand,Affinity (kcal/mol),Ligand Efficiency\naspirin,-6.5,3.25\ncaffeine,-8.1,4.05\n"
	if string(summary) != want {
		t.Errorf("summary =\n%s\nwant\n%s", summary, want)
	}
	for _, f := range []string{"manifest.json", "manifest.js", "aspirin.html", "caffeine.html"} {
		if _, err := os.Stat(filepath.Join(ws.root, "views", f)); err != nil {
			t.Errorf("missing view artifact %s: %v", f, err)
		}
	}

	raw, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	var m struct {
		RunID  string `json:"run_id"`
		Stages []struct {
			Stage string `json:"stage"`
		} `json:"stages"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Stages) != 3 || !strings.HasPrefix(m.RunID, "run_") {
		t.Errorf("metrics = %+v", m)
	}

	// The run is recorded in history.
	out, _, err = runCLI(t, "", "--config", ws.config, "--quiet", "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	id := regexp.MustCompile(`run_[0-9a-f-]+`).FindString(out)
	if id != m.RunID {
		t.Fatalf("history lists %q, want %q:\n%s", id, m.RunID, out)
	}

	out, _, err = runCLI(t, "", "--config", ws.config, "--quiet", "history", id)
	if err != nil {
		t.Fatalf("history %s: %v", id, err)
	}
	if !strings.Contains(out, "Workers: 2, ligands: 3 (2 ok, 1 failed)") {
		t.Errorf("run detail:\n%s", out)
	}
	if i, j := strings.Index(out, "caffeine"), strings.Index(out, "aspirin"); i < 0 || j < 0 || i > j {
		t.Errorf("stored ranking lost:\n%s", out)
	}
}

func TestRunCommand_AbortsOnStageFailure(t *testing.T) {
	ws := newWorkspace(t)
	os.Remove(filepath.Join(ws.root, "data", "receptor.pdbqt"))

	_, _, err := runCLI(t, "", "--config", ws.config, "--quiet", "run")
	if err == nil {
		t.Fatal("expected error")
	}
	if stage := pipeline.FailedStage(err); stage != pipeline.StageDock {
		t.Errorf("failed stage = %q, want dock", stage)
	}
	if _, err := os.Stat(filepath.Join(ws.root, "final_summary.csv")); !os.IsNotExist(err) {
		t.Errorf("no summary expected after an aborted run: %v", err)
	}
}

func TestStageCommands(t *testing.T) {
	ws := newWorkspace(t)

	out, _, err := runCLI(t, "", "--config", ws.config, "--quiet", "prepare")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !strings.Contains(out, "Rate:") {
		t.Errorf("prepare output:\n%s", out)
	}

	out, _, err = runCLI(t, "", "--config", ws.config, "--quiet", "dock", "--workers", "3")
	if err != nil {
		t.Fatalf("dock: %v", err)
	}
	if !strings.Contains(out, "Docking on 3 workers.") {
		t.Errorf("dock output:\n%s", out)
	}

	out, _, err = runCLI(t, "", "--config", ws.config, "--quiet", "report")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, "Generating 2 reports...") {
		t.Errorf("report output:\n%s", out)
	}
}

func TestCheckCommand_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.yaml")
	writeFile(t, path, "docking:\n  engine: /opt/vina\n  transport: local\n", 0o644)

	out, _, err := runCLI(t, "", "--config", path, "--quiet", "check", "--workers", "3")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("check output:\n%s", out)
	}
	for rank, line := range lines {
		prefix := fmt.Sprintf("worker %d/3 running on ", rank)
		if !strings.HasPrefix(line, prefix) || !strings.Contains(line, fmt.Sprintf("(pid %d)", os.Getpid())) {
			t.Errorf("line %d = %q", rank, line)
		}
	}
}

func TestWorkerCommand_Probe(t *testing.T) {
	out, _, err := runCLI(t, `{"mode":"probe","rank":1,"size":2}`, "--quiet", "dock", "worker")
	if err != nil {
		t.Fatalf("worker: %v", err)
	}
	var reply docking.Reply
	if err := json.Unmarshal([]byte(out), &reply); err != nil {
		t.Fatalf("reply is not JSON: %v\n%s", err, out)
	}
	if reply.Worker.Rank != 1 || reply.Worker.Size != 2 || len(reply.Results) != 0 {
		t.Errorf("reply = %+v", reply)
	}
}

func TestWorkerCommand_BadEnvelope(t *testing.T) {
	if _, _, err := runCLI(t, "not json", "--quiet", "dock", "worker"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestHistory_Disabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nostore.yaml")
	writeFile(t, path, "store:\n  path: \"\"\n", 0o644)
	_, _, err := runCLI(t, "", "--config", path, "history")
	if err != errHistoryDisabled {
		t.Fatalf("err = %v, want %v", err, errHistoryDisabled)
	}
}

func TestHistory_UnknownRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	writeFile(t, path, fmt.Sprintf("store:\n  path: %s/runs.db\n", dir), 0o644)

	st, err := store.NewSQLiteStore(filepath.Join(dir, "runs.db"), logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	started := time.Now().Add(-2 * time.Hour).UTC()
	if err := st.RecordRun(ctx, &docking.Report{RunID: "run_known", StartedAt: started, CompletedAt: started.Add(time.Minute), Workers: 1}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	out, _, err := runCLI(t, "", "--config", path, "--quiet", "history")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "run_known") || !strings.Contains(out, "2 hours ago") {
		t.Errorf("history output:\n%s", out)
	}

	if _, _, err := runCLI(t, "", "--config", path, "--quiet", "history", "run_missing"); err == nil {
		t.Fatal("expected not found error")
	}
}
