// Package metrics collects per-stage timing for a pipeline run.
package metrics

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Stage status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// TaskMetrics holds timing for one ligand within a stage.
type TaskMetrics struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
	Status   string        `json:"status"`
}

// TaskSummary holds aggregate statistics for the tasks of a stage.
type TaskSummary struct {
	Count             int           `json:"count"`
	DurationAvg       time.Duration `json:"duration_avg_ns"`
	DurationAvgStr    string        `json:"duration_avg"`
	DurationStddev    time.Duration `json:"duration_stddev_ns"`
	DurationStddevStr string        `json:"duration_stddev"`
	DurationMax       time.Duration `json:"duration_max_ns"`
	SuccessCount      int           `json:"success_count"`
	FailedCount       int           `json:"failed_count"`
}

// StageMetrics holds metrics for one pipeline stage.
type StageMetrics struct {
	Stage       string        `json:"stage"`
	StartTime   time.Time     `json:"start_time"`
	Duration    time.Duration `json:"duration_ns"`
	DurationStr string        `json:"duration"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`

	Tasks   []TaskMetrics `json:"tasks,omitempty"`
	Summary *TaskSummary  `json:"summary,omitempty"`
}

// RunMetrics holds aggregate metrics for a pipeline run.
type RunMetrics struct {
	RunID       string         `json:"run_id,omitempty"`
	StartTime   time.Time      `json:"start_time"`
	Duration    time.Duration  `json:"duration_ns"`
	DurationStr string         `json:"duration"`
	Stages      []StageMetrics `json:"stages"`

	mu sync.Mutex
}

// Collector collects metrics during a pipeline run. A nil or disabled
// Collector ignores every call.
type Collector struct {
	enabled bool
	run     *RunMetrics
	now     func() time.Time
}

// NewCollector creates a collector. If enabled is false, all operations are no-ops.
func NewCollector(enabled bool) *Collector {
	c := &Collector{enabled: enabled, now: time.Now}
	if enabled {
		c.run = &RunMetrics{StartTime: c.now(), Stages: make([]StageMetrics, 0)}
	}
	return c
}

// Enabled reports whether metrics are being collected.
func (c *Collector) Enabled() bool {
	return c != nil && c.enabled
}

// SetRunID sets the docking run ID.
func (c *Collector) SetRunID(id string) {
	if !c.Enabled() {
		return
	}
	c.run.mu.Lock()
	c.run.RunID = id
	c.run.mu.Unlock()
}

// RecordStage records a finished stage.
func (c *Collector) RecordStage(m StageMetrics) {
	if !c.Enabled() {
		return
	}
	m.DurationStr = formatDuration(m.Duration)
	if len(m.Tasks) > 0 && m.Summary == nil {
		m.Summary = Summarize(m.Tasks)
	}

	c.run.mu.Lock()
	defer c.run.mu.Unlock()
	c.run.Stages = append(c.run.Stages, m)
}

// Finalize completes collection and returns the run metrics, or nil when disabled.
func (c *Collector) Finalize() *RunMetrics {
	if !c.Enabled() {
		return nil
	}
	c.run.mu.Lock()
	defer c.run.mu.Unlock()

	c.run.Duration = c.now().Sub(c.run.StartTime)
	c.run.DurationStr = formatDuration(c.run.Duration)
	sort.SliceStable(c.run.Stages, func(i, j int) bool {
		return c.run.Stages[i].StartTime.Before(c.run.Stages[j].StartTime)
	})
	return c.run
}

// Summarize computes aggregate statistics from task metrics.
func Summarize(tasks []TaskMetrics) *TaskSummary {
	if len(tasks) == 0 {
		return nil
	}
	s := &TaskSummary{Count: len(tasks)}

	var total time.Duration
	for _, t := range tasks {
		total += t.Duration
		if t.Duration > s.DurationMax {
			s.DurationMax = t.Duration
		}
		switch t.Status {
		case StatusSuccess, StatusSkipped:
			s.SuccessCount++
		case StatusFailed:
			s.FailedCount++
		}
	}

	n := len(tasks)
	s.DurationAvg = total / time.Duration(n)
	s.DurationAvgStr = formatDuration(s.DurationAvg)

	if n > 1 {
		var sumSquaredDiff float64
		avgNs := float64(s.DurationAvg.Nanoseconds())
		for _, t := range tasks {
			diff := float64(t.Duration.Nanoseconds()) - avgNs
			sumSquaredDiff += diff * diff
		}
		s.DurationStddev = time.Duration(int64(math.Sqrt(sumSquaredDiff / float64(n))))
		s.DurationStddevStr = formatDuration(s.DurationStddev)
	}
	return s
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// PrintSummary prints a formatted summary of run metrics.
func PrintSummary(w io.Writer, m *RunMetrics) {
	if m == nil {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Pipeline Summary ===")
	if m.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", m.RunID)
	}
	fmt.Fprintf(w, "Total Duration: %s\n", m.DurationStr)
	fmt.Fprintln(w)

	if len(m.Stages) == 0 {
		return
	}

	fmt.Fprintf(w, "%-10s  %12s  %20s  %10s  %s\n", "Stage", "Duration", "Per ligand", "Ligands", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, st := range m.Stages {
		icon := "✓"
		switch st.Status {
		case StatusFailed:
			icon = "✗"
		case StatusSkipped:
			icon = "○"
		}

		perTask, count, status := "-", "-", icon+" "+st.Status
		if ss := st.Summary; ss != nil {
			perTask = ss.DurationAvgStr
			if ss.DurationStddev > 0 {
				perTask = fmt.Sprintf("%s ± %s", ss.DurationAvgStr, ss.DurationStddevStr)
			}
			count = humanize.Comma(int64(ss.Count))
			status = fmt.Sprintf("%s %s/%s", icon, humanize.Comma(int64(ss.SuccessCount)), count)
		}
		fmt.Fprintf(w, "%-10s  %12s  %20s  %10s  %s\n", st.Stage, st.DurationStr, perTask, count, status)
	}
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintln(w)
}
