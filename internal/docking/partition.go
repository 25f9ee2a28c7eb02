package docking

import (
	"sort"
)

// Partition assigns task i to worker i mod workers. The returned slice always
// has one entry per worker, possibly empty.
func Partition(tasks []Task, workers int) ([][]Task, error) {
	if workers < 1 {
		return nil, ErrNoWorkers
	}
	parts := make([][]Task, workers)
	for i, t := range tasks {
		w := i % workers
		parts[w] = append(parts[w], t)
	}
	return parts, nil
}

// Merge flattens per-worker result lists in worker order and sorts them by
// score ascending (strongest predicted binding first). Failed results sort
// after every successful one. Equal keys keep arrival order.
func Merge(parts [][]Result) []Result {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	flat := make([]Result, 0, n)
	for _, p := range parts {
		flat = append(flat, p...)
	}
	sort.SliceStable(flat, func(i, j int) bool {
		a, b := flat[i], flat[j]
		if a.OK() != b.OK() {
			return a.OK()
		}
		if !a.OK() {
			return false
		}
		return a.Score < b.Score
	})
	return flat
}
