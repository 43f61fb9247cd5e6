// Package metrics exposes the engine's Prometheus counters.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Writes counts atomic content replacements performed.
	Writes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convergefs_writes_total",
		Help: "Number of file content writes performed.",
	})

	// Backups counts backups taken before modification, by kind.
	Backups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convergefs_backups_total",
		Help: "Number of pre-modification backups taken.",
	}, []string{"kind"})

	// SubtreeSkips counts subtrees dropped during recursion (permission
	// failures, child creation failures).
	SubtreeSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convergefs_subtree_skips_total",
		Help: "Number of subtrees skipped during recursion.",
	})

	// Purged counts implicitly discovered entities marked absent.
	Purged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convergefs_purged_total",
		Help: "Number of undeclared entities purged.",
	})
)

// Summary gathers the current value of every engine counter, keyed by
// metric name with label values appended, for end-of-run reporting.
func Summary() (map[string]float64, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "convergefs_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, label := range m.GetLabel() {
				name += "_" + label.GetValue()
			}
			out[name] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}
