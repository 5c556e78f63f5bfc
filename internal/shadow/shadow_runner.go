// Package shadow runs an experimental driver configuration alongside a
// production one over independent copies of the same starting network
// and reports how much their substitution decisions diverge, without
// ever letting the experimental configuration touch production state.
package shadow

import (
	"time"

	"github.com/rawblock/resynth-engine/internal/config"
	"github.com/rawblock/resynth-engine/internal/database"
	"github.com/rawblock/resynth-engine/internal/diag"
	"github.com/rawblock/resynth-engine/internal/library"
	"github.com/rawblock/resynth-engine/internal/metrics"
	"github.com/rawblock/resynth-engine/internal/network"
	"github.com/rawblock/resynth-engine/internal/profiler"
	"github.com/rawblock/resynth-engine/internal/resynth"
	"github.com/rawblock/resynth-engine/internal/trackers"
)

// Result captures the divergence between a production and a shadow
// driver configuration run over two independently built but
// structurally identical networks.
type Result struct {
	ProductionStats        resynth.Stats `json:"productionStats"`
	ShadowStats            resynth.Stats `json:"shadowStats"`
	AdjustedRandIndex      float64       `json:"adjustedRandIndex"`
	VariationOfInformation float64       `json:"variationOfInformation"`
	CreatedAt              time.Time     `json:"createdAt"`
}

// Runner executes a production config and a shadow config over
// caller-supplied networks, then compares which pivots each
// configuration chose to substitute.
type Runner struct {
	lib  *library.Library
	db   *database.Database
	sink diag.Sink
}

// NewRunner builds a shadow runner sharing lib and a read-only db
// between both configurations (the database is never mutated by a
// pass — Add only happens outside resynthesis, so sharing it is safe).
func NewRunner(lib *library.Library, db *database.Database, sink diag.Sink) *Runner {
	return &Runner{lib: lib, db: db, sink: sink}
}

// Run runs prodCfg against prodNtk and shadowCfg against shadowNtk —
// the caller is responsible for handing each config its own,
// independently constructed network (e.g. decoded twice from the same
// request body) so that neither pass can affect the other or the
// caller's original network. prodNtk and shadowNtk must declare gates
// in the same order (true whenever both are built from the same
// netlist) so pivot index i names the same originating gate on both
// sides.
func (r *Runner) Run(prodNtk, shadowNtk *network.Network, prodCfg, shadowCfg config.Config) Result {
	prodStats := runPass(prodNtk, r.lib, r.db, prodCfg, r.sink)
	shadowStats := runPass(shadowNtk, r.lib, r.db, shadowCfg, r.sink)

	n := prodNtk.NumNodes()
	if shadowNtk.NumNodes() > n {
		n = shadowNtk.NumNodes()
	}
	prodLabels := substitutionLabels(prodStats, n)
	shadowLabels := substitutionLabels(shadowStats, n)

	res := Result{
		ProductionStats:        prodStats,
		ShadowStats:            shadowStats,
		AdjustedRandIndex:      metrics.AdjustedRandIndex(prodLabels, shadowLabels),
		VariationOfInformation: metrics.VariationOfInformation(prodLabels, shadowLabels),
	}
	if res.AdjustedRandIndex < 1.0 {
		r.sink.Emit(diag.Remark, "shadow: production/shadow substitution sets diverge (ARI=%.4f, VI=%.4f)", res.AdjustedRandIndex, res.VariationOfInformation)
	}
	return res
}

func runPass(ntk *network.Network, lib *library.Library, db *database.Database, cfg config.Config, sink diag.Sink) resynth.Stats {
	trk := trackers.New(ntk, lib)
	prof := profiler.NewAreaProfiler(lib)
	drv := resynth.New(ntk, lib, db, cfg, prof, trk, sink)
	return drv.RunPass()
}

// substitutionLabels turns a pass's PivotResult list into a 2-way
// partition ("substituted" vs "kept") indexed by node id, the
// pivot-population label compared across configurations via the
// contingency-table metrics in internal/metrics.
func substitutionLabels(stats resynth.Stats, n int) []int {
	labels := make([]int, n)
	for _, res := range stats.Results {
		if int(res.Pivot) < n && res.State == resynth.StateSubstituted {
			labels[res.Pivot] = 1
		}
	}
	return labels
}
