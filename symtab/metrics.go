package symtab

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	LoadErrors     *prometheus.CounterVec
	DroppedRecords *prometheus.CounterVec
	ResolvedFrames *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symres_symtab_load_errors_total",
			Help: "Total number of symbol files that failed to load",
		}, []string{"error"}),
		DroppedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symres_symtab_dropped_records_total",
			Help: "Total number of overlapping or conflicting records dropped during load",
		}, []string{"kind"}),
		ResolvedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symres_symtab_resolved_frames_total",
			Help: "Total number of frame lookups by outcome",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LoadErrors,
			m.DroppedRecords,
			m.ResolvedFrames,
		)
	}

	return m
}
