package loader

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	SegmentsMapped *prometheus.CounterVec
	BytesCopied    prometheus.Counter
	MappedBytes    prometheus.Counter
	LoadFailures   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SegmentsMapped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elfload_segments_mapped_total",
			Help: "Total number of segments mapped, by protection",
		}, []string{"prot"}),
		BytesCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elfload_segment_bytes_copied_total",
			Help: "Total number of file bytes copied into mappings",
		}),
		MappedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elfload_mapped_bytes_total",
			Help: "Total number of bytes mapped, including page padding",
		}),
		LoadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elfload_load_failures_total",
			Help: "Total number of failed loads, by failing step",
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SegmentsMapped,
			m.BytesCopied,
			m.MappedBytes,
			m.LoadFailures,
		)
	}

	return m
}
