// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	PagesProcessed *prometheus.CounterVec
	PageDuration   prometheus.Histogram
	RefsDetected   *prometheus.CounterVec
	LinksMade      prometheus.Counter
	LinksDropped   prometheus.Counter
	Overrides      prometheus.Counter
	CaseDuration   prometheus.Histogram
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hyperlink",
			Name:      "pages_processed_total",
			Help:      "Pages run through OCR, by outcome.",
		}, []string{"outcome"}),
		PageDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hyperlink",
			Name:      "page_ocr_seconds",
			Help:      "Per-page OCR duration.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45},
		}),
		RefsDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hyperlink",
			Name:      "references_detected_total",
			Help:      "Detected references, by type.",
		}, []string{"type"}),
		LinksMade: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hyperlink",
			Name:      "links_made_total",
			Help:      "References bound to an anchor above threshold.",
		}),
		LinksDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hyperlink",
			Name:      "links_dropped_total",
			Help:      "References dropped for lack of a confident anchor.",
		}),
		Overrides: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hyperlink",
			Name:      "overrides_total",
			Help:      "Human destination overrides applied.",
		}),
		CaseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hyperlink",
			Name:      "case_pipeline_seconds",
			Help:      "End-to-end case processing duration.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// NewNop returns metrics backed by a throwaway registry, for tests and the
// CLI where scraping is pointless.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
