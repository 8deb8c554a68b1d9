package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"semaphore/classroom/internal/operations"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroom",
		Name:      "operations_total",
		Help:      "Workflow operations by outcome.",
	}, []string{"workflow", "operation", "outcome"})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroom",
		Name:      "uploads_total",
		Help:      "File store calls by kind and result.",
	}, []string{"kind", "result"})

	orphansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroom",
		Name:      "orphan_uploads_total",
		Help:      "Uploaded files left without an owning record, by stage.",
	}, []string{"stage"})

	orphanBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "classroom",
		Name:      "orphan_backlog",
		Help:      "Orphaned uploads still waiting in the ledger.",
	})
)

// Observe records the outcome of one workflow operation. Expected failures
// are labelled with their error code; anything else counts as "error".
func Observe(workflow, operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if opErr, ok := operations.As(err); ok {
			outcome = opErr.Code
		}
	}
	operationsTotal.WithLabelValues(workflow, operation, outcome).Inc()
}

func ObserveUpload(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	uploadsTotal.WithLabelValues(kind, result).Inc()
}

func ObserveOrphans(stage string, count int) {
	if count <= 0 {
		return
	}
	orphansTotal.WithLabelValues(stage).Add(float64(count))
}

func SetOrphanBacklog(size int64) {
	orphanBacklog.Set(float64(size))
}
