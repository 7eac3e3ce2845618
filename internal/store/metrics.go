package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts store traffic. A nil *Metrics records nothing.
type Metrics struct {
	MaterialsWritten    *prometheus.CounterVec
	ObjectsDeduplicated prometheus.Counter
	BytesWritten        prometheus.Counter
	WriteFailures       prometheus.Counter
	MaterialsSelected   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	return &Metrics{
		MaterialsWritten: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "materialstore",
			Name:      "materials_written_total",
			Help:      "Index entries written, by file type",
		}, []string{"file_type"}),
		ObjectsDeduplicated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "materialstore",
			Name:      "objects_deduplicated_total",
			Help:      "Writes whose content was already stored in the run",
		}),
		BytesWritten: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "materialstore",
			Name:      "object_bytes_written_total",
			Help:      "Bytes of new objects moved into place",
		}),
		WriteFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "materialstore",
			Name:      "write_failures_total",
			Help:      "Writes that returned an error",
		}),
		MaterialsSelected: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "materialstore",
			Name:      "materials_selected_total",
			Help:      "Materials returned by Select",
		}),
	}
}

func (m *Metrics) written(fileType string, deduplicated bool, size int64) {
	if m == nil {
		return
	}
	m.MaterialsWritten.WithLabelValues(fileType).Inc()
	if deduplicated {
		m.ObjectsDeduplicated.Inc()
		return
	}
	m.BytesWritten.Add(float64(size))
}

func (m *Metrics) failed() {
	if m == nil {
		return
	}
	m.WriteFailures.Inc()
}

func (m *Metrics) selected(n int) {
	if m == nil {
		return
	}
	m.MaterialsSelected.Add(float64(n))
}
