package rocker

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var (
	opsGet            = metrics.GetOrCreateCounter(`rocker_operations_total{op="get"}`)
	opsPut            = metrics.GetOrCreateCounter(`rocker_operations_total{op="put"}`)
	opsDelete         = metrics.GetOrCreateCounter(`rocker_operations_total{op="delete"}`)
	opsApply          = metrics.GetOrCreateCounter(`rocker_operations_total{op="apply"}`)
	opsCreateKeyspace = metrics.GetOrCreateCounter(`rocker_operations_total{op="create_keyspace"}`)
	opsDropKeyspace   = metrics.GetOrCreateCounter(`rocker_operations_total{op="drop_keyspace"}`)
	opsNext           = metrics.GetOrCreateCounter(`rocker_operations_total{op="next"}`)

	batchedOps    = metrics.GetOrCreateCounter(`rocker_batch_operations_total`)
	dbsOpened     = metrics.GetOrCreateCounter(`rocker_databases_opened_total`)
	dbsReleased   = metrics.GetOrCreateCounter(`rocker_databases_released_total`)
	cursorsOpened = metrics.GetOrCreateCounter(`rocker_cursors_opened_total`)
	cursorsClosed = metrics.GetOrCreateCounter(`rocker_cursors_closed_total`)
)

// WriteMetrics writes the process-wide operation counters in Prometheus text
// format.
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
