package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
		IncBookingCreated("rental")
		IncConflict("overlap")
		IncReconnect("ok")
		IncCacheRefresh("commit", "ok")
	})
}

func TestSetLocationStatuses(t *testing.T) {
	SetLocationStatuses(map[string]int{"Disponibil": 3, "Rezervat": 1})
	assert.Equal(t, 2, countSeries(t, locations))

	SetLocationStatuses(map[string]int{"Închiriat": 2})
	assert.Equal(t, 1, countSeries(t, locations))
}

func countSeries(t *testing.T, c prometheus.Collector) int {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)
	n := 0
	for _, f := range families {
		n += len(f.GetMetric())
	}
	return n
}
