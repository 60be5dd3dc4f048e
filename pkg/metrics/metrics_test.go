package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterCollectors(reg) })

	before := testutil.ToFloat64(AutosaveWrites.WithLabelValues(OutcomeSaved))
	AutosaveWrites.WithLabelValues(OutcomeSaved).Inc()
	require.Equal(t, before+1, testutil.ToFloat64(AutosaveWrites.WithLabelValues(OutcomeSaved)))

	// registering the same collectors twice must fail loudly
	require.Panics(t, func() { RegisterCollectors(reg) })
}
