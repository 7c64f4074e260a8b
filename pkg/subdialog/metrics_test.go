package subdialog

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestMetrics_DisabledIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsEnabled = false
	m := NewMetrics(cfg, prometheus.NewRegistry())

	require.NotPanics(t, func() {
		m.recordCreated()
		m.recordTerminated(CauseForced)
		m.recordPendingRejection()
		m.recordTimerFired(timerCauseN)
	})
}

func TestMetrics_CreatedAndTerminatedTrackActiveGauge(t *testing.T) {
	cfg := DefaultConfig()
	m := NewMetrics(cfg, prometheus.NewRegistry())

	m.recordCreated()
	m.recordCreated()
	require.Equal(t, float64(2), gaugeValue(t, m.active))
	require.Equal(t, float64(2), counterValue(t, m.created))

	m.recordTerminated(CauseNotifyTimeout)
	require.Equal(t, float64(1), gaugeValue(t, m.active))
}

func TestMetrics_TimerFiredSplitsByCause(t *testing.T) {
	cfg := DefaultConfig()
	m := NewMetrics(cfg, prometheus.NewRegistry())

	m.recordTimerFired(timerCauseN)
	m.recordTimerFired(timerCauseExpires)
	m.recordTimerFired(timerCauseExpires)

	require.Equal(t, float64(1), counterValue(t, m.timerNFired))
	require.Equal(t, float64(2), counterValue(t, m.timerExpFired))
}
