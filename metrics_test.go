package portero

import (
	"sync"
	"testing"
)

func TestMetricsDisabledNoops(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled metrics counted: %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("disabled snapshot = %+v", snap)
	}
}

func TestMetricsCountsConcurrently(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricDoorOpenSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricDoorOpenSuccess); got != workers*perWorker {
		t.Fatalf("counter = %d, want %d", got, workers*perWorker)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricDoorOpenSuccess] != workers*perWorker {
		t.Fatalf("snapshot counter = %d", snap.Counters[MetricDoorOpenSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 0 {
		t.Fatalf("untouched counter = %d", snap.Counters[MetricLoginFailure])
	}
}

func TestMetricsIgnoresOutOfRangeID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(metricIDCount + 5)
	if got := m.Value(metricIDCount + 5); got != 0 {
		t.Fatalf("out of range counter = %d", got)
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	if m.Enabled() {
		t.Fatal("nil metrics enabled")
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("nil metrics value = %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("nil snapshot = %+v", snap)
	}
}
