package token

import (
	"sync"
	"testing"
)

func TestMetrics_snapshot(t *testing.T) {
	metrics := NewMetrics(DefaultPolicy())

	if got := metrics.Snapshot().SecurityLevel; got != LevelUnknown {
		t.Errorf("empty metrics level = %s, want unknown", got)
	}

	metrics.RecordGenerated(40)
	metrics.RecordGenerated(44)
	metrics.RecordValidationFailure()

	snapshot := metrics.Snapshot()
	if snapshot.TokensGenerated != 2 {
		t.Errorf("tokens generated = %d, want 2", snapshot.TokensGenerated)
	}
	if snapshot.ValidationFailures != 1 {
		t.Errorf("validation failures = %d, want 1", snapshot.ValidationFailures)
	}
	if snapshot.AverageEntropyBits != 42 {
		t.Errorf("average entropy = %f, want 42", snapshot.AverageEntropyBits)
	}
	if snapshot.SecurityLevel != LevelStrong {
		t.Errorf("level = %s, want strong", snapshot.SecurityLevel)
	}
}

func TestMetrics_levels(t *testing.T) {
	metrics := NewMetrics(DefaultPolicy())
	metrics.RecordGenerated(25)
	if got := metrics.Snapshot().SecurityLevel; got != LevelAcceptable {
		t.Errorf("level = %s, want acceptable", got)
	}

	metrics.Reset()
	metrics.RecordGenerated(10)
	if got := metrics.Snapshot().SecurityLevel; got != LevelWeak {
		t.Errorf("level = %s, want weak", got)
	}
}

func TestMetrics_reset(t *testing.T) {
	metrics := NewMetrics(DefaultPolicy())
	metrics.RecordGenerated(40)
	metrics.RecordValidationFailure()
	metrics.Reset()

	snapshot := metrics.Snapshot()
	if snapshot.TokensGenerated != 0 || snapshot.ValidationFailures != 0 || snapshot.AverageEntropyBits != 0 {
		t.Errorf("reset did not zero counters: %+v", snapshot)
	}
}

func TestMetrics_concurrent(t *testing.T) {
	metrics := NewMetrics(DefaultPolicy())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.RecordGenerated(40)
			metrics.RecordValidationFailure()
			_ = metrics.Snapshot()
		}()
	}
	wg.Wait()

	snapshot := metrics.Snapshot()
	if snapshot.TokensGenerated != 50 || snapshot.ValidationFailures != 50 {
		t.Errorf("concurrent counts = %d/%d, want 50/50", snapshot.TokensGenerated, snapshot.ValidationFailures)
	}
}
