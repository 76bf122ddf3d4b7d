package pairing_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/batchlors/hydropair/pairing"
)

func TestBindingStats_String_NoSamples_DoesNotPanic(t *testing.T) {
	s := pairing.NewBindingStats()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("String() panicked with no samples: %v", r)
		}
	}()

	out := s.String()
	if !strings.Contains(out, "binding latency") {
		t.Fatalf("String() missing header: %s", out)
	}
}

func TestBindingStats_Snapshot_OneSample(t *testing.T) {
	s := pairing.NewBindingStats()
	s.Record(pairing.ResultSuccess, 314)

	count, mean, min, max := s.Snapshot(pairing.ResultSuccess)
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	want := 314 * time.Millisecond
	if mean != want || min != want || max != want {
		t.Fatalf("mean=%v min=%v max=%v, want all %v", mean, min, max, want)
	}
}

func TestBindingStats_Snapshot_TwoSamples(t *testing.T) {
	s := pairing.NewBindingStats()
	s.Record(pairing.ResultTimeout, 100)
	s.Record(pairing.ResultTimeout, 300)

	count, mean, min, max := s.Snapshot(pairing.ResultTimeout)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if mean != 200*time.Millisecond {
		t.Fatalf("mean = %v, want 200ms", mean)
	}
	if min != 100*time.Millisecond {
		t.Fatalf("min = %v, want 100ms", min)
	}
	if max != 300*time.Millisecond {
		t.Fatalf("max = %v, want 300ms", max)
	}
}

func TestBindingStats_Snapshot_BucketsAreIndependent(t *testing.T) {
	s := pairing.NewBindingStats()
	s.Record(pairing.ResultSuccess, 50)

	count, _, _, _ := s.Snapshot(pairing.ResultNodeRejected)
	if count != 0 {
		t.Fatalf("unrelated bucket count = %d, want 0", count)
	}
}

func TestBindingStats_String_ReflectsSamples(t *testing.T) {
	s := pairing.NewBindingStats()
	s.Record(pairing.ResultSuccess, 10)

	out := s.String()
	if !strings.Contains(out, "samples=1") {
		t.Fatalf("String() did not report the recorded sample: %s", out)
	}
}

func TestBindingStats_ConcurrentRecord(t *testing.T) {
	s := pairing.NewBindingStats()

	const n = 1000
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.Record(pairing.ResultSuccess, 1)
		}()
	}
	wg.Wait()

	count, mean, min, max := s.Snapshot(pairing.ResultSuccess)
	if count != n {
		t.Fatalf("count = %d, want %d", count, n)
	}
	if mean != time.Millisecond || min != time.Millisecond || max != time.Millisecond {
		t.Fatalf("mean=%v min=%v max=%v, want all 1ms", mean, min, max)
	}
}
