package pairing_test

import (
	"testing"

	"github.com/batchlors/hydropair/pairing"
)

func TestDeadlineTimer_NotRunningByDefault(t *testing.T) {
	var timer pairing.DeadlineTimer
	if timer.Running() {
		t.Fatal("zero-value timer should not be running")
	}
	if timer.Expired(1_000_000) {
		t.Fatal("zero-value timer should never be expired")
	}
}

func TestDeadlineTimer_ExpiresAtDeadline(t *testing.T) {
	var timer pairing.DeadlineTimer
	timer.Set(1000, 500)

	if timer.Expired(1499) {
		t.Fatal("timer expired early")
	}
	if !timer.Expired(1500) {
		t.Fatal("timer should be expired exactly at the deadline")
	}
	if !timer.Expired(2000) {
		t.Fatal("timer should stay expired after the deadline")
	}
}

func TestDeadlineTimer_Clear(t *testing.T) {
	var timer pairing.DeadlineTimer
	timer.Set(0, 100)
	timer.Clear()
	if timer.Running() {
		t.Fatal("Clear should stop the timer from running")
	}
	if timer.Expired(1_000_000) {
		t.Fatal("a cleared timer should never report expired")
	}
}

func TestDeadlineTimer_Remaining(t *testing.T) {
	var timer pairing.DeadlineTimer
	timer.Set(1000, 500)

	if got := timer.Remaining(1000); got != 500 {
		t.Fatalf("Remaining at start = %d, want 500", got)
	}
	if got := timer.Remaining(1400); got != 100 {
		t.Fatalf("Remaining near deadline = %d, want 100", got)
	}
	if got := timer.Remaining(2000); got != 0 {
		t.Fatalf("Remaining past deadline = %d, want 0 (saturating)", got)
	}
}

func TestDeadlineTimer_RemainingWhenNotRunning(t *testing.T) {
	var timer pairing.DeadlineTimer
	if got := timer.Remaining(100); got != 0 {
		t.Fatalf("Remaining on a stopped timer = %d, want 0", got)
	}
}

func TestDeadlineTimer_ReSetExtendsDeadline(t *testing.T) {
	var timer pairing.DeadlineTimer
	timer.Set(0, 100)
	timer.Set(50, 100)
	if timer.Expired(100) {
		t.Fatal("re-Set should push the deadline out to 150")
	}
	if !timer.Expired(150) {
		t.Fatal("timer should expire at the new deadline")
	}
}
