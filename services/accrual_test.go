package services

import (
	"testing"
	"time"

	"pall-network-service/models"
)

func TestAccruedBoundaries(t *testing.T) {
	est := NewAccrualEstimator(24*time.Hour, 1*models.MicroPerToken)

	if got := est.Accrued(0, models.MultiplierBaseBp); got != 0 {
		t.Fatalf("accrued(0) = %d, want 0", got)
	}
	if got := est.Accrued(-time.Second, models.MultiplierBaseBp); got != 0 {
		t.Fatalf("accrued(negative) = %d, want 0", got)
	}
	if got := est.Accrued(24*time.Hour, models.MultiplierBaseBp); got != 1*models.MicroPerToken {
		t.Fatalf("accrued(full) = %d, want %d", got, 1*models.MicroPerToken)
	}
	// Clamped past the duration.
	if got := est.Accrued(48*time.Hour, models.MultiplierBaseBp); got != 1*models.MicroPerToken {
		t.Fatalf("accrued(2x duration) = %d, want clamp at %d", got, 1*models.MicroPerToken)
	}
}

func TestAccruedMultiplier(t *testing.T) {
	est := NewAccrualEstimator(24*time.Hour, 1*models.MicroPerToken)

	// 1.5x package on a full session pays exactly 1.5 tokens.
	if got := est.Accrued(24*time.Hour, 15000); got != 1_500_000 {
		t.Fatalf("accrued(full, 1.5x) = %d, want 1500000", got)
	}
	// Half a session at 2x equals a full session at 1x.
	if got := est.Accrued(12*time.Hour, 20000); got != 1*models.MicroPerToken {
		t.Fatalf("accrued(half, 2x) = %d, want %d", got, 1*models.MicroPerToken)
	}
	// Zero multiplier falls back to base speed instead of paying nothing.
	if got := est.Accrued(24*time.Hour, 0); got != 1*models.MicroPerToken {
		t.Fatalf("accrued(full, 0bp) = %d, want base fallback %d", got, 1*models.MicroPerToken)
	}
}

func TestAccruedMonotonic(t *testing.T) {
	est := NewAccrualEstimator(24*time.Hour, 1*models.MicroPerToken)

	var prev int64 = -1
	// Sample every minute across the whole session plus an hour past it.
	for m := 0; m <= 25*60; m++ {
		got := est.Accrued(time.Duration(m)*time.Minute, models.MultiplierBaseBp)
		if got < prev {
			t.Fatalf("accrual decreased at minute %d: %d < %d", m, got, prev)
		}
		if got > 1*models.MicroPerToken {
			t.Fatalf("accrual exceeded full reward at minute %d: %d", m, got)
		}
		prev = got
	}
}

func TestRemaining(t *testing.T) {
	est := NewAccrualEstimator(24*time.Hour, 1*models.MicroPerToken)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if got := est.Remaining(start, start.Add(10*time.Hour)); got != 14*time.Hour {
		t.Fatalf("remaining after 10h = %v, want 14h", got)
	}
	// Clamps at zero once the session has fully elapsed.
	if got := est.Remaining(start, start.Add(30*time.Hour)); got != 0 {
		t.Fatalf("remaining after 30h = %v, want 0", got)
	}
}
