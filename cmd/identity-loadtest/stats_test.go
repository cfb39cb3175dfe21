package main

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(samples, 0); got != 1 {
		t.Fatalf("p0 = %v", got)
	}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50 = %v", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100 = %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty = %v", got)
	}
}

func TestRunPhaseCountsFailures(t *testing.T) {
	s := runPhase(100, 4, 1, func(_ *rand.Rand, i int) error {
		if i%10 == 0 {
			return errors.New("boom")
		}
		return nil
	})
	if s.ops != 100 {
		t.Fatalf("ops = %d, want 100", s.ops)
	}
	if s.failures != 10 {
		t.Fatalf("failures = %d, want 10", s.failures)
	}
}
