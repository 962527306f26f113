package chat

import (
	"math"
	"testing"
	"time"
)

func TestComputeStats_Rounding(t *testing.T) {
	stats := computeStats(50, 2500*time.Millisecond)

	if stats.Tokens != 50 {
		t.Errorf("Expected 50 tokens, got %d", stats.Tokens)
	}
	if stats.ElapsedSeconds != 2.5 {
		t.Errorf("Expected elapsed 2.5, got %v", stats.ElapsedSeconds)
	}
	if stats.TokensPerSecond != 20.0 {
		t.Errorf("Expected rate 20.0, got %v", stats.TokensPerSecond)
	}
}

func TestComputeStats_ZeroElapsedGuard(t *testing.T) {
	// 4ms rounds to 0.00 seconds; the rate must fall back to the token
	// count instead of dividing by zero.
	stats := computeStats(3, 4*time.Millisecond)

	if stats.ElapsedSeconds != 0 {
		t.Errorf("Expected elapsed 0, got %v", stats.ElapsedSeconds)
	}
	if stats.TokensPerSecond != 3 {
		t.Errorf("Expected rate 3, got %v", stats.TokensPerSecond)
	}
	if math.IsInf(stats.TokensPerSecond, 0) || math.IsNaN(stats.TokensPerSecond) {
		t.Errorf("Rate must never be Inf or NaN, got %v", stats.TokensPerSecond)
	}
}

func TestComputeStats_RateMatchesRatio(t *testing.T) {
	cases := []struct {
		tokens  int
		elapsed time.Duration
	}{
		{1, 10 * time.Millisecond},
		{17, 830 * time.Millisecond},
		{400, 12 * time.Second},
		{1000, 90 * time.Second},
	}

	for _, tc := range cases {
		stats := computeStats(tc.tokens, tc.elapsed)

		if math.IsInf(stats.TokensPerSecond, 0) || math.IsNaN(stats.TokensPerSecond) {
			t.Fatalf("tokens=%d elapsed=%v: rate is %v", tc.tokens, tc.elapsed, stats.TokensPerSecond)
		}

		expected := float64(tc.tokens) / math.Max(stats.ElapsedSeconds, 0.01)
		if stats.ElapsedSeconds > 0 && math.Abs(stats.TokensPerSecond-expected) > 0.06 {
			t.Errorf("tokens=%d elapsed=%v: rate %v too far from %v",
				tc.tokens, tc.elapsed, stats.TokensPerSecond, expected)
		}
	}
}

func TestStreamSession_Accumulates(t *testing.T) {
	session := newStreamSession(7)

	chunks := []string{"Hello", ", ", "world", "!"}
	for i, chunk := range chunks {
		stats := session.append(chunk)
		if stats.Tokens != i+1 {
			t.Errorf("Expected %d tokens after chunk %d, got %d", i+1, i, stats.Tokens)
		}
	}

	if session.text() != "Hello, world!" {
		t.Errorf("Expected accumulated text %q, got %q", "Hello, world!", session.text())
	}

	final := session.finalStats()
	if final.Tokens != len(chunks) {
		t.Errorf("Expected %d total tokens, got %d", len(chunks), final.Tokens)
	}
}
