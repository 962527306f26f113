package chat

import (
	"math"
	"strings"
	"time"
)

// streamSession holds the transient state of one in-flight streaming turn.
// It lives for exactly one request and is never shared across turns.
type streamSession struct {
	conversationID int64
	response       strings.Builder
	tokens         int
	start          time.Time
}

func newStreamSession(conversationID int64) *streamSession {
	return &streamSession{
		conversationID: conversationID,
		start:          time.Now(),
	}
}

// append records one increment and returns the updated throughput snapshot.
func (s *streamSession) append(chunk string) Stats {
	s.response.WriteString(chunk)
	s.tokens++
	return computeStats(s.tokens, time.Since(s.start))
}

// text returns the accumulated response so far.
func (s *streamSession) text() string {
	return s.response.String()
}

// finalStats returns the aggregate statistics for the whole stream.
func (s *streamSession) finalStats() Stats {
	return computeStats(s.tokens, time.Since(s.start))
}

// computeStats rounds elapsed time to 2 decimal places and throughput to 1.
// When the rounded elapsed time is zero the rate is reported as the token
// count itself so the snapshot never divides by zero.
func computeStats(tokens int, elapsed time.Duration) Stats {
	seconds := math.Round(elapsed.Seconds()*100) / 100

	rate := float64(tokens)
	if seconds > 0 {
		rate = math.Round(float64(tokens)/seconds*10) / 10
	}

	return Stats{
		Tokens:          tokens,
		ElapsedSeconds:  seconds,
		TokensPerSecond: rate,
	}
}
