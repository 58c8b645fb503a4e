package logging

import (
	"strings"
	"time"
)

// WaitSampler suppresses per-tick countdown logs while preserving signal when
// a new wait starts or the elapsed share crosses a bucket boundary.
type WaitSampler struct {
	bucketSize float64
	lastPhase  string
	lastBucket int
}

// NewWaitSampler constructs a sampler that emits every bucketSize percent
// (default 25) of a wait.
func NewWaitSampler(bucketSize float64) *WaitSampler {
	if bucketSize <= 0 {
		bucketSize = 25
	}
	return &WaitSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a countdown tick should be logged. A change of
// phase (for example "cooldown" to "rate_limit attempt 2") always emits.
func (s *WaitSampler) ShouldLog(phase string, remaining, total time.Duration) bool {
	if s == nil {
		return true
	}
	phase = strings.TrimSpace(phase)
	emit := false
	if phase != s.lastPhase {
		s.lastPhase = phase
		s.lastBucket = -1
		emit = true
	}
	if total <= 0 {
		return emit
	}
	elapsed := total - remaining
	percent := float64(elapsed) / float64(total) * 100
	bucket := int(percent / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset clears the sampler state.
func (s *WaitSampler) Reset() {
	if s == nil {
		return
	}
	s.lastPhase = ""
	s.lastBucket = -1
}
