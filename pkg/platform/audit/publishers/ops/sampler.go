package ops

import (
	"math/rand/v2"
	"sync"
)

// Sampler keeps a configurable fraction of events per action.
type Sampler struct {
	mu           sync.RWMutex
	defaultRate  float64
	rateByAction map[string]float64
	draw         func() float64
}

// NewSampler creates a sampler keeping defaultRate (0..1) of events.
func NewSampler(defaultRate float64) *Sampler {
	return &Sampler{
		defaultRate:  clamp(defaultRate),
		rateByAction: make(map[string]float64),
		draw:         rand.Float64,
	}
}

// ShouldSample reports whether an event for action is kept.
func (s *Sampler) ShouldSample(action string) bool {
	s.mu.RLock()
	rate, ok := s.rateByAction[action]
	if !ok {
		rate = s.defaultRate
	}
	s.mu.RUnlock()
	return s.draw() < rate
}

// SetRate overrides the rate for one action.
func (s *Sampler) SetRate(action string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateByAction[action] = clamp(rate)
}

func clamp(rate float64) float64 {
	switch {
	case rate < 0:
		return 0
	case rate > 1:
		return 1
	default:
		return rate
	}
}
