package service

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	mu         sync.RWMutex
	lastCycles map[string]time.Time
}

func NewState() *State {
	return &State{
		startedAt:  time.Now(),
		lastCycles: make(map[string]time.Time),
	}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// TouchCycle records the last finished orchestrator cycle of key.
func (s *State) TouchCycle(key string, at time.Time) {
	s.mu.Lock()
	s.lastCycles[key] = at
	s.mu.Unlock()
}

func (s *State) Forget(key string) {
	s.mu.Lock()
	delete(s.lastCycles, key)
	s.mu.Unlock()
}

// CycleAge is one underlying's time since its last cycle.
type CycleAge struct {
	Token     string `json:"token"`
	LastCycle int64  `json:"lastCycleUnix"`
	AgeSec    int64  `json:"ageSec"`
}

// Cycles lists every underlying sorted by token.
func (s *State) Cycles(now time.Time) []CycleAge {
	s.mu.RLock()
	out := make([]CycleAge, 0, len(s.lastCycles))
	for k, t := range s.lastCycles {
		out = append(out, CycleAge{Token: k, LastCycle: t.Unix(), AgeSec: int64(now.Sub(t).Seconds())})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// Stale reports whether any underlying has not cycled within maxAge.
func (s *State) Stale(now time.Time, maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.lastCycles {
		if now.Sub(t) > maxAge {
			return true
		}
	}
	return false
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
