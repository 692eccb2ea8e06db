package runner

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"signal_bot/internal/models"
)

// Builder makes the orchestrator of one underlying; history may be nil.
type Builder func(key string, history []models.Bar) *Orchestrator

type running struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager runs one orchestrator goroutine per underlying.
type Manager struct {
	build Builder
	log   *zap.Logger

	mu      sync.Mutex
	runners map[string]*running
}

func NewManager(build Builder, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		build:   build,
		log:     log,
		runners: make(map[string]*running),
	}
}

// Start launches an orchestrator for every key that is not running yet and
// returns the number launched.
func (m *Manager) Start(ctx context.Context, keys []string, history map[string][]models.Bar) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := 0
	for _, key := range keys {
		if _, ok := m.runners[key]; ok || key == "" {
			continue
		}
		o := m.build(key, history[key])
		rctx, cancel := context.WithCancel(ctx)
		r := &running{cancel: cancel, done: make(chan struct{})}
		m.runners[key] = r
		started++

		go func() {
			defer close(r.done)
			if err := o.Run(rctx); err != nil {
				m.log.Error("orchestrator exited", zap.String("token", key), zap.Error(err))
			}

			m.mu.Lock()
			if m.runners[key] == r {
				delete(m.runners, key)
			}
			m.mu.Unlock()
		}()
	}
	m.log.Info("orchestrators started", zap.Int("started", started), zap.Int("running", len(m.runners)))
	return started
}

// StopKey stops one underlying and waits for its goroutine.
func (m *Manager) StopKey(key string) bool {
	m.mu.Lock()
	r, ok := m.runners[key]
	delete(m.runners, key)
	m.mu.Unlock()
	if !ok {
		return false
	}
	r.cancel()
	<-r.done
	return true
}

// Stop cancels every orchestrator and waits for them.
func (m *Manager) Stop() {
	m.mu.Lock()
	all := make([]*running, 0, len(m.runners))
	for key, r := range m.runners {
		all = append(all, r)
		delete(m.runners, key)
	}
	m.mu.Unlock()

	for _, r := range all {
		r.cancel()
	}
	for _, r := range all {
		<-r.done
	}
}

func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runners)
}

func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.runners))
	for k := range m.runners {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
