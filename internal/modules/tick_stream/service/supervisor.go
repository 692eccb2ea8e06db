package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"signal_bot/internal/models"
)

// Feed produces ticks for one derivative until ctx is done.
type Feed interface {
	Run(ctx context.Context, out chan<- models.TickEvent) error
}

type FeedFactory func(key string) Feed

// SymbolSource maps a derivative token to its trading symbol ("" when unknown).
type SymbolSource interface {
	Symbol(token string) string
}

type stream struct {
	cancel context.CancelFunc
	done   chan struct{}
	pipe   *Pipeline
	owners map[string]struct{}
}

// Supervisor runs one feed + pipeline per open derivative. A derivative may be
// held by several owners (underlyings); its stream runs until the last owner
// releases it.
type Supervisor struct {
	cfg     PipelineConfig
	sink    Sink
	feeds   FeedFactory
	symbols SymbolSource
	log     *zap.Logger

	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	streams map[string]*stream
}

func NewSupervisor(cfg PipelineConfig, sink Sink, feeds FeedFactory, symbols SymbolSource, log *zap.Logger) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:     cfg,
		sink:    sink,
		feeds:   feeds,
		symbols: symbols,
		log:     log,
		base:    base,
		cancel:  cancel,
		streams: make(map[string]*stream),
	}
}

var errSupervisorStopped = errors.New("stream supervisor stopped")

// StartStream registers owner on inst and starts its stream if none runs yet.
// The stream outlives ctx; it ends when every owner called StopStream, or on StopAll.
func (s *Supervisor) StartStream(ctx context.Context, owner string, inst models.Instrument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := inst.Token

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base.Err() != nil {
		return errSupervisorStopped
	}
	if st, ok := s.streams[key]; ok {
		st.owners[owner] = struct{}{}
		return nil
	}

	cfg := s.cfg
	cfg.Token = key
	st := &stream{
		done: make(chan struct{}),
		pipe:   NewPipeline(cfg, s.sink, s.log),
		owners: map[string]struct{}{owner: {}},
	}
	sctx, cancel := context.WithCancel(s.base)
	st.cancel = cancel
	s.streams[key] = st
	activeStreams.Set(float64(len(s.streams)))

	go s.run(sctx, inst, st)
	s.log.Info("derivative stream started", zap.String("derivative", key), zap.String("symbol", inst.Symbol))
	return nil
}

func (s *Supervisor) run(ctx context.Context, inst models.Instrument, st *stream) {
	defer close(st.done)

	raw := make(chan models.TickEvent, 256)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.feeds(inst.Token).Run(ctx, raw) })
	g.Go(func() error { return st.pipe.Run(ctx, nil) })
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-raw:
				if ev.Symbol = s.symbolFor(ev.Key, inst); ev.Symbol == "" {
					continue
				}
				st.pipe.Offer(ev)
			}
		}
	})
	if err := g.Wait(); err != nil {
		s.log.Error("derivative stream ended", zap.String("derivative", inst.Token), zap.Error(err))
	}
}

func (s *Supervisor) symbolFor(key string, inst models.Instrument) string {
	if s.symbols != nil {
		if sym := s.symbols.Symbol(key); sym != "" {
			return sym
		}
	}
	if key == inst.Token {
		return inst.Symbol
	}
	return ""
}

// StopStream releases owner's hold on key. The stream is cancelled, and
// waited for, only when no owner is left.
func (s *Supervisor) StopStream(owner, key string) {
	s.mu.Lock()
	st, ok := s.streams[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(st.owners, owner)
	if len(st.owners) > 0 {
		s.mu.Unlock()
		s.log.Info("derivative stream still held",
			zap.String("derivative", key), zap.String("released_by", owner), zap.Int("owners", len(st.owners)))
		return
	}
	s.mu.Unlock()
	s.stop(key)
}

// stop cancels the stream of key regardless of owners.
func (s *Supervisor) stop(key string) {
	s.mu.Lock()
	st, ok := s.streams[key]
	if ok {
		delete(s.streams, key)
		activeStreams.Set(float64(len(s.streams)))
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	st.cancel()
	<-st.done
	queueLength.DeleteLabelValues(key)
	m := st.pipe.Metrics()
	s.log.Info("derivative stream stopped",
		zap.String("derivative", key),
		zap.Uint64("sent", m.Sent),
		zap.Uint64("failed", m.Failed),
		zap.Uint64("dropped", m.Dropped),
	)
}

// StopAll stops every stream; later StartStream calls fail.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	s.cancel()
	keys := make([]string, 0, len(s.streams))
	for k := range s.streams {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.stop(k)
	}
}

// Active lists streaming derivative tokens, sorted.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.streams))
	for k := range s.streams {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Metrics returns the pipeline metrics of key.
func (s *Supervisor) Metrics(key string) (MetricsSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[key]
	if !ok {
		return MetricsSnapshot{}, false
	}
	return st.pipe.Metrics(), true
}
