package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
)

// Sink receives admitted ticks.
type Sink interface {
	Send(ctx context.Context, t models.TickEvent) error
}

type PipelineConfig struct {
	// Token labels logs and the queue gauge; empty for ad-hoc pipelines.
	Token        string
	Workers      int
	QueueSize    int
	MinInterval  time.Duration
	SinkTimeout  time.Duration
	MetricsEvery time.Duration
}

func PipelineConfigFrom(cfg *config.Config) PipelineConfig {
	return PipelineConfig{
		Workers:      cfg.Stream.Workers,
		QueueSize:    cfg.Stream.QueueSize,
		MinInterval:  cfg.Stream.MinInterval,
		SinkTimeout:  cfg.Stream.SinkTimeout,
		MetricsEvery: cfg.Stream.MetricsEvery,
	}
}

// Admission is what Offer did with a tick.
type Admission int

const (
	Admitted Admission = iota
	RejectedInvalid
	RejectedDuplicate
	RejectedRateLimited
	RejectedQueueFull
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case RejectedInvalid:
		return "invalid"
	case RejectedDuplicate:
		return "duplicate"
	case RejectedRateLimited:
		return "rate_limited"
	case RejectedQueueFull:
		return "queue_full"
	}
	return "unknown"
}

var (
	ErrInvalidTick   = errors.New("invalid tick")
	ErrDuplicateTick = errors.New("price unchanged")
	ErrRateLimited   = errors.New("rate limited")
	ErrQueueFull     = errors.New("dispatch queue full")
)

// Err maps a rejection to its sentinel, nil when admitted.
func (a Admission) Err() error {
	switch a {
	case RejectedInvalid:
		return ErrInvalidTick
	case RejectedDuplicate:
		return ErrDuplicateTick
	case RejectedRateLimited:
		return ErrRateLimited
	case RejectedQueueFull:
		return ErrQueueFull
	}
	return nil
}

// Pipeline filters derivative ticks and fans them out to a sink.
//
// Offer never blocks. A tick is admitted when its price is positive, differs
// from the last admitted price of its key, the key's last admission is at
// least MinInterval old and the queue has room. Workers re-check MinInterval
// against the last dispatch start of the key before calling the sink.
type Pipeline struct {
	cfg  PipelineConfig
	sink Sink
	log  *zap.Logger
	now  func() time.Time

	queue chan models.DispatchItem

	mu        sync.Mutex
	lastPrice map[string]float64 // dedup reference
	delivered map[string]float64
	lastAdmit map[string]time.Time

	dispatchMu   sync.Mutex
	lastDispatch map[string]time.Time

	metrics Metrics
}

func NewPipeline(cfg PipelineConfig, sink Sink, log *zap.Logger) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Token != "" {
		log = log.With(zap.String("derivative", cfg.Token))
	}
	return &Pipeline{
		cfg:          cfg,
		sink:         sink,
		log:          log,
		now:          time.Now,
		queue:        make(chan models.DispatchItem, cfg.QueueSize),
		lastPrice:    make(map[string]float64),
		delivered:    make(map[string]float64),
		lastAdmit:    make(map[string]time.Time),
		lastDispatch: make(map[string]time.Time),
	}
}

// Offer is the producer side. Safe for concurrent callers.
func (p *Pipeline) Offer(t models.TickEvent) Admission {
	p.metrics.inc(outReceived)
	if t.Key == "" || !(t.LTP > 0) || math.IsInf(t.LTP, 0) {
		p.metrics.inc(outInvalid)
		return RejectedInvalid
	}

	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if last, ok := p.lastPrice[t.Key]; ok && last == t.LTP {
		p.metrics.inc(outDeduped)
		return RejectedDuplicate
	}
	if at, ok := p.lastAdmit[t.Key]; ok && now.Sub(at) < p.cfg.MinInterval {
		p.metrics.inc(outRateLimited)
		return RejectedRateLimited
	}

	select {
	case p.queue <- models.DispatchItem{TickEvent: t, EnteredAt: now}:
		p.lastPrice[t.Key] = t.LTP
		p.lastAdmit[t.Key] = now
		return Admitted
	default:
		p.metrics.inc(outDropped)
		return RejectedQueueFull
	}
}

// Run starts the workers and the metrics reporter, and feeds Offer from feed
// when it is not nil. It returns when ctx is done.
func (p *Pipeline) Run(ctx context.Context, feed <-chan models.TickEvent) error {
	g, ctx := errgroup.WithContext(ctx)

	if feed != nil {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case t, ok := <-feed:
					if !ok {
						return nil
					}
					p.Offer(t)
				}
			}
		})
	}
	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			p.worker(ctx)
			return nil
		})
	}
	if p.cfg.MetricsEvery > 0 {
		g.Go(func() error {
			p.report(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-p.queue:
			p.dispatch(ctx, item)
		}
	}
}

func (p *Pipeline) dispatch(ctx context.Context, item models.DispatchItem) {
	key := item.Key
	start := p.now()

	p.dispatchMu.Lock()
	prev, had := p.lastDispatch[key]
	if had && start.Sub(prev) < p.cfg.MinInterval {
		p.dispatchMu.Unlock()
		p.metrics.inc(outRateLimited)
		p.undelivered(item.TickEvent)
		return
	}
	p.lastDispatch[key] = start
	p.dispatchMu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, p.cfg.SinkTimeout)
	err := p.sink.Send(sctx, item.TickEvent)
	cancel()

	if err != nil {
		p.dispatchMu.Lock()
		if cur, ok := p.lastDispatch[key]; ok && cur.Equal(start) {
			if had {
				p.lastDispatch[key] = prev
			} else {
				delete(p.lastDispatch, key)
			}
		}
		p.dispatchMu.Unlock()
		p.undelivered(item.TickEvent)

		p.metrics.inc(outFailed)
		p.log.Warn("sink dispatch failed",
			zap.String("token", key),
			zap.Float64("ltp", item.LTP),
			zap.Duration("queued", start.Sub(item.EnteredAt)),
			zap.Error(err),
		)
		return
	}
	p.metrics.inc(outSent)

	p.mu.Lock()
	p.delivered[key] = item.LTP
	p.mu.Unlock()
}

// undelivered points the dedup reference of t's key back at the last
// delivered price, unless a newer price was admitted meanwhile.
func (p *Pipeline) undelivered(t models.TickEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.lastPrice[t.Key]; !ok || cur != t.LTP {
		return
	}
	if d, ok := p.delivered[t.Key]; ok {
		p.lastPrice[t.Key] = d
	} else {
		delete(p.lastPrice, t.Key)
	}
}

// Metrics returns lifetime counters plus current queue and cache sizes.
func (p *Pipeline) Metrics() MetricsSnapshot {
	s := p.metrics.snapshot()
	s.QueueLen = len(p.queue)

	p.mu.Lock()
	s.PriceCache = len(p.lastPrice)
	p.mu.Unlock()

	p.dispatchMu.Lock()
	s.SentCache = len(p.lastDispatch)
	p.dispatchMu.Unlock()
	return s
}

func (p *Pipeline) report(ctx context.Context) {
	t := time.NewTicker(p.cfg.MetricsEvery)
	defer t.Stop()

	prev := p.Metrics()
	last := p.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			cur := p.Metrics()
			now := p.now()
			if p.cfg.Token != "" {
				queueLength.WithLabelValues(p.cfg.Token).Set(float64(cur.QueueLen))
			}
			win := cur.Sub(prev)
			secs := now.Sub(last).Seconds()
			if secs <= 0 {
				secs = 1
			}
			p.log.Info("tick stream metrics",
				zap.Uint64("received", win.Received),
				zap.Uint64("sent", win.Sent),
				zap.Uint64("failed", win.Failed),
				zap.Uint64("dropped", win.Dropped),
				zap.Uint64("deduped", win.Deduped),
				zap.Uint64("rate_limited", win.RateLimited),
				zap.Float64("received_per_sec", float64(win.Received)/secs),
				zap.Float64("sent_per_sec", float64(win.Sent)/secs),
				zap.Int("queue_len", cur.QueueLen),
				zap.Int("price_cache", cur.PriceCache),
				zap.Int("sent_cache", cur.SentCache),
			)
			prev, last = cur, now
		}
	}
}
