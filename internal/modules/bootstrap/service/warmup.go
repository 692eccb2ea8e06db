package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
)

type HistorySource interface {
	FetchHistory(ctx context.Context, key string, count int) ([]models.Bar, error)
}

// Warmuper preloads history for many underlyings at once. Underlyings that
// fail are left out; their orchestrator fetches history itself.
type Warmuper struct {
	src     HistorySource
	bars    int
	timeout time.Duration
	log     *zap.Logger

	// caps parallel requests against the API rate limit
	sem chan struct{}
}

func NewWarmuper(src HistorySource, cfg *config.Config, log *zap.Logger) *Warmuper {
	return &Warmuper{
		src:     src,
		bars:    cfg.Trading.HistoryBars,
		timeout: cfg.Trading.RequestTimeout,
		log:     log.Named("warmup"),
		sem:     make(chan struct{}, 8),
	}
}

func (w *Warmuper) Warmup(ctx context.Context, keys []string) map[string][]models.Bar {
	out := make(map[string][]models.Bar, len(keys))
	if len(keys) == 0 {
		return out
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case w.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-w.sem }()

			rctx := ctx
			if w.timeout > 0 {
				var cancel context.CancelFunc
				rctx, cancel = context.WithTimeout(ctx, w.timeout)
				defer cancel()
			}
			bars, err := w.src.FetchHistory(rctx, key, w.bars)
			if err != nil || len(bars) == 0 {
				w.log.Warn("warmup skipped", zap.String("token", key), zap.Error(err))
				return
			}
			mu.Lock()
			out[key] = bars
			mu.Unlock()
		}()
	}
	wg.Wait()

	w.log.Info("warmup done", zap.Int("requested", len(keys)), zap.Int("loaded", len(out)))
	return out
}
