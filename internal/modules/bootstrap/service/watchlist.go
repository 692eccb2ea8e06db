package service

import (
	"context"

	"go.uber.org/zap"

	"signal_bot/internal/modules/config"
)

type TokenSource interface {
	Tokens(ctx context.Context) ([]string, error)
}

// Watchlist resolves the underlyings to trade: the API list when enabled,
// otherwise (or when the API fails or is empty) the configured tokens.
type Watchlist struct {
	src     TokenSource
	static  []string
	fromAPI bool
	log     *zap.Logger
}

func NewWatchlist(src TokenSource, cfg *config.Config, log *zap.Logger) *Watchlist {
	return &Watchlist{
		src:     src,
		static:  cfg.Watchlist.Tokens,
		fromAPI: cfg.Watchlist.FromAPI,
		log:     log.Named("watchlist"),
	}
}

func (w *Watchlist) Resolve(ctx context.Context) []string {
	if w.fromAPI && w.src != nil {
		tokens, err := w.src.Tokens(ctx)
		switch {
		case err != nil:
			w.log.Warn("token list from api failed, using configured tokens", zap.Error(err))
		case len(tokens) == 0:
			w.log.Warn("api returned no tokens, using configured tokens")
		default:
			return dedup(tokens)
		}
	}
	return dedup(w.static)
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
