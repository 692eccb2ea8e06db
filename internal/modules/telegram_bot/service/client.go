package service

import (
	"context"
	"fmt"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"signal_bot/internal/modules/config"
	health "signal_bot/internal/modules/health/service"
)

// StreamLister is the part of the tick supervisor /status reads.
type StreamLister interface {
	Active() []string
}

// Telegram pushes trade notifications to one chat and answers /status there.
// Without a token every method is a no-op.
type Telegram struct {
	bot     *tgbot.BotAPI
	chatID  int64
	state   *health.State
	streams StreamLister
	log     *zap.Logger

	stopOnce sync.Once
	done     chan struct{}
}

func NewTelegram(cfg *config.Config, state *health.State, log *zap.Logger) (*Telegram, error) {
	t := NewWithBot(nil, cfg.Telegram.ChatID, state, log.Named("telegram"))
	if cfg.Telegram.Token == "" {
		t.log.Info("telegram token not set, notifications disabled")
		return t, nil
	}
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	t.bot = b
	return t, nil
}

// NewWithBot wraps an already built bot; bot may be nil.
func NewWithBot(bot *tgbot.BotAPI, chatID int64, state *health.State, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: bot, chatID: chatID, state: state, log: log, done: make(chan struct{})}
}

// SetStreams attaches the stream source shown by /status.
func (t *Telegram) SetStreams(s StreamLister) { t.streams = s }

func (t *Telegram) enabled() bool {
	return t != nil && t.bot != nil && t.chatID != 0
}

func (t *Telegram) Send(msg string) {
	if !t.enabled() {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		t.log.Warn("telegram send failed", zap.Error(err))
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Start polls updates in the background until Stop.
func (t *Telegram) Start(ctx context.Context) {
	if !t.enabled() {
		return
	}
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.done:
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(update)
			}
		}
	}()
}

func (t *Telegram) Stop() {
	if !t.enabled() {
		return
	}
	t.stopOnce.Do(func() {
		t.bot.StopReceivingUpdates()
		close(t.done)
	})
}
