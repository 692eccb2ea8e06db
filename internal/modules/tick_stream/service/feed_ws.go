package service

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
)

const pingEvery = 20 * time.Second

type subscribeArg struct {
	Token string `json:"token"`
}

type subscribeMsg struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type tickFrame struct {
	SecurityID helper.FlexString `json:"security_id"`
	LTP        helper.FlexFloat  `json:"LTP"`
}

// WSFeed streams last traded prices of one derivative from the market feed.
// It reconnects with bounded exponential backoff until ctx is done.
type WSFeed struct {
	url     string
	key     string
	dialer  *websocket.Dialer
	backoff helper.Backoff
	log     *zap.Logger
}

func NewWSFeed(url, key string, log *zap.Logger) *WSFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSFeed{
		url:     url,
		key:     key,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		backoff: helper.Backoff{Min: 250 * time.Millisecond, Max: 5 * time.Second, Factor: 2, Jitter: 0.2},
		log:     log.With(zap.String("derivative", key)),
	}
}

// Run never blocks on out: a tick that does not fit is dropped.
func (f *WSFeed) Run(ctx context.Context, out chan<- models.TickEvent) error {
	attempt := 0
	for {
		connected, err := f.session(ctx, out)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			attempt = 0
		}
		attempt++
		wait := f.backoff.Next(attempt)
		f.log.Warn("feed disconnected, reconnecting", zap.Error(err), zap.Int("attempt", attempt), zap.Duration("wait", wait))
		if !helper.Sleep(ctx.Done(), wait) {
			return nil
		}
	}
}

func (f *WSFeed) session(ctx context.Context, out chan<- models.TickEvent) (bool, error) {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	sub, err := sonic.Marshal(subscribeMsg{Op: "subscribe", Args: []subscribeArg{{Token: f.key}}})
	if err != nil {
		return false, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return false, err
	}
	f.log.Info("feed subscribed", zap.String("url", f.url))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(pingEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-stop:
				return
			case <-t.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		var fr tickFrame
		if err := sonic.Unmarshal(msg, &fr); err != nil || fr.SecurityID == "" {
			continue
		}
		ev := models.TickEvent{Key: string(fr.SecurityID), LTP: float64(fr.LTP)}
		select {
		case out <- ev:
		default:
			f.log.Debug("consumer busy, tick dropped", zap.Float64("ltp", ev.LTP))
		}
	}
}

// NopFeed produces nothing; it stands in when no feed URL is configured.
type NopFeed struct{}

func (NopFeed) Run(ctx context.Context, _ chan<- models.TickEvent) error {
	<-ctx.Done()
	return nil
}
