package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_bot/internal/models"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSFeedSubscribesAndReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var conns atomic.Int32
	subs := make(chan subscribeMsg, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := conns.Add(1)

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub subscribeMsg
		_ = sonic.Unmarshal(raw, &sub)
		subs <- sub

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`))
		if n == 1 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"security_id":45001,"LTP":"101.5"}`))
			return // drop the connection
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"security_id":"45001","LTP":102}`))
		// hold until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	feed := NewWSFeed(wsURL(srv), "45001", nil)
	feed.backoff.Min, feed.backoff.Max, feed.backoff.Jitter = 10*time.Millisecond, 20*time.Millisecond, 0

	out := make(chan models.TickEvent, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, out) }()

	var got []models.TickEvent
	for len(got) < 2 {
		select {
		case ev := <-out:
			got = append(got, ev)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, models.TickEvent{Key: "45001", LTP: 101.5}, got[0])
	assert.Equal(t, models.TickEvent{Key: "45001", LTP: 102}, got[1])
	assert.GreaterOrEqual(t, conns.Load(), int32(2))

	sub := <-subs
	assert.Equal(t, "subscribe", sub.Op)
	require.Len(t, sub.Args, 1)
	assert.Equal(t, "45001", sub.Args[0].Token)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("feed did not stop")
	}
}

func TestWSFeedStopsWhileDialFails(t *testing.T) {
	feed := NewWSFeed("ws://127.0.0.1:1/none", "1", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, feed.Run(ctx, make(chan models.TickEvent)))
}
