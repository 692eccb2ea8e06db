package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"signal_bot/internal/models"
	"signal_bot/pkg/tracing"
)

type strikeLTP struct {
	Token  string  `json:"token"`
	LTP    float64 `json:"ltp"`
	Symbol string  `json:"symbol"`
}

// HTTPSink posts ticks to {base}/signals/strike-ltp.
type HTTPSink struct {
	url  string
	http *http.Client
}

func NewHTTPSink(baseURL string, client *http.Client) *HTTPSink {
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &HTTPSink{
		url:  strings.TrimRight(baseURL, "/") + "/signals/strike-ltp",
		http: client,
	}
}

func (s *HTTPSink) Send(ctx context.Context, t models.TickEvent) (err error) {
	span, ctx := tracing.StartSpan(ctx, "tick_stream.sink", t.Key)
	defer func() { tracing.Finish(span, err) }()

	payload, err := sonic.Marshal(strikeLTP{Token: t.Key, LTP: t.LTP, Symbol: t.Symbol})
	if err != nil {
		return errors.Wrap(err, "marshal tick")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "post strike ltp")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("strike ltp http %d: %s", resp.StatusCode, body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
