package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_bot/internal/models"
)

var ist = time.FixedZone("IST", 5*3600+1800)

type recorded struct {
	method string
	path   string
	query  string
	body   map[string]any
}

func newServer(t *testing.T, routes map[string]string, status int) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			assert.NoError(t, sonic.Unmarshal(b, &rec.body))
		}
		calls = append(calls, rec)

		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/db/", time.Second, ist, nil), &calls
}

func TestFetchHistoryParsesStringsAndNumbers(t *testing.T) {
	c, calls := newServer(t, map[string]string{
		"/db/ohlc": `{"data":[
			{"start_time":"2024-01-02 09:15:00","open":"22000.5","high":"22010","low":"21990","close":"22005"},
			{"start_time":"2024-01-02T09:16:00+05:30","open":22005,"high":22020,"low":22001,"close":22018.25},
			{"start_time":"garbage","open":1,"high":1,"low":1,"close":1}
		]}`,
	}, http.StatusOK)

	bars, err := c.FetchHistory(context.Background(), "26000", 500)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.True(t, bars[0].Time.Equal(time.Date(2024, 1, 2, 9, 15, 0, 0, ist)))
	assert.Equal(t, 22000.5, bars[0].Open)
	assert.Equal(t, 22018.25, bars[1].Close)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "26000", call.body["token"])
	assert.EqualValues(t, 500, call.body["limit"])
}

func TestFetchLatestBar(t *testing.T) {
	c, calls := newServer(t, map[string]string{
		"/db/ohlc": `{"data":[{"start_time":"1704166500","open":"1","high":"2","low":"0.5","close":"1.5"}]}`,
	}, http.StatusOK)

	bar, err := c.FetchLatestBar(context.Background(), "25")
	require.NoError(t, err)
	require.NotNil(t, bar)
	assert.Equal(t, int64(1704166500), bar.Time.Unix())
	assert.EqualValues(t, 1, (*calls)[0].body["limit"])

	empty, _ := newServer(t, map[string]string{"/db/ohlc": `{"data":[]}`}, http.StatusOK)
	bar, err = empty.FetchLatestBar(context.Background(), "25")
	require.NoError(t, err)
	assert.Nil(t, bar)
}

func TestFetchLTP(t *testing.T) {
	c, calls := newServer(t, map[string]string{
		"/db/indices/ltp": `{"data":{"last_update":"2024-01-02 10:00:00","ltp":"22050.45"}}`,
	}, http.StatusOK)

	at, ltp, err := c.FetchLTP(context.Background(), "26000")
	require.NoError(t, err)
	assert.Equal(t, 22050.45, ltp)
	assert.Equal(t, 10, at.Hour())
	assert.Equal(t, "stock_token=26000", (*calls)[0].query)
}

func TestFetchLTPErrors(t *testing.T) {
	c, _ := newServer(t, map[string]string{"/db/indices/ltp": `{"detail":"down"}`}, http.StatusBadGateway)
	_, _, err := c.FetchLTP(context.Background(), "26000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 502")

	zero, _ := newServer(t, map[string]string{"/db/indices/ltp": `{"data":{"ltp":0}}`}, http.StatusOK)
	_, _, err = zero.FetchLTP(context.Background(), "26000")
	assert.Error(t, err)
}

func TestKillRequested(t *testing.T) {
	on, calls := newServer(t, map[string]string{"/db/admin/kill-trade-signal": `{"kill":true}`}, http.StatusOK)
	assert.True(t, on.KillRequested(context.Background(), "26000"))
	assert.Equal(t, "26000", (*calls)[0].body["token"])

	off, _ := newServer(t, map[string]string{"/db/admin/kill-trade-signal": `{}`}, http.StatusOK)
	assert.False(t, off.KillRequested(context.Background(), "26000"))

	broken, _ := newServer(t, map[string]string{"/db/admin/kill-trade-signal": `oops`}, http.StatusInternalServerError)
	assert.False(t, broken.KillRequested(context.Background(), "26000"))
}

func TestSubmit(t *testing.T) {
	sub := models.Submission{
		UnderlyingKey: "26000",
		Kind:          models.SignalBuyEntry,
		DerivativeID:  "45001",
		StrategyCode:  "HA_ATR_STRIKE",
		PositionID:    "pos-1",
		Derivative:    models.Instrument{Token: "45001", Strike: 21900, Side: models.Call, Symbol: "NIFTY 21900 CE"},
	}

	c, calls := newServer(t, map[string]string{"/db/signals/trade": `{"status":"ok"}`}, http.StatusOK)
	ack, err := c.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.True(t, ack)

	body := (*calls)[0].body
	assert.Equal(t, "BUY_ENTRY", body["signal"])
	assert.Equal(t, "45001", body["derivative_token"])
	assert.Equal(t, "CE", body["position"])
	assert.Equal(t, "pos-1", body["position_id"])

	nack, _ := newServer(t, map[string]string{"/db/signals/trade": `{"accepted":false}`}, http.StatusOK)
	ack, err = nack.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.False(t, ack)

	down, _ := newServer(t, nil, http.StatusOK)
	ack, err = down.Submit(context.Background(), sub)
	require.Error(t, err)
	assert.False(t, ack)
}

func TestTokens(t *testing.T) {
	c, _ := newServer(t, map[string]string{"/db/indices/nifty-tokens": `{"tokens":["25", 26000, ""]}`}, http.StatusOK)
	tokens, err := c.Tokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"25", "26000"}, tokens)
}

func TestParseTimestamp(t *testing.T) {
	ms, err := parseTimestamp("1704166500000", ist)
	require.NoError(t, err)
	assert.Equal(t, int64(1704166500), ms.Unix())

	_, err = parseTimestamp("", ist)
	assert.Error(t, err)
}
