package service

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"signal_bot/internal/models"
	"signal_bot/pkg/tracing"
)

// FetchHistory returns up to count bars of key, oldest first as the API sends them.
func (c *Client) FetchHistory(ctx context.Context, key string, count int) (bars []models.Bar, err error) {
	span, ctx := tracing.StartSpan(ctx, "market_api.fetch_history", key)
	defer func() { tracing.Finish(span, err) }()

	var resp ohlcResponse
	if err := c.postJSON(ctx, "/ohlc", ohlcRequest{Token: key, Limit: count}, &resp); err != nil {
		return nil, errors.Wrapf(err, "fetch history %s", key)
	}

	bars = make([]models.Bar, 0, len(resp.Data))
	for _, row := range resp.Data {
		bar, err := c.toBar(row)
		if err != nil {
			c.log.Warn("skip malformed bar", zap.String("token", key), zap.Error(err))
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// FetchLatestBar returns the most recent bar of key, nil when the API has none.
func (c *Client) FetchLatestBar(ctx context.Context, key string) (*models.Bar, error) {
	var resp ohlcResponse
	if err := c.postJSON(ctx, "/ohlc", ohlcRequest{Token: key, Limit: 1}, &resp); err != nil {
		return nil, errors.Wrapf(err, "fetch latest bar %s", key)
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	bar, err := c.toBar(resp.Data[len(resp.Data)-1])
	if err != nil {
		return nil, errors.Wrapf(err, "latest bar %s", key)
	}
	return &bar, nil
}

func (c *Client) toBar(row ohlcRow) (models.Bar, error) {
	ts, err := parseTimestamp(string(row.StartTime), c.loc)
	if err != nil {
		return models.Bar{}, err
	}
	return models.Bar{
		Time:   ts,
		Open:   float64(row.Open),
		High:   float64(row.High),
		Low:    float64(row.Low),
		Close:  float64(row.Close),
		Volume: float64(row.Volume),
	}, nil
}
