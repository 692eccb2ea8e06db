package service

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// FetchLTP returns the last update time and last traded price of key.
func (c *Client) FetchLTP(ctx context.Context, key string) (time.Time, float64, error) {
	var resp ltpResponse
	q := url.Values{"stock_token": []string{key}}
	if err := c.getJSON(ctx, "/indices/ltp", q, &resp); err != nil {
		return time.Time{}, 0, errors.Wrapf(err, "fetch ltp %s", key)
	}
	ltp := float64(resp.Data.LTP)
	if ltp <= 0 {
		return time.Time{}, 0, errors.Errorf("fetch ltp %s: no price", key)
	}
	// last_update is informational; a format we cannot read is not fatal
	at, err := parseTimestamp(string(resp.Data.LastUpdate), c.loc)
	if err != nil {
		at = time.Time{}
	}
	return at, ltp, nil
}
