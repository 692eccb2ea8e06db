package service

import (
	"context"

	"go.uber.org/zap"

	"signal_bot/pkg/tracing"
)

// KillRequested asks the admin endpoint whether key's position must be closed.
// Any failure reads as "no kill".
func (c *Client) KillRequested(ctx context.Context, key string) bool {
	span, ctx := tracing.StartSpan(ctx, "market_api.kill_switch", key)
	var resp killResponse
	err := c.postJSON(ctx, "/admin/kill-trade-signal", killRequest{Token: key}, &resp)
	tracing.Finish(span, err)
	if err != nil {
		c.log.Error("kill switch check failed", zap.String("token", key), zap.Error(err))
		return false
	}
	return resp.Kill
}
