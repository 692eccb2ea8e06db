package service

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"signal_bot/internal/models"
	"signal_bot/pkg/tracing"
)

// Submit posts an entry or exit to the signal sink. A 2xx answer without an
// explicit "accepted" field is an acknowledgement.
func (c *Client) Submit(ctx context.Context, sub models.Submission) (ack bool, err error) {
	span, ctx := tracing.StartSpan(ctx, "market_api.submit", sub.UnderlyingKey)
	span.SetTag("signal", sub.Kind.String())
	span.SetTag("position_id", sub.PositionID)
	defer func() { tracing.Finish(span, err) }()

	req := tradeRequest{
		Token:           sub.UnderlyingKey,
		Signal:          sub.Kind.String(),
		DerivativeToken: sub.DerivativeID,
		Symbol:          sub.Derivative.Symbol,
		Exchange:        sub.Derivative.Exchange,
		Expiry:          sub.Derivative.Expiry,
		Strike:          sub.Derivative.Strike,
		OptionType:      string(sub.Derivative.Side),
		StrategyCode:    sub.StrategyCode,
		PositionID:      sub.PositionID,
	}
	var resp tradeResponse
	if err := c.postJSON(ctx, "/signals/trade", req, &resp); err != nil {
		return false, errors.Wrapf(err, "submit %s %s", sub.Kind, sub.UnderlyingKey)
	}
	ack = resp.Accepted == nil || *resp.Accepted
	c.log.Info("submitted",
		zap.String("token", sub.UnderlyingKey),
		zap.Stringer("kind", sub.Kind),
		zap.String("derivative", sub.DerivativeID),
		zap.String("position_id", sub.PositionID),
		zap.Bool("ack", ack),
	)
	return ack, nil
}
