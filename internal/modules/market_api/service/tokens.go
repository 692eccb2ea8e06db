package service

import (
	"context"

	"github.com/pkg/errors"
)

// Tokens lists the underlyings the API wants traded.
func (c *Client) Tokens(ctx context.Context) ([]string, error) {
	var resp tokensResponse
	if err := c.getJSON(ctx, "/indices/nifty-tokens", nil, &resp); err != nil {
		return nil, errors.Wrap(err, "fetch tokens")
	}
	out := make([]string, 0, len(resp.Tokens))
	for _, t := range resp.Tokens {
		if t != "" {
			out = append(out, string(t))
		}
	}
	return out, nil
}
