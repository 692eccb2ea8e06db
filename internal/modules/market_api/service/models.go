package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"signal_bot/internal/helper"
)

type ohlcRequest struct {
	Token string `json:"token"`
	Limit int    `json:"limit"`
}

type ohlcRow struct {
	StartTime helper.FlexString `json:"start_time"`
	Open      helper.FlexFloat  `json:"open"`
	High      helper.FlexFloat  `json:"high"`
	Low       helper.FlexFloat  `json:"low"`
	Close     helper.FlexFloat  `json:"close"`
	Volume    helper.FlexFloat  `json:"volume"`
}

type ohlcResponse struct {
	Data []ohlcRow `json:"data"`
}

type ltpResponse struct {
	Data struct {
		LastUpdate helper.FlexString `json:"last_update"`
		LTP        helper.FlexFloat  `json:"ltp"`
	} `json:"data"`
}

type killRequest struct {
	Token string `json:"token"`
}

type killResponse struct {
	Kill bool `json:"kill"`
}

type tokensResponse struct {
	Tokens []helper.FlexString `json:"tokens"`
}

type tradeRequest struct {
	Token           string  `json:"token"`
	Signal          string  `json:"signal"`
	DerivativeToken string  `json:"derivative_token"`
	Symbol          string  `json:"symbol,omitempty"`
	Exchange        string  `json:"exchange,omitempty"`
	Expiry          string  `json:"expiry,omitempty"`
	Strike          float64 `json:"strike_price,omitempty"`
	OptionType      string  `json:"position,omitempty"`
	StrategyCode    string  `json:"strategy_code"`
	PositionID      string  `json:"position_id"`
}

type tradeResponse struct {
	Accepted *bool `json:"accepted"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04",
}

// parseTimestamp reads RFC3339, naive wall-clock (interpreted in loc) or epoch
// seconds/milliseconds.
func parseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).In(loc), nil
		}
		return time.Unix(n, 0).In(loc), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: unknown layout", raw)
}
