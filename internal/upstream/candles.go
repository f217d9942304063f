package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetCandlesticks fetches OHLC aggregates for a market over a window.
// The endpoint is addressed by the market's parent series ticker.
func (c *Client) GetCandlesticks(ctx context.Context, seriesTicker, ticker string, opts GetCandlesticksOptions) (*CandlesticksResponse, error) {
	query := url.Values{}
	query.Set("start_ts", strconv.FormatInt(opts.StartTs, 10))
	query.Set("end_ts", strconv.FormatInt(opts.EndTs, 10))
	query.Set("period_interval", strconv.Itoa(opts.PeriodInterval))

	path := "/series/" + seriesTicker + "/markets/" + ticker + "/candlesticks"

	var resp CandlesticksResponse
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("get candlesticks %s: %w", ticker, err)
	}

	return &resp, nil
}
