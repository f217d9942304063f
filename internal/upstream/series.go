package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetSeriesList fetches a page of series.
func (c *Client) GetSeriesList(ctx context.Context, opts GetSeriesListOptions) (*SeriesListResponse, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.Category != "" {
		query.Set("category", opts.Category)
	}

	var resp SeriesListResponse
	body, err := c.getRaw(ctx, "/series", query, &resp)
	if err != nil {
		return nil, fmt.Errorf("get series list: %w", err)
	}
	if resp.Cursor == "" {
		resp.Cursor = rawCursor(body)
	}

	return &resp, nil
}

// GetSeries fetches a single series by ticker.
func (c *Client) GetSeries(ctx context.Context, seriesTicker string) (*APISeries, error) {
	var resp struct {
		Series APISeries `json:"series"`
	}
	if err := c.get(ctx, "/series/"+seriesTicker, nil, &resp); err != nil {
		return nil, fmt.Errorf("get series %s: %w", seriesTicker, err)
	}
	return &resp.Series, nil
}

// GetTagsByCategories fetches the category-to-tags map. Not paginated.
func (c *Client) GetTagsByCategories(ctx context.Context) (*TagsByCategoriesResponse, error) {
	var resp TagsByCategoriesResponse
	if err := c.get(ctx, "/search/tags_for_series_categories", nil, &resp); err != nil {
		return nil, fmt.Errorf("get tags by categories: %w", err)
	}
	return &resp, nil
}

// GetExchangeStatus fetches the exchange trading status.
func (c *Client) GetExchangeStatus(ctx context.Context) (*ExchangeStatusResponse, error) {
	var resp ExchangeStatusResponse
	if err := c.get(ctx, "/exchange/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("get exchange status: %w", err)
	}
	return &resp, nil
}
