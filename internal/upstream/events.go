package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetEvents fetches a page of events.
func (c *Client) GetEvents(ctx context.Context, opts GetEventsOptions) (*EventsResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.SeriesTicker != "" {
		query.Set("series_ticker", opts.SeriesTicker)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.WithNestedMarkets {
		query.Set("with_nested_markets", "true")
	}

	var resp EventsResponse
	body, err := c.getRaw(ctx, "/events", query, &resp)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	if resp.Cursor == "" {
		resp.Cursor = rawCursor(body)
	}

	return &resp, nil
}

// GetEvent fetches a single event by ticker, including its markets.
func (c *Client) GetEvent(ctx context.Context, eventTicker string) (*SingleEventResponse, error) {
	var resp SingleEventResponse
	if err := c.get(ctx, "/events/"+eventTicker, nil, &resp); err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventTicker, err)
	}
	return &resp, nil
}

// GetEventMetadata fetches auxiliary metadata for an event.
func (c *Client) GetEventMetadata(ctx context.Context, eventTicker string) (*EventMetadataResponse, error) {
	var resp EventMetadataResponse
	if err := c.get(ctx, "/events/"+eventTicker+"/metadata", nil, &resp); err != nil {
		return nil, fmt.Errorf("get event metadata %s: %w", eventTicker, err)
	}
	return &resp, nil
}

// GetMultivariateEvents fetches a page of multivariate event collections.
func (c *Client) GetMultivariateEvents(ctx context.Context, limit int, cursor string) (*MultivariateEventsResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var resp MultivariateEventsResponse
	body, err := c.getRaw(ctx, "/multivariate_event_collections", query, &resp)
	if err != nil {
		return nil, fmt.Errorf("get multivariate events: %w", err)
	}
	if resp.Cursor == "" {
		resp.Cursor = rawCursor(body)
	}

	return &resp, nil
}
