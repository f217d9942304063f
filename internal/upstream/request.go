package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"
)

// doRequest performs a single HTTP request with the given method and path.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.countCall(KindTransient.String())
		return nil, &Error{Kind: KindTransient, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countCall(KindTransient.String())
		return nil, &Error{Kind: KindTransient, Message: "read response: " + err.Error(), Err: err}
	}

	if resp.StatusCode >= 400 {
		kind := classify(resp.StatusCode)
		c.countCall(kind.String())
		return nil, &Error{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	c.countCall("ok")
	return body, nil
}

// doWithRetry performs a request, retrying transient failures with
// exponential backoff and jitter. Rate limits surface immediately.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, method, path, query)
		if err == nil {
			return body, nil
		}

		lastErr = err

		var ue *Error
		if !errors.As(err, &ue) || !ue.Retryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// get performs a GET request with retries and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	_, err := c.getRaw(ctx, path, query, result)
	return err
}

// getRaw performs a GET request, decodes into result, and additionally
// returns the raw body so callers can recover fields outside the typed
// schema (some responses carry the pagination cursor only there).
func (c *Client) getRaw(ctx context.Context, path string, query url.Values, result any) ([]byte, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, path, query)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return body, nil
}

// rawCursor extracts a top-level "cursor" field from a raw JSON body.
// Returns "" when the field is absent or unreadable, which callers treat
// as pagination termination.
func rawCursor(body []byte) string {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	raw, ok := envelope["cursor"]
	if !ok {
		return ""
	}
	var cursor string
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return ""
	}
	return cursor
}
