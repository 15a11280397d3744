package samplegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/toprank/internal/domain/types"
)

// ErrStatus reports an unexpected HTTP status.
var ErrStatus = errors.New("unexpected status")

// Client is a minimal client for the rankings API.
type Client struct {
	base   string
	client *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{base: baseURL, client: &http.Client{Timeout: timeout}}
}

// Health checks the liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, http.StatusOK, nil)
}

// SubmitSync posts req to the synchronous replace endpoint.
func (c *Client) SubmitSync(ctx context.Context, req types.BatchRequest) (types.ReplaceResponse, error) {
	var resp types.ReplaceResponse
	err := c.do(ctx, http.MethodPost, "/rankings/sync", req, http.StatusOK, &resp)
	return resp, err
}

// Page reads one leaderboard page.
func (c *Client) Page(ctx context.Context, metric string, page, size int) (types.PageResponse, error) {
	q := url.Values{"page": {strconv.Itoa(page)}, "size": {strconv.Itoa(size)}}
	var resp types.PageResponse
	err := c.do(ctx, http.MethodGet, "/rankings/"+url.PathEscape(metric)+"?"+q.Encode(), nil, http.StatusOK, &resp)
	return resp, err
}

// ByRank reads the row holding rank.
func (c *Client) ByRank(ctx context.Context, metric string, rank int) (types.Entry, error) {
	var e types.Entry
	err := c.do(ctx, http.MethodGet, "/rankings/"+url.PathEscape(metric)+"/ranks/"+strconv.Itoa(rank), nil, http.StatusOK, &e)
	return e, err
}

// ByPlayer reads a player's row.
func (c *Client) ByPlayer(ctx context.Context, metric, player string) (types.Entry, error) {
	var e types.Entry
	err := c.do(ctx, http.MethodGet, "/rankings/"+url.PathEscape(metric)+"/players/"+url.PathEscape(player), nil, http.StatusOK, &e)
	return e, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%w: %s %s: %d: %s", ErrStatus, method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
