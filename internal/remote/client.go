// Package remote speaks the PostgREST dialect the hosted Supabase backend
// exposes: filtered GETs, merge-on-conflict POSTs, PATCH/DELETE by filter,
// and RPC calls for the unlock procedures.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/k9trials/ringsync/internal/metrics"
)

const restPrefix = "/rest/v1/"

type Config struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	Timeout     time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	bearer  string
	http    *http.Client
}

// StatusError carries a non-2xx response back to the operator verbatim.
// Nothing is retried automatically; re-running the sync is the retry.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned HTTP %d: %s", e.Code, e.Body)
}

// Filters maps column names to PostgREST operator expressions, e.g.
// {"license_key": Eq("abc"), "id": In(ids)}.
type Filters map[string]string

func Eq(value any) string {
	return fmt.Sprintf("eq.%v", value)
}

func In(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("in.(%s)", strings.Join(parts, ","))
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		bearer:  cfg.BearerToken,
		http:    &http.Client{Timeout: timeout},
	}
}

// Upsert POSTs records with merge-duplicates resolution on the given
// conflict keys, so re-uploading unchanged rows is a no-op.
func (c *Client) Upsert(ctx context.Context, table string, records any, conflictKeys []string) error {
	query := url.Values{}
	query.Set("on_conflict", strings.Join(conflictKeys, ","))

	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode %s records: %w", table, err)
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Prefer":       "resolution=merge-duplicates",
	}
	_, err = c.do(ctx, http.MethodPost, restPrefix+table, query, bytes.NewReader(body), headers)
	return err
}

// Select runs a filtered GET and decodes the rows into dest.
func (c *Client) Select(ctx context.Context, table string, filters Filters, dest any) error {
	raw, err := c.do(ctx, http.MethodGet, restPrefix+table, filters.encode(), nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode %s rows: %w", table, err)
	}
	return nil
}

// Patch applies a partial update to every row matching the filters.
func (c *Client) Patch(ctx context.Context, table string, filters Filters, patch any) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode %s patch: %w", table, err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	_, err = c.do(ctx, http.MethodPatch, restPrefix+table, filters.encode(), bytes.NewReader(body), headers)
	return err
}

// Delete removes every row matching the filters.
func (c *Client) Delete(ctx context.Context, table string, filters Filters) error {
	_, err := c.do(ctx, http.MethodDelete, restPrefix+table, filters.encode(), nil, nil)
	return err
}

// RPC invokes a stored procedure and returns its integer result, which
// for the unlock procedures is the count of unlocked rows.
func (c *Client) RPC(ctx context.Context, name string, params any) (int, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("failed to encode rpc %s params: %w", name, err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	raw, err := c.do(ctx, http.MethodPost, restPrefix+"rpc/"+name, nil, bytes.NewReader(body), headers)
	if err != nil {
		return 0, err
	}

	var count int
	if err := json.Unmarshal(raw, &count); err != nil {
		return 0, fmt.Errorf("failed to decode rpc %s result: %w", name, err)
	}
	return count, nil
}

func (f Filters) encode() url.Values {
	query := url.Values{}
	for column, expr := range f {
		query.Set(column, expr)
	}
	return query
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, headers map[string]string) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer)
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RemoteRequestDuration.WithLabelValues(path, method, "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	metrics.RemoteRequestDuration.WithLabelValues(
		path,
		method,
		strconv.Itoa(resp.StatusCode),
	).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug.Printf("%s %s -> %d: %s", method, path, resp.StatusCode, string(raw))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}

	return raw, nil
}
