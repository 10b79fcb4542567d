// Package postgrest is the gateway to the hosted backend. It speaks the
// PostgREST dialect served under /rest/v1 by Supabase-style platforms.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expenses/internal/core"
	"expenses/internal/store"
)

const (
	restPrefix      = "/rest/v1/"
	expensesTable   = "expenses"
	categoriesTable = "categories"

	expenseSelect  = "id,description,amount,date,created_at,category:categories(id,name)"
	categorySelect = "id,name"
	expenseOrder   = "date.desc,created_at.desc"
	categoryOrder  = "name.asc"

	maxErrorBody = 64 << 10
)

// Ensure interface conformance
var _ store.Gateway = (*Client)(nil)

type Config struct {
	// BaseURL is the project URL, e.g. https://abc.supabase.co
	BaseURL string
	// APIKey is sent both as apikey and as bearer token.
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	base   *url.URL
	key    string
	http   *http.Client
	logger *slog.Logger
}

func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("postgrest: missing base URL")
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("postgrest: invalid base URL %q", raw)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("postgrest: missing API key")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClientWithPooling()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:   u,
		key:    strings.TrimSpace(cfg.APIKey),
		http:   httpClient,
		logger: logger.With("component", "postgrest"),
	}, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling and
// conservative timeouts. Per-call deadlines come from the request context.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	q := url.Values{}
	q.Set("select", expenseSelect)
	q.Set("order", expenseOrder)

	var rows []expenseRow
	if err := c.do(ctx, http.MethodGet, expensesTable, q, nil, "", &rows); err != nil {
		return nil, core.NewBackendError("list expenses", err)
	}
	out := make([]core.Expense, 0, len(rows))
	for _, r := range rows {
		e, err := r.toExpense()
		if err != nil {
			return nil, core.NewBackendError("list expenses", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	q := url.Values{}
	q.Set("select", categorySelect)
	q.Set("order", categoryOrder)

	var cats []core.Category
	if err := c.do(ctx, http.MethodGet, categoriesTable, q, nil, "", &cats); err != nil {
		return nil, core.NewBackendError("list categories", err)
	}
	if cats == nil {
		cats = []core.Category{}
	}
	return cats, nil
}

func (c *Client) CreateExpense(ctx context.Context, d core.Draft) (core.Expense, error) {
	q := url.Values{}
	q.Set("select", expenseSelect)

	var rows []expenseRow
	if err := c.do(ctx, http.MethodPost, expensesTable, q, []core.Draft{d}, "return=representation", &rows); err != nil {
		return core.Expense{}, core.NewBackendError("create expense", err)
	}
	if len(rows) == 0 {
		return core.Expense{}, core.NewBackendError("create expense", errors.New("backend returned no row"))
	}
	e, err := rows[0].toExpense()
	if err != nil {
		return core.Expense{}, core.NewBackendError("create expense", err)
	}
	return e, nil
}

func (c *Client) UpdateExpense(ctx context.Context, id int64, p core.PartialDraft) (core.Expense, error) {
	if p.Empty() {
		return core.Expense{}, core.NewBackendError("update expense", fmt.Errorf("%w: empty update", core.ErrBackendValidation))
	}
	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	q.Set("select", expenseSelect)

	var rows []expenseRow
	if err := c.do(ctx, http.MethodPatch, expensesTable, q, p, "return=representation", &rows); err != nil {
		return core.Expense{}, core.NewBackendError("update expense", err)
	}
	if len(rows) == 0 {
		return core.Expense{}, core.NewBackendError("update expense", core.ErrNotFound)
	}
	e, err := rows[0].toExpense()
	if err != nil {
		return core.Expense{}, core.NewBackendError("update expense", err)
	}
	return e, nil
}

// DeleteExpense removes the row; PostgREST answers 204 whether or not a row
// matched, which gives the idempotent contract for free.
func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	if err := c.do(ctx, http.MethodDelete, expensesTable, q, nil, "return=minimal", nil); err != nil {
		return core.NewBackendError("delete expense", err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")
	var rows []json.RawMessage
	if err := c.do(ctx, http.MethodGet, categoriesTable, q, nil, "", &rows); err != nil {
		return core.NewBackendError("ping", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, table string, q url.Values, body any, prefer string, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + restPrefix + table
	u.RawQuery = q.Encode()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "PostgREST call",
		"method", method,
		"table", table,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 400 {
		apiErr := decodeAPIError(resp)
		if resp.StatusCode < 500 && method != http.MethodGet {
			return fmt.Errorf("%w: %w", core.ErrBackendValidation, apiErr)
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s response: %w", table, err)
	}
	return nil
}
