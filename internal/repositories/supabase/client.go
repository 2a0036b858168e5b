// Package supabase reads and writes the portal tables through the Supabase REST (PostgREST)
// endpoint, for deployments that only hand out the project URL and API keys.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"obogportal/internal/repositories"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient expects the project URL (https://<ref>.supabase.co) and the service role or
// anon key.
func NewClient(projectURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(projectURL, "/") + "/rest/v1/",
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Repositories wires the REST-backed repositories. Challenges are left nil; they live in
// Redis, Postgres or memory.
func (c *Client) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users:    userRepo{c},
		Profiles: profileRepo{c},
		OTPLogs:  otpLogRepo{c},
		Posts:    postRepo{c},
	}
}

type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("supabase: status %d: %s %s", e.Status, e.Code, e.Message)
}

// do runs one request against table and decodes the JSON array response into out.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, body any, out any) error {
	u := c.baseURL + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("supabase: encode %s: %w", table, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("supabase: build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("supabase: %s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("supabase: decode %s: %w", table, err)
	}
	return nil
}

func eq(v string) string {
	return "eq." + v
}

func pageQuery(q url.Values, order string, limit, offset int) url.Values {
	q.Set("order", order)
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprint(offset))
	}
	return q
}

// isInvalidInput reports PostgREST passing through a malformed uuid or bigint literal.
func isInvalidInput(err error) bool {
	apiErr, ok := err.(*apiError)
	return ok && apiErr.Code == "22P02"
}
