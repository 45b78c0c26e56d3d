// Package journeyclient talks to the progress service and mirrors the
// browser-side journey state: a local record plus the server's unlocked stage.
package journeyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const progressPath = "/api/progress"

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client whose cookies live in jar. A nil jar disables
// cookies, which makes every call look like a first visit.
func New(baseURL string, jar http.CookieJar) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Jar: jar, Timeout: 10 * time.Second},
	}
}

type ProgressResponse struct {
	OK              bool `json:"ok"`
	Unlocked        int  `json:"unlocked"`
	AlreadyUnlocked bool `json:"alreadyUnlocked,omitempty"`
}

type APIError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

func (c *Client) Progress(ctx context.Context) (*ProgressResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+progressPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")
	return doJSON[ProgressResponse](c, req)
}

func (c *Client) CompleteDay(ctx context.Context, day int) (*ProgressResponse, error) {
	body, err := json.Marshal(map[string]int{"dayCompleted": day})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+progressPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON[ProgressResponse](c, req)
}

func doJSON[T any](c *Client, req *http.Request) (*T, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		apiErr := &APIError{Status: resp.StatusCode, Message: errBody.Error}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return nil, apiErr
	}
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
