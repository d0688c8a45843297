package groups

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client implements Inspector against the userbot sidecar's HTTP API. The
// sidecar holds the automated account's session; this process never touches
// chat credentials directly.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type resolveResponse struct {
	Title           string    `json:"title"`
	EarliestMessage time.Time `json:"earliest_message"`
	MessageCount    int       `json:"message_count"`
}

type adminResponse struct {
	IsAdministrator bool `json:"is_administrator"`
}

func (c *Client) Resolve(ctx context.Context, link string) (Info, error) {
	var resp resolveResponse
	err := c.get(ctx, "/v1/groups/resolve", url.Values{"link": {link}}, &resp)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Title:           resp.Title,
		EarliestMessage: resp.EarliestMessage,
		MessageCount:    resp.MessageCount,
	}, nil
}

func (c *Client) IsAdministrator(ctx context.Context, link string, accountID int64) (bool, error) {
	q := url.Values{
		"link":       {link},
		"account_id": {strconv.FormatInt(accountID, 10)},
	}
	var resp adminResponse
	if err := c.get(ctx, "/v1/groups/admin", q, &resp); err != nil {
		return false, err
	}
	return resp.IsAdministrator, nil
}

func (c *Client) Leave(ctx context.Context, link string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/groups/leave?"+url.Values{"link": {link}}.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusError(resp.StatusCode)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(code int) error {
	switch {
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrAccessDenied
	case code >= 400:
		return fmt.Errorf("userbot: unexpected status %d", code)
	}
	return nil
}
