package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"geoattend/internal/notify"
)

// Client posts notifications to an external webhook endpoint. With Skip set
// the client accepts everything without calling out, which keeps local dev
// working with no receiver configured.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a webhook client.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send delivers one notification.
func (c *Client) Send(ctx context.Context, n notify.Notification) error {
	if c.Skip {
		return nil
	}
	if n.UserID == "" {
		return fmt.Errorf("user id required")
	}

	body, _ := json.Marshal(n)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/notify", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook error %s: %s", resp.Status, string(respBody))
	}
	return nil
}

// Health checks if the webhook receiver is reachable.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("webhook receiver unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook receiver unhealthy: %s", resp.Status)
	}
	return nil
}
