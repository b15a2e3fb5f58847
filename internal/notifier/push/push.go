package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client forwards web-channel replies to the gateway, which fans them
// out to the conversation's websocket clients.
type Client struct {
	broadcastURL string
	httpClient   *http.Client
}

// NewClient creates a push client targeting the gateway broadcast
// endpoint.
func NewClient(broadcastURL string) *Client {
	return &Client{
		broadcastURL: broadcastURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Push delivers one reply payload to the gateway.
func (c *Client) Push(ctx context.Context, reply interface{}) error {
	body, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.broadcastURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway broadcast error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return nil
}
