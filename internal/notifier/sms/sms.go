package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// Client handles sending SMS via the Twilio API.
type Client struct {
	accountSID  string
	authToken   string
	phoneNumber string
	httpClient  *http.Client

	apiBase string
}

// NewClient creates a new Twilio SMS client.
func NewClient(accountSID, authToken, phoneNumber string) *Client {
	return &Client{
		accountSID:  accountSID,
		authToken:   authToken,
		phoneNumber: phoneNumber,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiBase: twilioAPIBase,
	}
}

// SendSMS sends an SMS message to the specified phone number.
func (c *Client) SendSMS(ctx context.Context, to, body string) error {
	apiURL := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.apiBase, c.accountSID)

	data := url.Values{}
	data.Set("To", to)
	data.Set("From", c.phoneNumber)
	data.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("twilio API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return nil
}
