package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// APIError is a non-2xx response from the mail provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// Client is a stateless wrapper around the mail provider's HTTP API,
// authenticated with the account's bearer token. It performs no retries;
// polling and resumption are the sync engine's responsibility.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a provider client for one account's access token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StartSync kicks off (or polls) the provider-side sync job scoped to a
// lookback window of daysWithin days, with HTML body rendering. The call is
// idempotent on the provider side; it reports ready=false until the initial
// continuation token is available.
func (c *Client) StartSync(ctx context.Context, daysWithin int) (*SyncResponse, error) {
	params := url.Values{}
	params.Set("daysWithin", strconv.Itoa(daysWithin))
	params.Set("bodyType", "html")

	var response SyncResponse
	if err := c.do(ctx, http.MethodPost, "/email/sync?"+params.Encode(), nil, &response); err != nil {
		return nil, fmt.Errorf("failed to start sync: %w", err)
	}

	return &response, nil
}

// GetUpdatedEmails fetches one page of changed messages. Exactly one of
// deltaToken and pageToken should be set: the delta token positions a new
// fetch, the page token continues pagination within the current fetch.
func (c *Client) GetUpdatedEmails(ctx context.Context, deltaToken, pageToken string) (*SyncUpdatedResponse, error) {
	params := url.Values{}
	if deltaToken != "" {
		params.Set("deltaToken", deltaToken)
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var response SyncUpdatedResponse
	if err := c.do(ctx, http.MethodGet, "/email/sync/updated?"+params.Encode(), nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch updated emails: %w", err)
	}

	return &response, nil
}

// SendEmail submits a constructed message for delivery and returns the
// provider-assigned identifiers.
func (c *Client) SendEmail(ctx context.Context, request *SendEmailRequest) (*SendEmailResponse, error) {
	var response SendEmailResponse
	if err := c.do(ctx, http.MethodPost, "/email/messages?returnIds=true", request, &response); err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	return &response, nil
}

// GetAccountDetails returns the email address and display name of the
// mailbox behind this client's access token.
func (c *Client) GetAccountDetails(ctx context.Context) (*AccountDetails, error) {
	var details AccountDetails
	if err := c.do(ctx, http.MethodGet, "/account", nil, &details); err != nil {
		return nil, fmt.Errorf("failed to fetch account details: %w", err)
	}

	return &details, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// ExchangeCode exchanges an OAuth authorization code for an access token and
// the provider-assigned account id, authenticating with the application's
// client credentials.
func ExchangeCode(ctx context.Context, baseURL, clientID, clientSecret, code string) (*TokenResponse, error) {
	exchangeURL := fmt.Sprintf("%s/auth/token/%s", baseURL, url.PathEscape(code))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, exchangeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(clientID, clientSecret)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var token TokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &token, nil
}
