package assets

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

	"github.com/tradeforge/settlement/internal/domain"
)

// Config wires the asset-hub client. The hub owns every balance book and token
// ledger this service settles against; ServiceToken authenticates
// service-to-service calls.
type Config struct {
	BaseURL      string
	ServiceToken string
	HTTPClient   *http.Client
}

// Client is shared by the ledger, royalty and issuer adapters so they reuse
// one connection pool and one credential.
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	return &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		serviceToken: strings.TrimSpace(cfg.ServiceToken),
		httpClient:   httpClient,
	}
}

type hubError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *hubError) Error() string {
	return fmt.Sprintf("asset hub: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

func (c *Client) postJSON(ctx context.Context, path string, reqBody, out any) error {
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeHubError(resp)
	}
	if out == nil {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	// Hub responses wrap payloads in a {"status","data"} envelope; tolerate
	// bare payloads from older deployments.
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
		return json.Unmarshal(envelope.Data, out)
	}
	return json.Unmarshal(body, out)
}

func decodeHubError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	he := &hubError{StatusCode: resp.StatusCode}
	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Code != "" {
		he.Code = envelope.Code
		he.Message = envelope.Message
	} else {
		he.Message = strings.TrimSpace(string(body))
	}
	return translateHubError(he)
}

// translateHubError maps hub error codes the settlement flow branches on to
// domain sentinels. Anything else stays a hubError and reads as an internal
// failure upstream.
func translateHubError(he *hubError) error {
	switch he.Code {
	case "INSUFFICIENT_BALANCE":
		return fmt.Errorf("%w: %s", domain.ErrInsufficientBalance, he.Message)
	case "NOT_FOUND":
		return fmt.Errorf("%w: %s", domain.ErrNotFound, he.Message)
	}
	return he
}
