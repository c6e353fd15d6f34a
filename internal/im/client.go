package im

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"chatapi/internal/shared/config"
)

// APIError is a non-zero ErrorCode reply from the IM server.
type APIError struct {
	Code int
	Info string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("im api error %d: %s", e.Code, e.Info)
}

// Response is the IM server's reply envelope. ResultItem carries the
// operation-specific payload when present.
type Response struct {
	ActionStatus string          `json:"ActionStatus"`
	ErrorCode    int             `json:"ErrorCode"`
	ErrorInfo    string          `json:"ErrorInfo"`
	ResultItem   json.RawMessage `json:"ResultItem,omitempty"`
}

// Client calls the Tencent IM REST API as the administrator account. Every
// request carries the app id, the administrator identity and a cached
// administrator signature in the query string.
type Client struct {
	baseURL       string
	appID         string
	administrator string
	sigs          *AdminSigCache
	http          *http.Client
	random        func() uint32
}

func NewClient(cfg config.IMConfig, sigs *AdminSigCache) *Client {
	return &Client{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		appID:         cfg.AppID,
		administrator: cfg.Administrator,
		sigs:          sigs,
		http:          &http.Client{Timeout: cfg.RequestTimeout},
		random:        rand.Uint32,
	}
}

// buildURL appends the admin credentials as query parameters the way the
// IM server expects them.
func (c *Client) buildURL(servicePath string) (string, error) {
	if c.appID == "" || c.administrator == "" {
		return "", fmt.Errorf("im app id or administrator is not configured")
	}

	sig, err := c.sigs.Get()
	if err != nil {
		return "", fmt.Errorf("failed to get administrator sig: %w", err)
	}

	query := url.Values{}
	query.Set("sdkappid", c.appID)
	query.Set("identifier", c.administrator)
	query.Set("usersig", sig)
	query.Set("random", strconv.FormatUint(uint64(c.random()), 10))
	query.Set("contenttype", "json")

	return c.baseURL + "/" + strings.TrimPrefix(servicePath, "/") + "?" + query.Encode(), nil
}

// Call posts a JSON payload to the given IM service path and decodes the
// reply envelope. A non-zero ErrorCode becomes an *APIError.
func (c *Client) Call(ctx context.Context, servicePath string, payload interface{}) (*Response, error) {
	reqURL, err := c.buildURL(servicePath)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal im request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create im request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("im request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("im server returned status %d", resp.StatusCode)
	}

	var imResp Response
	if err := json.NewDecoder(resp.Body).Decode(&imResp); err != nil {
		return nil, fmt.Errorf("failed to decode im response: %w", err)
	}

	if imResp.ErrorCode != 0 {
		return nil, &APIError{Code: imResp.ErrorCode, Info: imResp.ErrorInfo}
	}
	return &imResp, nil
}
