package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/learnchain/txwatcher/config"
)

const (
	defaultTimeout = 15 * time.Second
	maxRetries     = 2
)

// Client talks to the backend transaction registration API. Registration is
// idempotent on the backend side, which is what makes the watcher's retry
// loop safe.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(cfg *config.BackendConfig) (*Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("backend config is undefined")
	}
	timeout := defaultTimeout
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = maxRetries
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = nil
	return &Client{
		baseURL:     cfg.URL,
		accessToken: cfg.AccessToken,
		httpClient:  retryClient.StandardClient(),
	}, nil
}

// IsAuthenticated reports whether the client carries credentials. The
// watcher skips sweeps entirely while unauthenticated.
func (c *Client) IsAuthenticated() bool {
	return c.accessToken != ""
}

// RegisterTx performs the authoritative server-side state transition for a
// confirmed transaction.
func (c *Client) RegisterTx(ctx context.Context, request *RegisterTxRequest) (*RegisterTxResult, error) {
	if !c.IsAuthenticated() {
		return nil, fmt.Errorf("backend client is not authenticated")
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal register request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/api/v1/tx/register", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to register tx %s: %w", request.TxHash, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("backend returned status %d for tx %s: %s", resp.StatusCode, request.TxHash, string(payload))
	}

	var result RegisterTxResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode register response: %w", err)
	}
	log.Debug().
		Str("TxHash", request.TxHash).
		Str("TxType", string(request.TxType)).
		Str("State", result.State).
		Msg("[BackendClient] [RegisterTx] registered confirmed transaction")
	return &result, nil
}
