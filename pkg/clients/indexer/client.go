package indexer

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
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
)

// Client is a read-only client for the chain indexer. It answers two
// questions: is this batch of transactions confirmed, and what did a given
// transaction mint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.IndexerConfig) (*Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("indexer config is undefined")
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
		baseURL:    cfg.URL,
		httpClient: retryClient.StandardClient(),
	}, nil
}

// GetTxConfirmations checks the whole batch of hashes in a single call and
// returns results in request order. The indexer contract already promises
// request ordering; results are re-keyed by hash anyway so a permuted
// response cannot misattribute a confirmation.
func (c *Client) GetTxConfirmations(ctx context.Context, txHashes []string) ([]TxConfirmation, error) {
	body, err := json.Marshal(confirmationsRequest{TxHashes: txHashes})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal confirmations request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/api/v1/txs/confirmations", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query tx confirmations: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("indexer returned status %d: %s", resp.StatusCode, string(payload))
	}

	var result confirmationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode confirmations response: %w", err)
	}
	if len(result.Confirmations) != len(txHashes) {
		return nil, fmt.Errorf("indexer returned %d confirmations for %d hashes", len(result.Confirmations), len(txHashes))
	}

	byHash := make(map[string]TxConfirmation, len(result.Confirmations))
	for _, confirmation := range result.Confirmations {
		byHash[confirmation.TxHash] = confirmation
	}
	ordered := make([]TxConfirmation, 0, len(txHashes))
	for _, hash := range txHashes {
		confirmation, ok := byHash[hash]
		if !ok {
			return nil, fmt.Errorf("indexer response missing confirmation for tx %s", hash)
		}
		ordered = append(ordered, confirmation)
	}
	log.Debug().Int("TxCount", len(txHashes)).Msg("[IndexerClient] [GetTxConfirmations] fetched batch confirmation status")
	return ordered, nil
}

// GetTxEvents fetches the on-chain effects of a confirmed transaction.
func (c *Client) GetTxEvents(ctx context.Context, txHash string) (*TxEvents, error) {
	endpoint := fmt.Sprintf("%s/api/v1/txs/%s/events", c.baseURL, txHash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query tx events: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("indexer returned status %d: %s", resp.StatusCode, string(payload))
	}

	var events TxEvents
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to decode tx events: %w", err)
	}
	log.Debug().Str("TxHash", txHash).Int("MintCount", len(events.Mints)).
		Msg("[IndexerClient] [GetTxEvents] fetched tx events")
	return &events, nil
}
