package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coin-ledger/internal/models"
)

// BackendAPI is the part of the HTTP backend the ledger talks to.
type BackendAPI interface {
	FetchBalance(ctx context.Context, token string) (int64, error)
	SyncTransactions(ctx context.Context, token string, entries []models.LedgerEntry) (*models.SyncResponse, error)
}

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchBalance reads the authoritative coin balance from GET /users/profile.
func (c *APIClient) FetchBalance(ctx context.Context, token string) (int64, error) {
	var profile struct {
		Coins *int64 `json:"coins"`
	}
	if err := c.do(ctx, "fetch balance", http.MethodGet, "/users/profile", token, nil, &profile); err != nil {
		return 0, err
	}
	if profile.Coins == nil {
		return 0, &models.NetworkError{Op: "fetch balance", Err: fmt.Errorf("response has no coins field")}
	}
	if *profile.Coins < 0 {
		return 0, &models.NetworkError{Op: "fetch balance", Err: fmt.Errorf("negative coins %d", *profile.Coins)}
	}
	return *profile.Coins, nil
}

// SyncTransactions posts a batch of entries, oldest first.
func (c *APIClient) SyncTransactions(ctx context.Context, token string, entries []models.LedgerEntry) (*models.SyncResponse, error) {
	var resp models.SyncResponse
	body := models.SyncRequest{Transactions: entries}
	if err := c.do(ctx, "sync transactions", http.MethodPost, "/transactions/sync", token, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) do(ctx context.Context, op, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &models.NetworkError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &models.NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return &models.NetworkError{Op: op, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &models.NetworkError{
			Op:         op,
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(msg))),
		}
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return &models.NetworkError{Op: op, StatusCode: res.StatusCode, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &models.NetworkError{Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return nil
}
