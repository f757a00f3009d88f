package bank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"vip-key-shop/internal/domain"
	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/domain/ports/adapter"
)

var _ adapter.BankFeed = (*HTTPFeed)(nil)

const maxFeedBytes = 8 << 20

// HTTPFeed polls a JSON transaction-history endpoint (thueapibank-style).
type HTTPFeed struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPFeed(feedURL, token string, timeout time.Duration) (*HTTPFeed, error) {
	if feedURL == "" {
		return nil, errors.New("bank feed url empty")
	}
	if _, err := url.ParseRequestURI(feedURL); err != nil {
		return nil, fmt.Errorf("invalid bank feed url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFeed{
		url:    feedURL,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (f *HTTPFeed) Name() string { return "http" }

func (f *HTTPFeed) FetchTransactions(ctx context.Context) ([]model.BankTransaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: bank feed http %d", domain.ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrUpstream, err)
	}
	return ParseFeed(body)
}
