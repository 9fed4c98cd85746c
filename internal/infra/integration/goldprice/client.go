package goldprice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultURL = "https://data-asg.goldprice.org/dbXRates/USD"

var ErrNoRates = errors.New("goldprice: response has no rates")

type Client struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 8 * time.Second},
		now:        time.Now,
	}
}

func (c *Client) Spot(ctx context.Context) (Spot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Spot{}, fmt.Errorf("goldprice: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// the upstream rejects requests without a browser-like agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; leadrelay/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Spot{}, fmt.Errorf("goldprice: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Spot{}, fmt.Errorf("goldprice: status %d: %s", resp.StatusCode, body)
	}

	var rates RatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return Spot{}, fmt.Errorf("goldprice: decode: %w", err)
	}
	if len(rates.Items) == 0 {
		return Spot{}, ErrNoRates
	}

	item := rates.Items[0]
	return Spot{
		Gold:            item.GoldPrice,
		Silver:          item.SilverPrice,
		GoldChange:      item.GoldChange,
		GoldChangePct:   item.GoldChangePct,
		SilverChange:    item.SilverChange,
		SilverChangePct: item.SilverChangePct,
		Currency:        item.Currency,
		FetchedAt:       c.now().UTC(),
	}, nil
}
