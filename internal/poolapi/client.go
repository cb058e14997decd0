package poolapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPilot/internal/model"
)

// ErrNotFound is returned when the API has no record for a pool or token.
var ErrNotFound = errors.New("not found")

// Client reads pool activity and token USD prices from a pool info HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
	now        func() time.Time
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        logger,
		now:        time.Now,
	}
}

type mintInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type poolInfo struct {
	ID      string          `json:"id"`
	MintA   mintInfo        `json:"mintA"`
	MintB   mintInfo        `json:"mintB"`
	Price   decimal.Decimal `json:"price"`
	FeeRate decimal.Decimal `json:"feeRate"`
	TVL     decimal.Decimal `json:"tvl"`
	Day     struct {
		Volume    decimal.Decimal `json:"volume"`
		VolumeFee decimal.Decimal `json:"volumeFee"`
	} `json:"day"`
}

type poolInfoResponse struct {
	Success bool       `json:"success"`
	Data    []poolInfo `json:"data"`
}

type mintPriceResponse struct {
	Success bool                       `json:"success"`
	Data    map[string]decimal.Decimal `json:"data"`
}

// PoolStats returns TVL, 24h volume, fee rate and the USD price of token B.
func (c *Client) PoolStats(ctx context.Context, poolID string) (model.PoolStats, error) {
	info, err := c.fetchPoolInfo(ctx, poolID)
	if err != nil {
		return model.PoolStats{}, err
	}
	stats := model.PoolStats{
		PoolID:         poolID,
		TVLUSD:         info.TVL.InexactFloat64(),
		DailyVolumeUSD: info.Day.Volume.InexactFloat64(),
		DailyFeesUSD:   info.Day.VolumeFee.InexactFloat64(),
		FeeRate:        info.FeeRate.InexactFloat64(),
		CapturedAt:     c.now().UTC(),
	}
	if info.MintB.Address != "" {
		quote, err := c.TokenPriceUSD(ctx, info.MintB.Address)
		if err != nil {
			return model.PoolStats{}, fmt.Errorf("quote token price: %w", err)
		}
		stats.QuotePriceUSD = quote
	}
	return stats, nil
}

// TokenPriceUSD returns the USD price of a token.
func (c *Client) TokenPriceUSD(ctx context.Context, mint string) (float64, error) {
	var resp mintPriceResponse
	if err := c.getJSON(ctx, "/mint/price", url.Values{"mints": {mint}}, &resp); err != nil {
		return 0, fmt.Errorf("fetch price of %s: %w", mint, err)
	}
	price, ok := resp.Data[mint]
	if !ok || !price.IsPositive() {
		return 0, fmt.Errorf("price of %s: %w", mint, ErrNotFound)
	}
	return price.InexactFloat64(), nil
}

func (c *Client) fetchPoolInfo(ctx context.Context, poolID string) (poolInfo, error) {
	var resp poolInfoResponse
	if err := c.getJSON(ctx, "/pools/info/ids", url.Values{"ids": {poolID}}, &resp); err != nil {
		return poolInfo{}, fmt.Errorf("fetch pool info %s: %w", poolID, err)
	}
	for _, info := range resp.Data {
		if strings.EqualFold(info.ID, poolID) {
			return info, nil
		}
	}
	return poolInfo{}, fmt.Errorf("pool info %s: %w", poolID, ErrNotFound)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Debug("pool api error", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
