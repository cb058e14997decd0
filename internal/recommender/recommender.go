package recommender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPilot/internal/model"
)

// ErrRecommenderUnavailable covers transport failures and answers without a config.
var ErrRecommenderUnavailable = errors.New("recommender unavailable")

// Recommender suggests trigger parameters for a principal amount.
type Recommender interface {
	Recommend(ctx context.Context, amount float64, symbol string) (model.Recommendation, error)
}

// DefaultAgentName is the agent addressed when none is configured.
const DefaultAgentName = "Eliza"

// AgentClient asks a chat agent service for a liquidity config.
type AgentClient struct {
	baseURL    string
	agentName  string
	pairSymbol string
	httpClient *http.Client
	log        *zap.Logger

	mu      sync.Mutex
	agentID string
}

// AgentOptions configures an AgentClient.
type AgentOptions struct {
	BaseURL   string
	AgentName string
	// PairSymbol names the counter token in the prompt.
	PairSymbol string
	Timeout    time.Duration
	Logger     *zap.Logger
}

func NewAgentClient(opts AgentOptions) *AgentClient {
	if opts.AgentName == "" {
		opts.AgentName = DefaultAgentName
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		agentName:  opts.AgentName,
		pairSymbol: opts.PairSymbol,
		httpClient: &http.Client{Timeout: opts.Timeout},
		log:        logger,
	}
}

type agentsResponse struct {
	Agents []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"agents"`
}

type agentConfig struct {
	StepPercentage     decimal.Decimal `json:"stepPercentage"`
	AddLiquidityAmount decimal.Decimal `json:"addLiquidityAmount"`
	MinPrice           decimal.Decimal `json:"minPrice"`
	MaxPrice           decimal.Decimal `json:"maxPrice"`
}

type messageItem struct {
	Text    string `json:"text"`
	Content struct {
		Config *agentConfig `json:"config"`
	} `json:"content"`
}

// Recommend sends the prompt to the agent and returns the first config it answers with.
func (c *AgentClient) Recommend(ctx context.Context, amount float64, symbol string) (model.Recommendation, error) {
	agentID, err := c.resolveAgent(ctx)
	if err != nil {
		return model.Recommendation{}, err
	}

	pair := symbol
	if c.pairSymbol != "" {
		pair = symbol + "/" + c.pairSymbol
	}
	body, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("Generate a CLMM config for my %s pool. My wallet has %s %s", pair, decimal.NewFromFloat(amount).String(), symbol),
	})
	if err != nil {
		return model.Recommendation{}, fmt.Errorf("marshal prompt: %w", err)
	}

	var items []messageItem
	if err := c.do(ctx, http.MethodPost, "/"+agentID+"/message", bytes.NewReader(body), &items); err != nil {
		c.forgetAgent()
		return model.Recommendation{}, fmt.Errorf("%w: send message: %v", ErrRecommenderUnavailable, err)
	}
	for _, item := range items {
		if item.Content.Config == nil {
			continue
		}
		cfg := item.Content.Config
		rec := model.Recommendation{
			StepPercent:      cfg.StepPercentage.InexactFloat64(),
			PerTriggerAmount: cfg.AddLiquidityAmount.InexactFloat64(),
			MinPrice:         cfg.MinPrice.InexactFloat64(),
			MaxPrice:         cfg.MaxPrice.InexactFloat64(),
		}
		if rec.StepPercent <= 0 || rec.PerTriggerAmount <= 0 {
			return model.Recommendation{}, fmt.Errorf("%w: invalid config step=%v amount=%v", ErrRecommenderUnavailable, rec.StepPercent, rec.PerTriggerAmount)
		}
		c.log.Debug("recommendation received", zap.String("symbol", symbol), zap.Float64("step_percent", rec.StepPercent), zap.Float64("per_trigger_amount", rec.PerTriggerAmount))
		return rec, nil
	}
	return model.Recommendation{}, fmt.Errorf("%w: no config in agent response", ErrRecommenderUnavailable)
}

func (c *AgentClient) resolveAgent(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.agentID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	var resp agentsResponse
	if err := c.do(ctx, http.MethodGet, "/agents", nil, &resp); err != nil {
		return "", fmt.Errorf("%w: list agents: %v", ErrRecommenderUnavailable, err)
	}
	for _, agent := range resp.Agents {
		if agent.Name == c.agentName {
			c.mu.Lock()
			c.agentID = agent.ID
			c.mu.Unlock()
			return agent.ID, nil
		}
	}
	return "", fmt.Errorf("%w: agent %q not found", ErrRecommenderUnavailable, c.agentName)
}

func (c *AgentClient) forgetAgent() {
	c.mu.Lock()
	c.agentID = ""
	c.mu.Unlock()
}

func (c *AgentClient) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
