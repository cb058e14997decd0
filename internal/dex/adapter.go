package dex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityPilot/internal/amm"
	"liquidityPilot/internal/model"
)

const feeDenominator = 1_000_000

// Tick math sqrt price bounds. A quote without a price limit that ends on one of
// them ran out of pool depth before consuming the whole input.
var (
	minSqrtRatio    = big.NewInt(4295128739)
	maxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)
)

// Backend is the chain access the adapter needs.
type Backend interface {
	Caller
	ChainID(ctx context.Context) (*big.Int, error)
}

// StatsSource provides off-chain pool activity figures.
type StatsSource interface {
	PoolStats(ctx context.Context, poolID string) (model.PoolStats, error)
}

// AdapterConfig wires a V3 pool adapter.
type AdapterConfig struct {
	Quoter common.Address
	Stats  StatsSource
	Logger *zap.Logger
	Now    func() time.Time
}

// Adapter answers AMM queries against Uniswap V3 style pools over JSON-RPC.
// Pool IDs are pool contract addresses; token A is token0.
type Adapter struct {
	backend    Backend
	quoter     common.Address
	stats      StatsSource
	poolCache  *PoolMetaCache
	tokenCache *TokenMetaCache
	log        *zap.Logger
	now        func() time.Time
}

var _ amm.QueryPort = (*Adapter)(nil)

func NewAdapter(backend Backend, cfg AdapterConfig) (*Adapter, error) {
	if backend == nil {
		return nil, errors.New("chain client is nil")
	}
	if cfg.Quoter == (common.Address{}) {
		return nil, errors.New("quoter address is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{
		backend:    backend,
		quoter:     cfg.Quoter,
		stats:      cfg.Stats,
		poolCache:  NewPoolMetaCache(),
		tokenCache: NewTokenMetaCache(),
		log:        logger,
		now:        now,
	}, nil
}

// Ping verifies the RPC endpoint answers.
func (a *Adapter) Ping(ctx context.Context) error {
	if _, err := a.backend.ChainID(ctx); err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	return nil
}

func (a *Adapter) PoolInfo(ctx context.Context, poolID string) (model.PoolInfo, error) {
	pool, err := parseAddress(poolID)
	if err != nil {
		return model.PoolInfo{}, err
	}
	meta, err := a.poolMeta(ctx, pool)
	if err != nil {
		return model.PoolInfo{}, err
	}
	tokenA, err := a.tokenMeta(ctx, common.HexToAddress(meta.Token0))
	if err != nil {
		return model.PoolInfo{}, fmt.Errorf("token0 metadata: %w", err)
	}
	tokenB, err := a.tokenMeta(ctx, common.HexToAddress(meta.Token1))
	if err != nil {
		return model.PoolInfo{}, fmt.Errorf("token1 metadata: %w", err)
	}
	return model.PoolInfo{
		PoolID: pool.Hex(),
		TokenA: tokenA,
		TokenB: tokenB,
		Fee:    meta.Fee,
	}, nil
}

func (a *Adapter) CurrentPrice(ctx context.Context, poolID string) (float64, error) {
	info, err := a.PoolInfo(ctx, poolID)
	if err != nil {
		return 0, err
	}
	sqrtPriceX96, _, err := FetchPoolState(ctx, a.backend, common.HexToAddress(info.PoolID))
	if err != nil {
		return 0, err
	}
	price := PriceFromSqrtX96(sqrtPriceX96, info.TokenA.Decimals, info.TokenB.Decimals)
	if price <= 0 {
		return 0, fmt.Errorf("pool %s is not initialized", info.PoolID)
	}
	return price, nil
}

func (a *Adapter) SwapQuote(ctx context.Context, poolID string, amountIn float64, from model.Side) (model.SwapQuote, error) {
	info, err := a.PoolInfo(ctx, poolID)
	if err != nil {
		return model.SwapQuote{}, err
	}
	if amountIn <= 0 {
		return model.SwapQuote{}, nil
	}
	tokenIn := info.Token(from)
	tokenOut := info.Token(from.Counter())

	rawIn := ToRaw(amountIn, tokenIn.Decimals)
	if rawIn.Sign() == 0 {
		return model.SwapQuote{InputAmount: amountIn}, nil
	}

	quoterABI, err := QuoterV2ABI()
	if err != nil {
		return model.SwapQuote{}, fmt.Errorf("parse quoter abi: %w", err)
	}
	params := quoteExactInputSingleParams{
		TokenIn:           common.HexToAddress(tokenIn.Address),
		TokenOut:          common.HexToAddress(tokenOut.Address),
		AmountIn:          rawIn,
		Fee:               new(big.Int).SetUint64(uint64(info.Fee)),
		SqrtPriceLimitX96: new(big.Int),
	}
	data, err := quoterABI.Pack("quoteExactInputSingle", params)
	if err != nil {
		return model.SwapQuote{}, fmt.Errorf("pack quoteExactInputSingle: %w", err)
	}
	resp, err := a.backend.CallContract(ctx, ethereum.CallMsg{To: &a.quoter, Data: data}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return model.SwapQuote{}, ctx.Err()
		}
		return model.SwapQuote{}, fmt.Errorf("%w: quoter call: %v", amm.ErrQuoteUnavailable, err)
	}
	values, err := quoterABI.Unpack("quoteExactInputSingle", resp)
	if err != nil || len(values) < 2 {
		return model.SwapQuote{}, fmt.Errorf("%w: unpack quoter result: %v", amm.ErrQuoteUnavailable, err)
	}
	rawOut, err := asBigInt(values[0])
	if err != nil {
		return model.SwapQuote{}, fmt.Errorf("%w: amount out: %v", amm.ErrQuoteUnavailable, err)
	}
	if rawOut.Sign() == 0 {
		return model.SwapQuote{}, fmt.Errorf("%w: zero output for %v %s", amm.ErrQuoteUnavailable, amountIn, tokenIn.Symbol)
	}
	sqrtAfter, err := asBigInt(values[1])
	if err != nil {
		return model.SwapQuote{}, fmt.Errorf("%w: price after: %v", amm.ErrQuoteUnavailable, err)
	}
	if depthExhausted(sqrtAfter, from == model.SideA) {
		return model.SwapQuote{}, fmt.Errorf("%w: pool cannot fill %v %s", amm.ErrQuoteUnavailable, amountIn, tokenIn.Symbol)
	}

	out := FromRaw(rawOut, tokenOut.Decimals)
	quote := model.SwapQuote{
		InputAmount:    amountIn,
		OutputAmount:   out,
		Fee:            amountIn * float64(info.Fee) / feeDenominator,
		ExecutionPrice: out / amountIn,
	}

	sqrtBefore, _, err := FetchPoolState(ctx, a.backend, common.HexToAddress(info.PoolID))
	if err == nil {
		before := PriceFromSqrtX96(sqrtBefore, info.TokenA.Decimals, info.TokenB.Decimals)
		after := PriceFromSqrtX96(sqrtAfter, info.TokenA.Decimals, info.TokenB.Decimals)
		if before > 0 {
			quote.PriceImpact = math.Abs(after-before) / before
		}
	} else {
		a.log.Debug("price impact unavailable", zap.String("pool", info.PoolID), zap.Error(err))
	}
	return quote, nil
}

// depthExhausted reports whether a swap ended at the price bound of its
// direction. Token A is token0, so selling it moves the price down.
func depthExhausted(sqrtAfter *big.Int, zeroForOne bool) bool {
	if zeroForOne {
		return sqrtAfter.Cmp(new(big.Int).Add(minSqrtRatio, big.NewInt(1))) <= 0
	}
	return sqrtAfter.Cmp(new(big.Int).Sub(maxSqrtRatio, big.NewInt(1))) >= 0
}

func (a *Adapter) LiquidityQuote(ctx context.Context, poolID string, priceRange model.PriceRange, principal float64, side model.Side) (model.LiquidityQuote, error) {
	price, err := a.CurrentPrice(ctx, poolID)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	return amm.QuoteLiquidity(price, priceRange, principal, side)
}

// PoolStats merges off-chain activity figures with on-chain liquidity. When the
// source has no TVL it is derived from the pool's token balances.
func (a *Adapter) PoolStats(ctx context.Context, poolID string) (model.PoolStats, error) {
	info, err := a.PoolInfo(ctx, poolID)
	if err != nil {
		return model.PoolStats{}, err
	}
	pool := common.HexToAddress(info.PoolID)

	var stats model.PoolStats
	if a.stats != nil {
		stats, err = a.stats.PoolStats(ctx, poolID)
		if err != nil {
			return model.PoolStats{}, fmt.Errorf("pool stats source: %w", err)
		}
	}
	stats.PoolID = info.PoolID
	if stats.FeeRate == 0 {
		stats.FeeRate = float64(info.Fee) / feeDenominator
	}
	if stats.CapturedAt.IsZero() {
		stats.CapturedAt = a.now().UTC()
	}

	sqrtPriceX96, rawLiquidity, err := FetchPoolState(ctx, a.backend, pool)
	if err != nil {
		return model.PoolStats{}, err
	}
	stats.Liquidity = HumanLiquidity(rawLiquidity, info.TokenA.Decimals, info.TokenB.Decimals)

	if stats.TVLUSD == 0 && stats.QuotePriceUSD > 0 {
		bal0, err0 := BalanceOf(ctx, a.backend, common.HexToAddress(info.TokenA.Address), pool)
		bal1, err1 := BalanceOf(ctx, a.backend, common.HexToAddress(info.TokenB.Address), pool)
		if err0 == nil && err1 == nil {
			price := PriceFromSqrtX96(sqrtPriceX96, info.TokenA.Decimals, info.TokenB.Decimals)
			amountA := FromRaw(bal0, info.TokenA.Decimals)
			amountB := FromRaw(bal1, info.TokenB.Decimals)
			stats.TVLUSD = (amountA*price + amountB) * stats.QuotePriceUSD
		} else {
			a.log.Warn("pool balance lookup failed", zap.String("pool", info.PoolID), zap.Error(errors.Join(err0, err1)))
		}
	}
	return stats, nil
}

func (a *Adapter) poolMeta(ctx context.Context, pool common.Address) (model.PoolMeta, error) {
	if meta, ok := a.poolCache.Get(pool); ok {
		return meta, nil
	}
	meta, err := FetchPoolMeta(ctx, a.backend, pool)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("pool metadata %s: %w", pool.Hex(), err)
	}
	a.poolCache.Set(pool, meta)
	return meta, nil
}

func (a *Adapter) tokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := a.tokenCache.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, a.backend, token, a.log)
	if err != nil {
		return model.TokenMeta{}, err
	}
	a.tokenCache.Set(token, meta)
	return meta, nil
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid pool address %q", value)
	}
	return common.HexToAddress(value), nil
}
