package amm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"liquidityPilot/internal/model"
)

// Observer receives the outcome of every port call.
type Observer func(method string, elapsed time.Duration, err error)

// GuardOptions bounds each port call.
type GuardOptions struct {
	CallTimeout    time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	Observer       Observer
	Logger         *zap.Logger
}

// Guarded decorates a QueryPort with a per-call deadline and retries. A call
// that runs out of time is reported as ErrQuoteUnavailable and retried. A quote
// the pool rejects outright is not.
type Guarded struct {
	next QueryPort
	opts GuardOptions
	log  *zap.Logger
}

var _ QueryPort = (*Guarded)(nil)

func NewGuarded(next QueryPort, opts GuardOptions) *Guarded {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guarded{next: next, opts: opts, log: logger}
}

// Ping forwards to the wrapped port when it supports it.
func (g *Guarded) Ping(ctx context.Context) error {
	pinger, ok := g.next.(Pinger)
	if !ok {
		return nil
	}
	_, err := call(ctx, g, "ping", func(callCtx context.Context) (struct{}, error) {
		return struct{}{}, pinger.Ping(callCtx)
	})
	return err
}

func (g *Guarded) CurrentPrice(ctx context.Context, poolID string) (float64, error) {
	return call(ctx, g, "current_price", func(callCtx context.Context) (float64, error) {
		return g.next.CurrentPrice(callCtx, poolID)
	})
}

func (g *Guarded) SwapQuote(ctx context.Context, poolID string, amountIn float64, from model.Side) (model.SwapQuote, error) {
	return call(ctx, g, "swap_quote", func(callCtx context.Context) (model.SwapQuote, error) {
		return g.next.SwapQuote(callCtx, poolID, amountIn, from)
	})
}

func (g *Guarded) LiquidityQuote(ctx context.Context, poolID string, priceRange model.PriceRange, principal float64, side model.Side) (model.LiquidityQuote, error) {
	return call(ctx, g, "liquidity_quote", func(callCtx context.Context) (model.LiquidityQuote, error) {
		return g.next.LiquidityQuote(callCtx, poolID, priceRange, principal, side)
	})
}

func (g *Guarded) PoolStats(ctx context.Context, poolID string) (model.PoolStats, error) {
	return call(ctx, g, "pool_stats", func(callCtx context.Context) (model.PoolStats, error) {
		return g.next.PoolStats(callCtx, poolID)
	})
}

func (g *Guarded) PoolInfo(ctx context.Context, poolID string) (model.PoolInfo, error) {
	return call(ctx, g, "pool_info", func(callCtx context.Context) (model.PoolInfo, error) {
		return g.next.PoolInfo(callCtx, poolID)
	})
}

type outcome[T any] struct {
	value T
	err   error
}

// call runs fn under the per-call deadline even when fn ignores its context.
func call[T any](ctx context.Context, g *Guarded, method string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	attempt := 0
	var result T
	err := withRetry(ctx, g.opts.MaxRetries, g.opts.RetryBaseDelay, func(ctx context.Context) error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()

		done := make(chan outcome[T], 1)
		go func() {
			value, err := fn(callCtx)
			done <- outcome[T]{value: value, err: err}
		}()

		var err error
		select {
		case out := <-done:
			result, err = out.value, out.err
		case <-callCtx.Done():
			err = callCtx.Err()
		}
		if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s timed out after %s: %w", ErrQuoteUnavailable, method, g.opts.CallTimeout, context.DeadlineExceeded)
		}
		if err != nil {
			g.log.Debug("amm call failed", zap.String("method", method), zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	if g.opts.Observer != nil {
		g.opts.Observer(method, time.Since(start), err)
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", method, err)
	}
	return result, nil
}
