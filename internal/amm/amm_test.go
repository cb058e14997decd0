package amm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"liquidityPilot/internal/model"
)

type stubPort struct {
	calls    atomic.Int32
	failures int32
	block    bool
	price    float64
	swapErr  error
}

func (s *stubPort) CurrentPrice(ctx context.Context, poolID string) (float64, error) {
	n := s.calls.Add(1)
	if s.block {
		time.Sleep(200 * time.Millisecond)
		return 0, nil
	}
	if n <= s.failures {
		return 0, errors.New("rpc unavailable")
	}
	return s.price, nil
}

func (s *stubPort) SwapQuote(context.Context, string, float64, model.Side) (model.SwapQuote, error) {
	s.calls.Add(1)
	return model.SwapQuote{}, s.swapErr
}

func (s *stubPort) LiquidityQuote(context.Context, string, model.PriceRange, float64, model.Side) (model.LiquidityQuote, error) {
	return model.LiquidityQuote{}, nil
}

func (s *stubPort) PoolStats(context.Context, string) (model.PoolStats, error) {
	return model.PoolStats{}, nil
}

func (s *stubPort) PoolInfo(context.Context, string) (model.PoolInfo, error) {
	return model.PoolInfo{}, nil
}

func TestGuardedTimeoutIsQuoteUnavailable(t *testing.T) {
	port := &stubPort{block: true}
	guarded := NewGuarded(port, GuardOptions{CallTimeout: 20 * time.Millisecond})

	_, err := guarded.CurrentPrice(context.Background(), "pool")
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestGuardedRetriesTransientErrors(t *testing.T) {
	port := &stubPort{failures: 2, price: 1.5}
	var observed string
	guarded := NewGuarded(port, GuardOptions{
		CallTimeout:    time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		Observer: func(method string, _ time.Duration, err error) {
			if err == nil {
				observed = method
			}
		},
	})

	price, err := guarded.CurrentPrice(context.Background(), "pool")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 1.5 {
		t.Fatalf("expected price 1.5, got %v", price)
	}
	if got := port.calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
	if observed != "current_price" {
		t.Fatalf("observer not notified, got %q", observed)
	}
}

func TestGuardedGivesUpAfterMaxRetries(t *testing.T) {
	port := &stubPort{failures: 10}
	guarded := NewGuarded(port, GuardOptions{MaxRetries: 1, RetryBaseDelay: time.Millisecond})

	if _, err := guarded.CurrentPrice(context.Background(), "pool"); err == nil {
		t.Fatalf("expected error")
	}
	if got := port.calls.Load(); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestGuardedRetriesTimeouts(t *testing.T) {
	port := &stubPort{block: true}
	guarded := NewGuarded(port, GuardOptions{CallTimeout: 20 * time.Millisecond, MaxRetries: 1, RetryBaseDelay: time.Millisecond})

	_, err := guarded.CurrentPrice(context.Background(), "pool")
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
	if got := port.calls.Load(); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestGuardedDoesNotRetryRejectedQuote(t *testing.T) {
	port := &stubPort{swapErr: fmt.Errorf("%w: pool cannot fill 10 AAA", ErrQuoteUnavailable)}
	guarded := NewGuarded(port, GuardOptions{MaxRetries: 3, RetryBaseDelay: time.Millisecond})

	_, err := guarded.SwapQuote(context.Background(), "pool", 10, model.SideA)
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
	if got := port.calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestQuoteLiquidityPrincipalA(t *testing.T) {
	r := model.PriceRange{Min: 0.08, Max: 0.12}
	q, err := QuoteLiquidity(0.10, r, 45, model.SideA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.AmountA != 45 {
		t.Fatalf("principal leg should be pinned, got %v", q.AmountA)
	}
	wantL := 45 / (1/math.Sqrt(0.10) - 1/math.Sqrt(0.12))
	if math.Abs(q.Liquidity-wantL) > 1e-9 {
		t.Fatalf("liquidity: want %v, got %v", wantL, q.Liquidity)
	}
	wantB := wantL * (math.Sqrt(0.10) - math.Sqrt(0.08))
	if math.Abs(q.AmountB-wantB) > 1e-9 {
		t.Fatalf("counter: want %v, got %v", wantB, q.AmountB)
	}
}

func TestQuoteLiquidityBelowBandNeedsNoCounter(t *testing.T) {
	q, err := QuoteLiquidity(0.05, model.PriceRange{Min: 0.08, Max: 0.12}, 10, model.SideA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.AmountB != 0 {
		t.Fatalf("expected zero counter amount, got %v", q.AmountB)
	}
}

func TestQuoteLiquidityUnusablePrincipal(t *testing.T) {
	r := model.PriceRange{Min: 0.08, Max: 0.12}
	cases := []struct {
		price float64
		side  model.Side
	}{
		{price: 0.12, side: model.SideA},
		{price: 0.2, side: model.SideA},
		{price: 0.08, side: model.SideB},
		{price: 0.05, side: model.SideB},
	}
	for _, tc := range cases {
		q, err := QuoteLiquidity(tc.price, r, 10, tc.side)
		if err != nil {
			t.Fatalf("price %v side %s: %v", tc.price, tc.side, err)
		}
		if q != (model.LiquidityQuote{}) {
			t.Fatalf("price %v side %s: expected empty quote, got %+v", tc.price, tc.side, q)
		}
	}

	_, err := QuoteLiquidity(0.1, model.PriceRange{Min: 0.12, Max: 0.08}, 10, model.SideB)
	if !errors.Is(err, model.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}
