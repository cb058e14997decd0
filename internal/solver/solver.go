package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"liquidityPilot/internal/amm"
	"liquidityPilot/internal/model"
)

var (
	// ErrInvalidAmount is returned for a non-positive or non-finite input amount.
	ErrInvalidAmount = errors.New("invalid input amount")
	// ErrNoConvergence is returned when the iteration budget runs out before the
	// swap output matches the deposit requirement.
	ErrNoConvergence = errors.New("split did not converge")
)

const (
	DefaultTolerance     = 0.05
	DefaultMaxIterations = 10
)

// Options tunes the bisection.
type Options struct {
	Tolerance     float64
	MaxIterations int
	Logger        *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Solve bisects the swapped share of the principal until the counter token
// received from the swap covers what the deposit of the remainder requires,
// with at most Tolerance left over. A split that falls short is never accepted,
// so the counter token is always paid from the swap itself. At a band edge the
// position is one-sided: the input is either deposited as is or swapped whole
// and deposited as counter token.
// Quotes are requested one at a time; a failed quote ends the search.
func Solve(ctx context.Context, port amm.QueryPort, req model.ProvisionRequest, opts Options) (model.ProvisionResult, error) {
	opts = opts.withDefaults()
	if req.InputAmount <= 0 || math.IsNaN(req.InputAmount) || math.IsInf(req.InputAmount, 0) {
		return model.ProvisionResult{}, fmt.Errorf("%w: %v", ErrInvalidAmount, req.InputAmount)
	}
	if err := req.Range.Validate(); err != nil {
		return model.ProvisionResult{}, err
	}
	if !req.PrincipalSide.Valid() {
		return model.ProvisionResult{}, fmt.Errorf("invalid principal side %q", req.PrincipalSide)
	}

	log := opts.Logger.With(zap.String("pool", req.PoolID), zap.String("owner", req.OwnerID))
	lower, upper := 0.0, req.InputAmount

	for iteration := 1; iteration <= opts.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return model.ProvisionResult{}, err
		}
		mid := (lower + upper) / 2

		swap, err := port.SwapQuote(ctx, req.PoolID, mid, req.PrincipalSide)
		if err != nil {
			return model.ProvisionResult{}, fmt.Errorf("swap quote at %v: %w", mid, err)
		}
		remaining := req.InputAmount - mid
		deposit, err := port.LiquidityQuote(ctx, req.PoolID, req.Range, remaining, req.PrincipalSide)
		if err != nil {
			return model.ProvisionResult{}, fmt.Errorf("liquidity quote for %v: %w", remaining, err)
		}
		out := swap.OutputAmount
		need := deposit.Amount(req.PrincipalSide.Counter())
		if remaining > 0 && deposit.Amount(req.PrincipalSide) == 0 {
			log.Debug("principal unusable in band, swapping all", zap.Int("iteration", iteration))
			return swapAll(ctx, port, req, iteration)
		}
		if remaining > 0 && need == 0 {
			log.Debug("band needs no counter token, depositing all", zap.Int("iteration", iteration))
			return depositAll(ctx, port, req, iteration)
		}
		diff := out - need
		log.Debug("split iteration",
			zap.Int("iteration", iteration),
			zap.Float64("swap_in", mid),
			zap.Float64("swap_out", out),
			zap.Float64("counter_needed", need),
			zap.Float64("diff", diff),
		)

		if diff >= 0 && diff <= opts.Tolerance {
			return result(swap, mid, deposit, iteration), nil
		}
		if diff < 0 {
			lower = mid
		} else {
			upper = mid
		}
	}

	return model.ProvisionResult{}, fmt.Errorf("%w after %d iterations (tolerance %v)", ErrNoConvergence, opts.MaxIterations, opts.Tolerance)
}

// depositAll deposits the whole input without swapping.
func depositAll(ctx context.Context, port amm.QueryPort, req model.ProvisionRequest, iteration int) (model.ProvisionResult, error) {
	deposit, err := port.LiquidityQuote(ctx, req.PoolID, req.Range, req.InputAmount, req.PrincipalSide)
	if err != nil {
		return model.ProvisionResult{}, fmt.Errorf("liquidity quote for %v: %w", req.InputAmount, err)
	}
	return result(model.SwapQuote{}, 0, deposit, iteration), nil
}

// swapAll converts the whole input and deposits the output on the counter side.
func swapAll(ctx context.Context, port amm.QueryPort, req model.ProvisionRequest, iteration int) (model.ProvisionResult, error) {
	swap, err := port.SwapQuote(ctx, req.PoolID, req.InputAmount, req.PrincipalSide)
	if err != nil {
		return model.ProvisionResult{}, fmt.Errorf("swap quote at %v: %w", req.InputAmount, err)
	}
	counter := req.PrincipalSide.Counter()
	deposit, err := port.LiquidityQuote(ctx, req.PoolID, req.Range, swap.OutputAmount, counter)
	if err != nil {
		return model.ProvisionResult{}, fmt.Errorf("liquidity quote for %v: %w", swap.OutputAmount, err)
	}
	if deposit.Amount(counter) == 0 {
		return model.ProvisionResult{}, fmt.Errorf("%w: neither token fits the band", amm.ErrQuoteUnavailable)
	}
	return result(swap, req.InputAmount, deposit, iteration), nil
}

func result(swap model.SwapQuote, swapIn float64, deposit model.LiquidityQuote, iterations int) model.ProvisionResult {
	return model.ProvisionResult{
		Swap: model.SwapLeg{
			InputAmount:    swapIn,
			InputFee:       swap.Fee,
			OutputAmount:   swap.OutputAmount,
			ExecutionPrice: swap.ExecutionPrice,
			PriceImpact:    swap.PriceImpact,
		},
		Deposit: model.DepositLeg{
			AmountA:   deposit.AmountA,
			AmountB:   deposit.AmountB,
			FeeA:      deposit.FeeA,
			FeeB:      deposit.FeeB,
			Liquidity: deposit.Liquidity,
		},
		Iterations: iterations,
	}
}
