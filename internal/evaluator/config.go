package evaluator

import (
	"fmt"
	"strings"
)

// Config parameterizes the hedge solver. Every friction and guard is tunable.
type Config struct {
	// Commission is the exchange's cut of net winnings, e.g. 0.03.
	Commission float64
	// TradingFee and Slippage are added to the prediction-market price to
	// form the effective price.
	TradingFee float64
	Slippage   float64
	// MinProfit is the smallest guaranteed profit, in currency units, worth
	// reporting.
	MinProfit float64
	// BaseStake is the stake placed on the prediction-market leg.
	BaseStake float64
	// MinOdds rejects exchange quotes at or below this price as too thin to
	// trust.
	MinOdds float64
	// MinDenominator is the bound a solver denominator must exceed for the
	// direction to be feasible.
	MinDenominator float64
	// BalanceTolerance bounds |profit_if_wins - profit_if_not_wins| relative
	// to max(1, |profit|). A wider gap is treated as a solver failure.
	BalanceTolerance float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Commission:       0.03,
		TradingFee:       0.0,
		Slippage:         0.002,
		MinProfit:        0.10,
		BaseStake:        5.0,
		MinOdds:          1.01,
		MinDenominator:   0,
		BalanceTolerance: 1e-9,
	}
}

// Validate rejects configurations under which the solver is meaningless.
func (c Config) Validate() error {
	var errs []string
	if c.Commission < 0 || c.Commission >= 1 {
		errs = append(errs, fmt.Sprintf("commission must be in [0, 1), got %g", c.Commission))
	}
	if c.TradingFee < 0 {
		errs = append(errs, "trading fee must be >= 0")
	}
	if c.Slippage < 0 {
		errs = append(errs, "slippage must be >= 0")
	}
	if c.BaseStake <= 0 {
		errs = append(errs, "base stake must be > 0")
	}
	if c.MinOdds < 1 {
		errs = append(errs, "min odds must be >= 1")
	}
	if c.MinDenominator < 0 {
		errs = append(errs, "min denominator must be >= 0")
	}
	if c.BalanceTolerance <= 0 {
		errs = append(errs, "balance tolerance must be > 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("evaluator: invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
