package evaluator

import (
	"math"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Hedge is a solved two-leg position.
type Hedge struct {
	Direction       domain.Direction
	PMPrice         float64 // quoted price of the prediction-market side held
	PMStake         float64
	ExchangeOdds    float64
	HedgeStake      float64
	ProfitIfWins    float64
	ProfitIfNotWins float64
}

// WorstCase is the guaranteed profit of the position.
func (h Hedge) WorstCase() float64 {
	return math.Min(h.ProfitIfWins, h.ProfitIfNotWins)
}

// Imbalance is the gap between the two outcome profits.
func (h Hedge) Imbalance() float64 {
	return math.Abs(h.ProfitIfWins - h.ProfitIfNotWins)
}

// balanced reports whether the two outcome profits agree within tolerance.
func (c Config) balanced(h Hedge) bool {
	scale := math.Max(1, math.Max(math.Abs(h.ProfitIfWins), math.Abs(h.ProfitIfNotWins)))
	return h.Imbalance() <= c.BalanceTolerance*scale
}

// SolveLay solves direction A: hold YES at yesPrice, lay the team at
// layOdds. The lay stake K equalizes both outcomes:
//
//	K = (A - B) / (L - c)
//
// where A and B are the YES leg's profit if the team wins and its loss if it
// does not. ok is false when the denominator does not exceed MinDenominator.
func SolveLay(cfg Config, yesPrice, layOdds float64) (h Hedge, ok bool) {
	denom := layOdds - cfg.Commission
	if denom <= cfg.MinDenominator {
		return Hedge{}, false
	}
	a, b := pmLeg(cfg.BaseStake, cfg.EffectivePrice(yesPrice))
	k := (a - b) / denom
	if !finitePositive(k) {
		return Hedge{}, false
	}
	layWins, layNot := layLeg(k, layOdds, cfg.Commission)
	return Hedge{
		Direction:       domain.DirectionYesLay,
		PMPrice:         yesPrice,
		PMStake:         cfg.BaseStake,
		ExchangeOdds:    layOdds,
		HedgeStake:      k,
		ProfitIfWins:    a + layWins,
		ProfitIfNotWins: b + layNot,
	}, true
}

// SolveBack solves direction B: hold NO at noPrice, back the team at
// backOdds. The back stake Kb equalizes both outcomes:
//
//	Kb = (pmNotWins - pmLossIfWins) / ((O-1)(1-c) + 1)
//
// ok is false when the denominator does not exceed MinDenominator.
func SolveBack(cfg Config, noPrice, backOdds float64) (h Hedge, ok bool) {
	perUnit, _ := backLeg(1, backOdds, cfg.Commission)
	denom := perUnit + 1
	if denom <= cfg.MinDenominator {
		return Hedge{}, false
	}
	// The NO side resolves true when the team does not win.
	pmNotWins, pmLossIfWins := pmLeg(cfg.BaseStake, cfg.EffectivePrice(noPrice))
	kb := (pmNotWins - pmLossIfWins) / denom
	if !finitePositive(kb) {
		return Hedge{}, false
	}
	backWins, backNot := backLeg(kb, backOdds, cfg.Commission)
	return Hedge{
		Direction:       domain.DirectionNoBack,
		PMPrice:         noPrice,
		PMStake:         cfg.BaseStake,
		ExchangeOdds:    backOdds,
		HedgeStake:      kb,
		ProfitIfWins:    pmLossIfWins + backWins,
		ProfitIfNotWins: pmNotWins + backNot,
	}, true
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
