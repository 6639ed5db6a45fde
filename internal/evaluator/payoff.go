package evaluator

// Each leg maps the two outcomes of "team wins" to a signed profit in the
// stake currency. Draw and loss collapse into "not wins".

// EffectivePrice is the prediction-market price plus fee and slippage.
func (c Config) EffectivePrice(price float64) float64 {
	return price + c.TradingFee + c.Slippage
}

// pmLeg returns the payoff of holding one prediction-market side: ifSide when
// the side held resolves true, ifNot otherwise.
func pmLeg(stake, effective float64) (ifSide, ifNot float64) {
	return stake * (1 - effective), -stake * effective
}

// layLeg returns the payoff of laying the team: the liability is paid when
// it wins, the stake is kept less commission when it does not.
func layLeg(stake, odds, commission float64) (ifWins, ifNotWins float64) {
	return -stake * (odds - 1), stake * (1 - commission)
}

// backLeg returns the payoff of backing the team.
func backLeg(stake, odds, commission float64) (ifWins, ifNotWins float64) {
	return stake * (odds - 1) * (1 - commission), -stake
}
