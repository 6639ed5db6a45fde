// Package report renders opportunities as one-line operator summaries.
package report

import (
	"fmt"
	"io"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Line renders one opportunity:
//
//	[arb] <uid> | Real Madrid | PM_NO_vs_EXCHANGE_BACK | worst=EUR 0.17 | PM=NO@0.600 | odds=BACK@2.80 | stake_pm=5.00 | hedge=1.82
func Line(o domain.Opportunity, currency string) string {
	if currency == "" {
		currency = "EUR"
	}
	return fmt.Sprintf("[arb] %s | %s | %s | worst=%s %.2f | PM=%s@%.3f | odds=%s@%.2f | stake_pm=%.2f | hedge=%.2f",
		o.EventUID, o.Team, o.Direction,
		currency, o.WorstCase,
		o.PMSide, o.PMPrice,
		o.ExchangeSide, o.ExchangeOdds,
		o.PMStake, o.HedgeStake,
	)
}

// Summary writes the first topN lines of an already ranked batch, or a single
// "no opportunities" line. topN <= 0 writes every line.
func Summary(w io.Writer, opps []domain.Opportunity, topN int, currency string) error {
	if len(opps) == 0 {
		_, err := fmt.Fprintln(w, "[arb] no opportunities")
		return err
	}
	if topN > 0 && topN < len(opps) {
		opps = opps[:topN]
	}
	for _, o := range opps {
		if _, err := fmt.Fprintln(w, Line(o, currency)); err != nil {
			return err
		}
	}
	return nil
}
