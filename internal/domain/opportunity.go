package domain

import "time"

// Direction names which hedge was solved for an opportunity.
type Direction string

const (
	// DirectionYesLay holds prediction-market YES and lays the team on the
	// exchange.
	DirectionYesLay Direction = "PM_YES_vs_EXCHANGE_LAY"
	// DirectionNoBack holds prediction-market NO and backs the team on the
	// exchange.
	DirectionNoBack Direction = "PM_NO_vs_EXCHANGE_BACK"
)

// Opportunity is one evaluated hedge that cleared the profit threshold. Rows
// are append-only; each evaluation run writes a fresh batch.
type Opportunity struct {
	ID               string    `json:"id"`
	RunID            string    `json:"run_id"`
	EventUID         string    `json:"event_uid"`
	Team             string    `json:"team"`
	Direction        Direction `json:"direction"`
	PMSide           string    `json:"pm_side"`
	PMPrice          float64   `json:"pm_price"`
	PMStake          float64   `json:"pm_stake"`
	ExchangeSide     string    `json:"exchange_side"`
	ExchangeOdds     float64   `json:"exchange_odds"`
	HedgeStake       float64   `json:"hedge_stake"`
	ProfitIfWins     float64   `json:"profit_if_wins"`
	ProfitIfNotWins  float64   `json:"profit_if_not_wins"`
	WorstCase        float64   `json:"worst_case"`
	BinaryMarketID   string    `json:"binary_market_id"`
	ExchangeMarketID string    `json:"exchange_market_id"`
	DetectedAt       time.Time `json:"detected_at"`
}
