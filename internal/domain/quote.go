package domain

import "time"

// PairKey is the compound key on which prediction-market and exchange quotes
// are matched.
type PairKey struct {
	EventUID string
	Team     string
}

// BinaryQuote is a prediction-market "will <team> win" contract. YesPrice is a
// probability in (0, 1). NoPrice is optional; see No.
type BinaryQuote struct {
	Venue     string
	MarketID  string
	EventUID  string
	Team      string
	Question  string
	YesPrice  float64
	NoPrice   *float64
	Liquidity *float64
	UpdatedAt time.Time
}

// No returns the explicit NO price when the venue supplied one and
// 1 - YesPrice otherwise.
func (q BinaryQuote) No() float64 {
	if q.NoPrice != nil {
		return *q.NoPrice
	}
	return 1 - q.YesPrice
}

// Key returns the match key for q.
func (q BinaryQuote) Key() PairKey {
	return PairKey{EventUID: q.EventUID, Team: q.Team}
}

// ExchangeQuote is the top of book for one selection on an exchange market.
// Either side may be nil when the book is empty on that side.
type ExchangeQuote struct {
	Venue       string
	MarketID    string
	SelectionID string
	EventUID    string
	Team        string
	BackOdds    *float64
	LayOdds     *float64
	UpdatedAt   time.Time
}

// ID is the upsert key of the quote: venue:market:selection.
func (q ExchangeQuote) ID() string {
	return q.Venue + ":" + q.MarketID + ":" + q.SelectionID
}

// Key returns the match key for q.
func (q ExchangeQuote) Key() PairKey {
	return PairKey{EventUID: q.EventUID, Team: q.Team}
}

// Float returns a pointer to v, for optional price fields.
func Float(v float64) *float64 {
	return &v
}
