package evaluator

import "github.com/alanyoungcy/arbengine/internal/domain"

// Pair is one prediction-market quote and one exchange quote for the same
// event and team.
type Pair struct {
	Binary   domain.BinaryQuote
	Exchange domain.ExchangeQuote
}

// Match joins the two quote sets on (event UID, team). When the exchange
// carries the same key in several markets the freshest quote wins. Output
// follows the order of binary.
func Match(binary []domain.BinaryQuote, exchange []domain.ExchangeQuote) []Pair {
	latest := make(map[domain.PairKey]domain.ExchangeQuote, len(exchange))
	for _, q := range exchange {
		prev, ok := latest[q.Key()]
		if !ok || q.UpdatedAt.After(prev.UpdatedAt) {
			latest[q.Key()] = q
		}
	}

	pairs := make([]Pair, 0, len(binary))
	for _, b := range binary {
		x, ok := latest[b.Key()]
		if !ok {
			continue
		}
		pairs = append(pairs, Pair{Binary: b, Exchange: x})
	}
	return pairs
}
