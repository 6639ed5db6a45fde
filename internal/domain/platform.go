package domain

// Platform is the class of venue a quote comes from. The evaluator only ever
// joins one prediction-market quote with one exchange quote.
type Platform string

const (
	PlatformPrediction Platform = "prediction-market"
	PlatformExchange   Platform = "exchange"
)

// Venue names used as quote ID prefixes and in logs.
const (
	VenuePolymarket = "polymarket"
	VenueBetfair    = "betfair"
	VenueBetdex     = "betdex"
	VenueKalshi     = "kalshi"
	VenueMock       = "mock"
)
