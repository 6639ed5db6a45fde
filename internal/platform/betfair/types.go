package betfair

import "encoding/json"

// rpcRequest is one Exchange API-NG JSON-RPC call.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type loginResponse struct {
	SessionToken string `json:"sessionToken"`
	LoginStatus  string `json:"loginStatus"`
}

type marketFilter struct {
	EventTypeIDs    []string `json:"eventTypeIds,omitempty"`
	CompetitionIDs  []string `json:"competitionIds,omitempty"`
	EventIDs        []string `json:"eventIds,omitempty"`
	MarketTypeCodes []string `json:"marketTypeCodes,omitempty"`
}

type competitionResult struct {
	Competition struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"competition"`
	MarketCount int `json:"marketCount"`
}

type eventResult struct {
	Event struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		CountryCode string `json:"countryCode"`
		OpenDate    string `json:"openDate"`
	} `json:"event"`
	MarketCount int `json:"marketCount"`
}

type marketCatalogue struct {
	MarketID        string `json:"marketId"`
	MarketName      string `json:"marketName"`
	MarketStartTime string `json:"marketStartTime"`
	Description     *struct {
		MarketType string `json:"marketType"`
	} `json:"description"`
	Competition *struct {
		Name string `json:"name"`
	} `json:"competition"`
	Event *struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		OpenDate string `json:"openDate"`
	} `json:"event"`
	Runners []struct {
		SelectionID int64  `json:"selectionId"`
		RunnerName  string `json:"runnerName"`
	} `json:"runners"`
}

type priceSize struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

type marketBook struct {
	MarketID        string `json:"marketId"`
	Status          string `json:"status"`
	LastMatchTime   string `json:"lastMatchTime"`
	Runners         []struct {
		SelectionID int64 `json:"selectionId"`
		Status      string `json:"status"`
		Ex          struct {
			AvailableToBack []priceSize `json:"availableToBack"`
			AvailableToLay  []priceSize `json:"availableToLay"`
		} `json:"ex"`
	} `json:"runners"`
}
