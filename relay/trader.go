package relay

import "context"

// TimeLayout is the position open-time format used on the wire.
const TimeLayout = "2006-01-02 15:04:05"

// Trader executes trading operations against an MT5 account. Implementations
// must be safe for concurrent use; the relay serves many clients at once.
type Trader interface {
	// Connected reports whether the trading backend is reachable.
	Connected() bool

	// Reconnect re-establishes the backend connection after an outage.
	Reconnect(ctx context.Context) error

	AccountInfo(ctx context.Context) (*AccountInfo, error)

	// Positions returns open positions, filtered by MT5 symbol when symbol
	// is non-empty.
	Positions(ctx context.Context, symbol string) ([]Position, error)

	OpenPosition(ctx context.Context, order OpenOrder) (*OpenResult, error)

	CloseByTicket(ctx context.Context, ticket int64) error

	// CloseBySymbol closes every position on the symbol and reports how many
	// it closed. Having nothing to close is not an error.
	CloseBySymbol(ctx context.Context, symbol string) (int, error)

	CloseAll(ctx context.Context) (int, error)
}

// OpenOrder is a market order request with symbol mapping and volume scaling
// already applied.
type OpenOrder struct {
	Symbol    string
	OrderType string
	Volume    float64

	// ProfitAmount, when positive, asks the trader to derive a take-profit
	// price that realizes this account-currency amount.
	ProfitAmount float64

	// Deviation is the maximum slippage in points for the market fill.
	Deviation int

	Comment string
}

// OpenResult reports the fill of a successfully opened position.
type OpenResult struct {
	Ticket int64
	Price  float64
}

// Position mirrors an MT5 position as serialized to clients.
type Position struct {
	Ticket       int64   `json:"ticket"`
	Time         string  `json:"time"`
	Type         string  `json:"type"`
	Volume       float64 `json:"volume"`
	Symbol       string  `json:"symbol"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	SL           float64 `json:"sl"`
	TP           float64 `json:"tp"`
	Profit       float64 `json:"profit"`
	Swap         float64 `json:"swap"`
	Comment      string  `json:"comment"`

	// OriginalSymbol is the platform-side symbol, filled in by the relay
	// from the reverse symbol mapping. Traders leave it empty.
	OriginalSymbol string `json:"original_symbol,omitempty"`
}

// AccountInfo mirrors the MT5 account snapshot as serialized to clients.
type AccountInfo struct {
	Login             int64   `json:"login"`
	Server            string  `json:"server"`
	Currency          string  `json:"currency"`
	Leverage          int     `json:"leverage"`
	Balance           float64 `json:"balance"`
	Equity            float64 `json:"equity"`
	Margin            float64 `json:"margin"`
	MarginFree        float64 `json:"margin_free"`
	MarginLevel       float64 `json:"margin_level"`
	MarginSOMode      int     `json:"margin_so_mode"`
	MarginSOCall      float64 `json:"margin_so_call"`
	MarginSOSO        float64 `json:"margin_so_so"`
	MarginInitial     float64 `json:"margin_initial"`
	MarginMaintenance float64 `json:"margin_maintenance"`
	Assets            float64 `json:"assets"`
	Liabilities       float64 `json:"liabilities"`
	CommissionBlocked float64 `json:"commission_blocked"`
	Name              string  `json:"name"`
	TradeMode         int     `json:"trade_mode"`
	LimitOrders       int     `json:"limit_orders"`
}
