package atasmt5

import (
	"time"

	"github.com/google/uuid"
)

// Actions understood by the relay.
const (
	ActionHealthCheck            = "health_check"
	ActionGetAccountInfo         = "get_account_info"
	ActionGetPositions           = "get_positions"
	ActionOpenPosition           = "open_position"
	ActionClosePositionByTicket  = "close_position_by_ticket"
	ActionClosePositionsBySymbol = "close_positions_by_symbol"
	ActionCloseAllPositions      = "close_all_positions"
	ActionGetSymbolMappings      = "get_symbol_mappings"
	ActionAddSymbolMapping       = "add_symbol_mapping"
	ActionRemoveSymbolMapping    = "remove_symbol_mapping"
)

// Order sides accepted by open_position.
const (
	OrderTypeBuy  = "BUY"
	OrderTypeSell = "SELL"
)

// --- Requests (Client -> Relay) ---

// Request is the envelope for one outbound message. Every Send builds a
// fresh one: a new id, the action name, the action-specific params, and the
// wall-clock send time.
type Request struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Params    any       `json:"params"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRequest creates a request envelope with a fresh unique id and the
// current time. A nil params is normalized to an empty object so the relay
// always sees a params field it can index into.
func NewRequest(action string, params any) *Request {
	if params == nil {
		params = struct{}{}
	}
	return &Request{
		ID:        uuid.New().String(),
		Action:    action,
		Params:    params,
		Timestamp: time.Now(),
	}
}

// OpenPositionParams are the params for an open_position request.
type OpenPositionParams struct {
	Symbol       string  `json:"symbol"`
	Volume       float64 `json:"volume"`
	OrderType    string  `json:"order_type"`
	TP           float64 `json:"tp,omitempty"`
	SL           float64 `json:"sl,omitempty"`
	ProfitAmount float64 `json:"profit_amount,omitempty"`
	Comment      string  `json:"comment,omitempty"`
}

// CloseTicketParams are the params for a close_position_by_ticket request.
type CloseTicketParams struct {
	Ticket int64 `json:"ticket"`
}

// CloseSymbolParams are the params for a close_positions_by_symbol request.
type CloseSymbolParams struct {
	Symbol string `json:"symbol"`
}

// PositionsParams are the params for a get_positions request. An empty
// symbol requests all open positions.
type PositionsParams struct {
	Symbol string `json:"symbol,omitempty"`
}

// AddMappingParams are the params for an add_symbol_mapping request.
type AddMappingParams struct {
	ExternalSymbol string  `json:"external_symbol"`
	MT5Symbol      string  `json:"mt5_symbol"`
	VolumeRatio    float64 `json:"volume_ratio,omitempty"`
}

// RemoveMappingParams are the params for a remove_symbol_mapping request.
type RemoveMappingParams struct {
	ExternalSymbol string `json:"external_symbol"`
}

// --- Responses (Relay -> Client) ---

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the reply envelope the relay writes for each request. The id
// echoes the request id when the request carried one. The client never waits
// on these; they exist for the relay side and for operators reading the wire.
type Response struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK reports whether the response carries a success status.
func (r *Response) OK() bool {
	return r.Status == StatusSuccess
}

// Welcome is the banner the relay sends once per connection, before any
// request is handled.
type Welcome struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	MT5Connected bool   `json:"mt5_connected"`
}
