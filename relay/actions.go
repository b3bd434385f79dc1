package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	atasmt5 "github.com/WolfMoss/atas-mt5"
	"github.com/WolfMoss/atas-mt5/symbolmap"
)

const (
	// openTimeout bounds a single market order; MT5 fills can stall when the
	// terminal is busy.
	openTimeout = 90 * time.Second

	// defaultDeviation is the slippage allowance in points for market fills.
	defaultDeviation = 100

	defaultComment = "WebSocket API"
)

// inbound is the request envelope as read off the wire. Params stay raw so
// each handler can decode its own parameter shape.
type inbound struct {
	ID     string          `json:"id"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// openPositionData is the success payload of an open_position response.
// ProfitAmountTarget is a pointer so the key serializes as null when no
// target was requested.
type openPositionData struct {
	Ticket             int64    `json:"ticket"`
	Volume             float64  `json:"volume"`
	Price              float64  `json:"price"`
	Symbol             string   `json:"symbol"`
	Type               string   `json:"type"`
	ProfitAmountTarget *float64 `json:"profit_amount_target"`
}

func successResponse(message string) atasmt5.Response {
	return atasmt5.Response{Status: atasmt5.StatusSuccess, Message: message}
}

func errorResponse(message string) atasmt5.Response {
	return atasmt5.Response{Status: atasmt5.StatusError, Message: message}
}

func dataResponse(data any) atasmt5.Response {
	return atasmt5.Response{Status: atasmt5.StatusSuccess, Data: data}
}

func (s *Server) handleMessage(ctx context.Context, sess *session, raw []byte) {
	var req inbound
	if err := json.Unmarshal(raw, &req); err != nil {
		// No id is echoed here: an unparseable frame has none to echo.
		s.send(sess, errorResponse("invalid JSON format"))
		return
	}
	if len(req.Params) == 0 {
		req.Params = json.RawMessage(`{}`)
	}

	resp := s.dispatch(ctx, req)
	resp.ID = req.ID
	s.send(sess, resp)
}

func (s *Server) send(sess *session, resp atasmt5.Response) {
	if err := sess.writeJSON(resp); err != nil {
		s.logger.Error("failed to send response", zap.Error(err))
	}
}

func (s *Server) dispatch(ctx context.Context, req inbound) atasmt5.Response {
	switch req.Action {
	case atasmt5.ActionHealthCheck:
		return s.handleHealthCheck()
	case atasmt5.ActionGetAccountInfo:
		return s.handleAccountInfo(ctx)
	case atasmt5.ActionOpenPosition:
		return s.handleOpenPosition(ctx, req.Params)
	case atasmt5.ActionClosePositionByTicket:
		return s.handleCloseByTicket(ctx, req.Params)
	case atasmt5.ActionClosePositionsBySymbol:
		return s.handleCloseBySymbol(ctx, req.Params)
	case atasmt5.ActionCloseAllPositions:
		return s.handleCloseAll(ctx)
	case atasmt5.ActionGetPositions:
		return s.handleGetPositions(ctx, req.Params)
	case atasmt5.ActionGetSymbolMappings:
		return s.handleGetSymbolMappings()
	case atasmt5.ActionAddSymbolMapping:
		return s.handleAddSymbolMapping(req.Params)
	case atasmt5.ActionRemoveSymbolMapping:
		return s.handleRemoveSymbolMapping(req.Params)
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

func (s *Server) handleHealthCheck() atasmt5.Response {
	if s.trader.Connected() {
		return successResponse("service is running")
	}
	return errorResponse("MT5 connection error")
}

func (s *Server) handleAccountInfo(ctx context.Context) atasmt5.Response {
	if !s.trader.Connected() {
		return errorResponse("MT5 not connected")
	}

	info, err := s.trader.AccountInfo(ctx)
	if err != nil {
		s.logger.Error("failed to get account info", zap.Error(err))
		return errorResponse(fmt.Sprintf("failed to get account info: %v", err))
	}

	return dataResponse(info)
}

func (s *Server) handleOpenPosition(ctx context.Context, params json.RawMessage) atasmt5.Response {
	if !s.trader.Connected() {
		return errorResponse("MT5 not connected")
	}

	var p atasmt5.OpenPositionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errorResponse(fmt.Sprintf("invalid parameters: %v", err))
	}

	if p.Symbol == "" {
		return errorResponse("missing required parameter: symbol")
	}
	if p.Volume == 0 || p.OrderType == "" {
		return errorResponse("missing required parameter: volume or order_type")
	}

	symbol := s.mapper.Resolve(p.Symbol)
	volume := s.mapper.MapVolume(p.Symbol, p.Volume)
	orderType := strings.ToUpper(p.OrderType)

	comment := p.Comment
	if comment == "" {
		comment = defaultComment
	}

	s.logger.Info("opening position",
		zap.String("symbol", symbol),
		zap.String("original_symbol", p.Symbol),
		zap.String("type", orderType),
		zap.Float64("original_volume", p.Volume),
		zap.Float64("volume", volume),
		zap.Float64("profit_amount", p.ProfitAmount),
	)

	ctx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()

	// Inbound sl/tp are not passed through; stops come from profit_amount
	// when a target is set.
	result, err := s.trader.OpenPosition(ctx, OpenOrder{
		Symbol:       symbol,
		OrderType:    orderType,
		Volume:       volume,
		ProfitAmount: p.ProfitAmount,
		Deviation:    defaultDeviation,
		Comment:      comment,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("open position timed out", zap.String("symbol", symbol))
			return errorResponse("open position timed out, check the MT5 terminal")
		}
		s.logger.Error("failed to open position", zap.String("symbol", symbol), zap.Error(err))
		return errorResponse(fmt.Sprintf("failed to open position: %v", err))
	}

	s.logger.Info("position opened",
		zap.String("symbol", symbol),
		zap.Int64("ticket", result.Ticket),
		zap.Float64("price", result.Price),
	)

	data := openPositionData{
		Ticket: result.Ticket,
		Volume: volume,
		Price:  result.Price,
		Symbol: symbol,
		Type:   orderType,
	}
	if p.ProfitAmount > 0 {
		data.ProfitAmountTarget = &p.ProfitAmount
	}

	return atasmt5.Response{
		Status:  atasmt5.StatusSuccess,
		Message: "position opened",
		Data:    data,
	}
}

func (s *Server) handleCloseByTicket(ctx context.Context, params json.RawMessage) atasmt5.Response {
	if !s.trader.Connected() {
		return errorResponse("MT5 not connected")
	}

	var p atasmt5.CloseTicketParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errorResponse(fmt.Sprintf("invalid parameters: %v", err))
	}
	if p.Ticket == 0 {
		return errorResponse("missing required parameter: ticket")
	}

	if err := s.trader.CloseByTicket(ctx, p.Ticket); err != nil {
		s.logger.Error("failed to close position", zap.Int64("ticket", p.Ticket), zap.Error(err))
		return errorResponse(fmt.Sprintf("failed to close position: %v", err))
	}

	s.logger.Info("position closed", zap.Int64("ticket", p.Ticket))
	return successResponse("position closed")
}

func (s *Server) handleCloseBySymbol(ctx context.Context, params json.RawMessage) atasmt5.Response {
	if !s.trader.Connected() {
		return errorResponse("MT5 not connected")
	}

	var p atasmt5.CloseSymbolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errorResponse(fmt.Sprintf("invalid parameters: %v", err))
	}
	if p.Symbol == "" {
		return errorResponse("missing required parameter: symbol")
	}

	symbol := s.mapper.Resolve(p.Symbol)
	s.logger.Info("closing positions by symbol",
		zap.String("symbol", symbol),
		zap.String("original_symbol", p.Symbol),
	)

	closed, err := s.trader.CloseBySymbol(ctx, symbol)
	if err != nil {
		s.logger.Error("failed to close positions", zap.String("symbol", symbol), zap.Error(err))
		return errorResponse(fmt.Sprintf("failed to close positions: %v", err))
	}

	s.logger.Info("positions closed", zap.String("symbol", symbol), zap.Int("count", closed))
	return successResponse("positions closed")
}

func (s *Server) handleCloseAll(ctx context.Context) atasmt5.Response {
	if !s.trader.Connected() {
		return errorResponse("MT5 not connected")
	}

	closed, err := s.trader.CloseAll(ctx)
	if err != nil {
		s.logger.Error("failed to close all positions", zap.Error(err))
		return errorResponse(fmt.Sprintf("failed to close all positions: %v", err))
	}

	s.logger.Info("all positions closed", zap.Int("count", closed))
	return successResponse("all positions closed")
}

func (s *Server) handleGetPositions(ctx context.Context, params json.RawMessage) atasmt5.Response {
	if !s.trader.Connected() {
		return errorResponse("MT5 not connected")
	}

	var p atasmt5.PositionsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errorResponse(fmt.Sprintf("invalid parameters: %v", err))
	}

	symbol := ""
	if p.Symbol != "" {
		symbol = s.mapper.Resolve(p.Symbol)
	}

	positions, err := s.trader.Positions(ctx, symbol)
	if err != nil {
		s.logger.Error("failed to get positions", zap.Error(err))
		return errorResponse(fmt.Sprintf("failed to get positions: %v", err))
	}

	// Decorate with the platform-side symbol so clients can correlate
	// positions with their own feed.
	for i := range positions {
		positions[i].OriginalSymbol = s.mapper.ReverseResolve(positions[i].Symbol)
	}

	if positions == nil {
		positions = []Position{}
	}

	return dataResponse(positions)
}

func (s *Server) handleGetSymbolMappings() atasmt5.Response {
	return dataResponse(s.mapper.All())
}

func (s *Server) handleAddSymbolMapping(params json.RawMessage) atasmt5.Response {
	var p atasmt5.AddMappingParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errorResponse(fmt.Sprintf("invalid parameters: %v", err))
	}

	if p.ExternalSymbol == "" || p.MT5Symbol == "" {
		return errorResponse("missing required parameter: external_symbol or mt5_symbol")
	}

	ratio := p.VolumeRatio
	if ratio == 0 {
		ratio = 1.0
	}

	if err := s.mapper.Add(p.ExternalSymbol, p.MT5Symbol, ratio); err != nil {
		s.logger.Error("failed to add symbol mapping", zap.Error(err))
		return errorResponse(fmt.Sprintf("failed to add symbol mapping: %v", err))
	}

	return successResponse(fmt.Sprintf("symbol mapping added: %s -> %s, volume ratio: %g",
		p.ExternalSymbol, p.MT5Symbol, ratio))
}

func (s *Server) handleRemoveSymbolMapping(params json.RawMessage) atasmt5.Response {
	var p atasmt5.RemoveMappingParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errorResponse(fmt.Sprintf("invalid parameters: %v", err))
	}

	if p.ExternalSymbol == "" {
		return errorResponse("missing required parameter: external_symbol")
	}

	if err := s.mapper.Remove(p.ExternalSymbol); err != nil {
		if errors.Is(err, symbolmap.ErrNotFound) {
			return errorResponse(fmt.Sprintf("failed to remove symbol mapping, symbol may not exist: %s", p.ExternalSymbol))
		}
		s.logger.Error("failed to remove symbol mapping", zap.Error(err))
		return errorResponse(fmt.Sprintf("failed to remove symbol mapping: %v", err))
	}

	return successResponse(fmt.Sprintf("symbol mapping removed: %s", p.ExternalSymbol))
}
