// Package paper is an in-memory trading engine that stands in for a live
// MT5 terminal. Orders fill instantly against configured quotes, so the
// relay can run end to end on machines with no terminal attached.
package paper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	atasmt5 "github.com/WolfMoss/atas-mt5"
	"github.com/WolfMoss/atas-mt5/relay"
)

const firstTicket = 10000001

var (
	ErrNotConnected     = errors.New("paper: not connected")
	ErrUnknownSymbol    = errors.New("paper: unknown symbol")
	ErrInvalidOrderType = errors.New("paper: invalid order type")
	ErrInvalidVolume    = errors.New("paper: invalid volume")
	ErrPositionNotFound = errors.New("paper: position not found")
)

// Quote is a static market snapshot for one symbol. Digits controls the
// rounding of derived prices; 0 leaves them unrounded.
type Quote struct {
	Bid       float64
	Ask       float64
	TickSize  float64
	TickValue float64
	Digits    int
}

// Settings configures the simulated account.
type Settings struct {
	Balance  float64
	Currency string
	Leverage int
	Login    int64
	Server   string
	Name     string
	Quotes   map[string]Quote
}

type position struct {
	ticket    int64
	openedAt  time.Time
	side      string
	volume    float64
	symbol    string
	priceOpen float64
	sl        float64
	tp        float64
	comment   string
}

// Engine simulates an MT5 account. It implements relay.Trader.
type Engine struct {
	logger *zap.Logger

	login    int64
	server   string
	currency string
	leverage int
	name     string

	mu         sync.Mutex
	connected  bool
	balance    float64
	nextTicket int64
	quotes     map[string]Quote
	positions  map[int64]*position
}

// New creates an engine that starts connected. Zero-value settings fall back
// to a 100k USD demo account.
func New(settings Settings, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	if settings.Balance == 0 {
		settings.Balance = 100000
	}
	if settings.Currency == "" {
		settings.Currency = "USD"
	}
	if settings.Leverage == 0 {
		settings.Leverage = 100
	}
	if settings.Login == 0 {
		settings.Login = 10000000
	}
	if settings.Server == "" {
		settings.Server = "Paper-Demo"
	}
	if settings.Name == "" {
		settings.Name = "Paper Trading"
	}

	quotes := make(map[string]Quote, len(settings.Quotes))
	for symbol, quote := range settings.Quotes {
		quotes[symbol] = quote
	}

	return &Engine{
		logger:     logger,
		login:      settings.Login,
		server:     settings.Server,
		currency:   settings.Currency,
		leverage:   settings.Leverage,
		name:       settings.Name,
		connected:  true,
		balance:    settings.Balance,
		nextTicket: firstTicket,
		quotes:     quotes,
		positions:  make(map[int64]*position),
	}
}

// SetQuote installs or replaces the market snapshot for a symbol.
func (e *Engine) SetQuote(symbol string, quote Quote) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quotes[symbol] = quote
}

// SetConnected flips the simulated terminal link, e.g. to exercise the
// relay's reconnect path.
func (e *Engine) SetConnected(connected bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = connected
}

func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *Engine) Reconnect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.connected = true
	e.logger.Info("paper engine connected",
		zap.Int64("login", e.login),
		zap.String("server", e.server),
	)
	return nil
}

func (e *Engine) AccountInfo(ctx context.Context) (*relay.AccountInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return nil, ErrNotConnected
	}

	equity := e.balance
	for _, pos := range e.positions {
		if quote, ok := e.quotes[pos.symbol]; ok {
			equity += floating(pos, quote)
		}
	}
	equity = round2(equity)

	return &relay.AccountInfo{
		Login:        e.login,
		Server:       e.server,
		Currency:     e.currency,
		Leverage:     e.leverage,
		Balance:      round2(e.balance),
		Equity:       equity,
		MarginFree:   equity,
		MarginSOCall: 50,
		MarginSOSO:   30,
		Name:         e.name,
		TradeMode:    0,
		LimitOrders:  200,
	}, nil
}

func (e *Engine) Positions(ctx context.Context, symbol string) ([]relay.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return nil, ErrNotConnected
	}

	var out []relay.Position
	for _, pos := range e.positions {
		if symbol != "" && pos.symbol != symbol {
			continue
		}
		out = append(out, e.toWire(pos))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out, nil
}

func (e *Engine) OpenPosition(ctx context.Context, order relay.OpenOrder) (*relay.OpenResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return nil, ErrNotConnected
	}

	quote, ok := e.quotes[order.Symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, order.Symbol)
	}

	volume := order.Volume
	if volume < 0 {
		volume = -volume
	}
	if volume == 0 {
		return nil, ErrInvalidVolume
	}

	var price float64
	switch order.OrderType {
	case atasmt5.OrderTypeBuy:
		price = quote.Ask
	case atasmt5.OrderTypeSell:
		price = quote.Bid
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrderType, order.OrderType)
	}

	var tp float64
	if order.ProfitAmount > 0 {
		tp = takeProfitPrice(quote, order.OrderType, volume, price, order.ProfitAmount)
		if tp > 0 {
			e.logger.Info("take profit derived from target amount",
				zap.String("symbol", order.Symbol),
				zap.Float64("profit_amount", order.ProfitAmount),
				zap.Float64("tp", tp),
			)
		} else {
			e.logger.Warn("cannot derive take profit, leaving unset",
				zap.String("symbol", order.Symbol),
			)
		}
	}

	pos := &position{
		ticket:    e.nextTicket,
		openedAt:  time.Now(),
		side:      order.OrderType,
		volume:    volume,
		symbol:    order.Symbol,
		priceOpen: price,
		tp:        tp,
		comment:   order.Comment,
	}
	e.nextTicket++
	e.positions[pos.ticket] = pos

	e.logger.Info("position opened",
		zap.Int64("ticket", pos.ticket),
		zap.String("symbol", pos.symbol),
		zap.String("type", pos.side),
		zap.Float64("volume", pos.volume),
		zap.Float64("price", pos.priceOpen),
	)

	return &relay.OpenResult{Ticket: pos.ticket, Price: price}, nil
}

func (e *Engine) CloseByTicket(ctx context.Context, ticket int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return ErrNotConnected
	}
	return e.closeLocked(ticket)
}

func (e *Engine) CloseBySymbol(ctx context.Context, symbol string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return 0, ErrNotConnected
	}

	closed := 0
	for _, ticket := range e.ticketsLocked(symbol) {
		if err := e.closeLocked(ticket); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

func (e *Engine) CloseAll(ctx context.Context) (int, error) {
	return e.CloseBySymbol(ctx, "")
}

// ticketsLocked returns the tickets on a symbol in open order; an empty
// symbol selects everything.
func (e *Engine) ticketsLocked(symbol string) []int64 {
	var tickets []int64
	for ticket, pos := range e.positions {
		if symbol != "" && pos.symbol != symbol {
			continue
		}
		tickets = append(tickets, ticket)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i] < tickets[j] })
	return tickets
}

func (e *Engine) closeLocked(ticket int64) error {
	pos, ok := e.positions[ticket]
	if !ok {
		return fmt.Errorf("%w: ticket %d", ErrPositionNotFound, ticket)
	}

	quote, ok := e.quotes[pos.symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, pos.symbol)
	}

	profit := round2(floating(pos, quote))
	e.balance = round2(e.balance + profit)
	delete(e.positions, ticket)

	e.logger.Info("position closed",
		zap.Int64("ticket", ticket),
		zap.String("symbol", pos.symbol),
		zap.Float64("profit", profit),
		zap.Float64("balance", e.balance),
	)

	return nil
}

func (e *Engine) toWire(pos *position) relay.Position {
	wire := relay.Position{
		Ticket:    pos.ticket,
		Time:      pos.openedAt.Format(relay.TimeLayout),
		Type:      pos.side,
		Volume:    pos.volume,
		Symbol:    pos.symbol,
		PriceOpen: pos.priceOpen,
		SL:        pos.sl,
		TP:        pos.tp,
		Comment:   pos.comment,
	}

	if quote, ok := e.quotes[pos.symbol]; ok {
		wire.Profit = round2(floating(pos, quote))
		if pos.side == atasmt5.OrderTypeBuy {
			wire.PriceCurrent = quote.Bid
		} else {
			wire.PriceCurrent = quote.Ask
		}
	}

	return wire
}

// floating values a position at the price it would close at: bid for longs,
// ask for shorts.
func floating(pos *position, quote Quote) float64 {
	if quote.TickSize == 0 {
		return 0
	}

	var move float64
	if pos.side == atasmt5.OrderTypeBuy {
		move = quote.Bid - pos.priceOpen
	} else {
		move = pos.priceOpen - quote.Ask
	}

	return move / quote.TickSize * quote.TickValue * pos.volume
}

// takeProfitPrice derives the price at which closing the volume realizes the
// target amount. Returns 0 when the symbol has no usable tick data.
func takeProfitPrice(quote Quote, orderType string, volume, entry, profitAmount float64) float64 {
	if quote.TickValue == 0 || quote.TickSize == 0 || volume == 0 {
		return 0
	}

	valuePerTick := quote.TickValue * volume
	ticksNeeded := profitAmount / valuePerTick

	var tp float64
	if orderType == atasmt5.OrderTypeBuy {
		tp = entry + ticksNeeded*quote.TickSize
	} else {
		tp = entry - ticksNeeded*quote.TickSize
	}

	if quote.Digits > 0 {
		tp = roundTo(tp, quote.Digits)
	}
	return tp
}

func roundTo(v float64, digits int) float64 {
	pow := math.Pow(10, float64(digits))
	return math.Round(v*pow) / pow
}

func round2(v float64) float64 {
	return roundTo(v, 2)
}
