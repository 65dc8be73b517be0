package bots

import (
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"marketsim/internal/domain"
)

// MomentumStrategy buys when a symbol's price has trended up by more than
// a threshold over its lookback window and sells when it has trended down
// by the same margin, flattening and reversing rather than scaling in.
// Grounded on original_source/src/python/simulator/strategies/momentum.py.
type MomentumStrategy struct {
	participantId domain.ParticipantId
	symbols       []domain.Symbol
	lookback      int
	threshold     decimal.Decimal // e.g. 0.02 for a 2% move
	positionSize  domain.Quantity

	log  *slog.Logger
	hist *history

	sub Submitter

	mu         sync.Mutex
	lastSignal map[domain.Symbol]string
}

func NewMomentumStrategy(participantId domain.ParticipantId, symbols []domain.Symbol, lookback int, threshold decimal.Decimal, positionSize domain.Quantity, log *slog.Logger) *MomentumStrategy {
	return &MomentumStrategy{
		participantId: participantId,
		symbols:       symbols,
		lookback:      lookback,
		threshold:     threshold,
		positionSize:  positionSize,
		log:           defaultLogger(log),
		hist:          newHistory(maxHistoryPerSymbol),
		lastSignal:    make(map[domain.Symbol]string),
	}
}

func (m *MomentumStrategy) ParticipantId() domain.ParticipantId { return m.participantId }

func (m *MomentumStrategy) Init(sub Submitter) {
	m.sub = sub
}

// OnMarketData implements the momentum signal of
// original_source/momentum.py's on_market_data: momentum =
// (current-old)/old over the lookback window; BUY above +threshold, SELL
// below -threshold, and only act on a signal change.
func (m *MomentumStrategy) OnMarketData(md domain.MarketData) {
	m.hist.record(md)

	window := m.hist.recent(md.Symbol, m.lookback)
	if len(window) < m.lookback {
		return
	}

	oldPrice := window[0].Price
	if oldPrice.IsZero() {
		return
	}
	momentum := md.Price.Sub(oldPrice).Div(oldPrice)

	var signal string
	switch {
	case momentum.GreaterThan(m.threshold):
		signal = "BUY"
	case momentum.LessThan(m.threshold.Neg()):
		signal = "SELL"
	default:
		return
	}

	m.mu.Lock()
	changed := m.lastSignal[md.Symbol] != signal
	if changed {
		m.lastSignal[md.Symbol] = signal
	}
	m.mu.Unlock()

	if !changed {
		return
	}

	m.executeSignal(md.Symbol, signal)
}

func (m *MomentumStrategy) executeSignal(symbol domain.Symbol, signal string) {
	position := m.sub.Position(m.participantId, symbol)

	switch signal {
	case "BUY":
		if position > 0 {
			return
		}
		qty := m.positionSize
		if position < 0 {
			qty += -position // cover the short first
		}
		m.submit(symbol, domain.Buy, qty)
	case "SELL":
		if position < 0 {
			return
		}
		qty := m.positionSize
		if position > 0 {
			qty += position // flatten the long first
		}
		m.submit(symbol, domain.Sell, qty)
	}
}

func (m *MomentumStrategy) submit(symbol domain.Symbol, side domain.Side, qty domain.Quantity) {
	order := domain.Order{
		ID:            domain.NewOrderID(),
		ParticipantId: m.participantId,
		Symbol:        symbol,
		Side:          side,
		Type:          domain.Market,
		Quantity:      qty,
	}
	if !m.sub.SubmitOrder(order) {
		m.log.Debug("momentum order not admitted", "participant", m.participantId, "symbol", symbol, "side", side)
	}
}

func (m *MomentumStrategy) OnTrade(trade domain.Trade) {
	// Momentum strategy trades at market and does not need to react to its
	// own fills; logging is handled at the exchange layer.
}

func (m *MomentumStrategy) OnOrderRejection(order domain.Order, reason string) {
	m.log.Debug("momentum order rejected", "participant", m.participantId, "symbol", order.Symbol, "reason", reason)
}
