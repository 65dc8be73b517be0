package bots

import (
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"marketsim/internal/domain"
)

// quote tracks the pair of resting orders a market maker has live for one
// symbol, so they can be cancelled and replaced together.
type quote struct {
	bidId   domain.OrderId
	askId   domain.OrderId
	haveBid bool
	haveAsk bool
}

// MarketMakerStrategy continuously quotes a bid and ask around the last
// market price for each of its symbols, skewing its quotes away from the
// side of any inventory it is carrying. Grounded on original_source/
// src/python/simulator/strategies/market_maker.py.
type MarketMakerStrategy struct {
	participantId domain.ParticipantId
	symbols       []domain.Symbol

	spreadBps     decimal.Decimal // e.g. 30 for 0.30%
	quoteSize     domain.Quantity
	maxPosition   domain.Quantity
	inventorySkew decimal.Decimal // 0..1

	log *slog.Logger
	sub Submitter

	mu        sync.Mutex
	quotes    map[domain.Symbol]*quote
	lastPrice map[domain.Symbol]decimal.Decimal
}

func NewMarketMakerStrategy(participantId domain.ParticipantId, symbols []domain.Symbol, spreadBps int, quoteSize, maxPosition domain.Quantity, inventorySkew decimal.Decimal, log *slog.Logger) *MarketMakerStrategy {
	quotes := make(map[domain.Symbol]*quote, len(symbols))
	lastPrice := make(map[domain.Symbol]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		quotes[s] = &quote{}
		lastPrice[s] = decimal.Zero
	}

	return &MarketMakerStrategy{
		participantId: participantId,
		symbols:       symbols,
		spreadBps:     decimal.NewFromInt(int64(spreadBps)),
		quoteSize:     quoteSize,
		maxPosition:   maxPosition,
		inventorySkew: inventorySkew,
		log:           defaultLogger(log),
		quotes:        quotes,
		lastPrice:     lastPrice,
	}
}

func (m *MarketMakerStrategy) ParticipantId() domain.ParticipantId { return m.participantId }

func (m *MarketMakerStrategy) Init(sub Submitter) {
	m.sub = sub
}

// OnMarketData refreshes quotes when the price has moved more than 0.1%
// since the previous tick for the symbol, or when either side has no live
// quote, mirroring
// original_source/market_maker.py's _should_update_quotes.
func (m *MarketMakerStrategy) OnMarketData(md domain.MarketData) {
	m.mu.Lock()
	last := m.lastPrice[md.Symbol]
	q := m.quotes[md.Symbol]
	m.lastPrice[md.Symbol] = md.Price
	m.mu.Unlock()

	if q == nil {
		return
	}

	needsUpdate := !q.haveBid || !q.haveAsk
	if !needsUpdate && !last.IsZero() {
		move := md.Price.Sub(last).Abs().Div(last)
		needsUpdate = move.GreaterThan(decimal.NewFromFloat(0.001))
	}
	if !needsUpdate {
		return
	}

	position := m.sub.Position(m.participantId, md.Symbol)
	m.refreshQuotes(md.Symbol, md.Price, position)
}

// refreshQuotes cancels any live quotes for symbol and submits a fresh
// bid/ask pair skewed by current inventory.
func (m *MarketMakerStrategy) refreshQuotes(symbol domain.Symbol, price decimal.Decimal, position domain.Quantity) {
	m.cancelQuotes(symbol)

	halfSpread := price.Mul(m.spreadBps).Div(decimal.NewFromInt(10000)).Div(decimal.NewFromInt(2))

	inventoryRatio := decimal.NewFromInt(position).Div(decimal.NewFromInt(m.maxPosition))
	skew := inventoryRatio.Mul(m.inventorySkew).Mul(halfSpread)

	bidPrice := price.Sub(halfSpread).Sub(skew)
	askPrice := price.Add(halfSpread).Sub(skew)

	floor := decimal.NewFromFloat(0.01)
	if bidPrice.LessThan(floor) {
		bidPrice = floor
	}
	if askPrice.LessThan(bidPrice.Add(floor)) {
		askPrice = bidPrice.Add(floor)
	}

	canBuy := position+m.quoteSize <= m.maxPosition
	canSell := position-m.quoteSize >= -m.maxPosition

	m.mu.Lock()
	q := m.quotes[symbol]
	m.mu.Unlock()
	if q == nil {
		return
	}

	if canBuy && position < m.maxPosition {
		id := domain.NewOrderID()
		order := domain.Order{ID: id, ParticipantId: m.participantId, Symbol: symbol, Side: domain.Buy, Type: domain.Limit, Quantity: m.quoteSize, Price: bidPrice}
		if m.sub.SubmitOrder(order) {
			q.bidId, q.haveBid = id, true
		}
	}
	if canSell && position > -m.maxPosition {
		id := domain.NewOrderID()
		order := domain.Order{ID: id, ParticipantId: m.participantId, Symbol: symbol, Side: domain.Sell, Type: domain.Limit, Quantity: m.quoteSize, Price: askPrice}
		if m.sub.SubmitOrder(order) {
			q.askId, q.haveAsk = id, true
		}
	}
}

func (m *MarketMakerStrategy) cancelQuotes(symbol domain.Symbol) {
	m.mu.Lock()
	q := m.quotes[symbol]
	m.mu.Unlock()
	if q == nil {
		return
	}

	if q.haveBid {
		m.sub.CancelOrder(symbol, q.bidId)
		q.haveBid = false
	}
	if q.haveAsk {
		m.sub.CancelOrder(symbol, q.askId)
		q.haveAsk = false
	}
}

// OnTrade clears the filled side of the quote and re-quotes around the
// last known price, mirroring original_source/market_maker.py's on_trade.
func (m *MarketMakerStrategy) OnTrade(trade domain.Trade) {
	m.mu.Lock()
	q := m.quotes[trade.Symbol]
	last := m.lastPrice[trade.Symbol]
	m.mu.Unlock()
	if q == nil {
		return
	}

	if q.haveBid && trade.BuyOrderId == q.bidId {
		q.haveBid = false
	}
	if q.haveAsk && trade.SellOrderId == q.askId {
		q.haveAsk = false
	}

	price := last
	if price.IsZero() {
		price = trade.Price
	}
	position := m.sub.Position(m.participantId, trade.Symbol)
	m.refreshQuotes(trade.Symbol, price, position)
}

func (m *MarketMakerStrategy) OnOrderRejection(order domain.Order, reason string) {
	m.mu.Lock()
	q := m.quotes[order.Symbol]
	m.mu.Unlock()
	if q == nil {
		return
	}

	if q.haveBid && order.ID == q.bidId {
		q.haveBid = false
	} else if q.haveAsk && order.ID == q.askId {
		q.haveAsk = false
	}
	m.log.Debug("market maker quote rejected", "participant", m.participantId, "symbol", order.Symbol, "reason", reason)
}
