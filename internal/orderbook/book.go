// Package orderbook implements the per-symbol limit Order Book: admission,
// price-time-priority matching, cancellation, and depth snapshots.
// Grounded line-for-line on original_source/src/cpp/core/order_book.cpp's
// algorithm (std::map<Price, std::queue<Order>> on each side, a shared
// active-order index for O(1)-ish cancel lookup, and an "unsafe" inner
// layer that assumes the writer lock is already held), translated to Go's
// sync.RWMutex idiom the way chycee-cryptoGo/internal/service/
// price_service.go guards its map: readers take RLock, writers take Lock,
// and every Trade/Rejection callback is dispatched only after the lock is
// released.
package orderbook

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"marketsim/internal/domain"
)

// TradeCallback is invoked once per executed trade, outside any book lock.
type TradeCallback func(domain.Trade)

// RejectionCallback is invoked once per rejected admission, outside any
// book lock.
type RejectionCallback func(domain.Order, string)

// LedgerPoster is the narrow slice of portfolio.Ledger the book needs:
// admission checks and trade posting. Declaring it as an interface here
// (instead of importing the concrete *portfolio.Ledger type) keeps the
// book's only hard dependency on the ledger at arm's length: the book does
// not own the ledger and treats it as a borrowed collaborator.
type LedgerPoster interface {
	CanBuy(id domain.ParticipantId, symbol domain.Symbol, qty domain.Quantity, price decimal.Decimal) bool
	CanSell(id domain.ParticipantId, symbol domain.Symbol, qty domain.Quantity) bool
	ExecuteTrade(id domain.ParticipantId, trade domain.Trade, side domain.Side) error
}

// orderLocation records where an active order rests, for O(1)-ish cancel
// lookup.
type orderLocation struct {
	price decimal.Decimal
	side  domain.Side
}

// OrderBook maintains the resting book for one symbol.
type OrderBook struct {
	symbol domain.Symbol
	log    *slog.Logger

	mu   sync.RWMutex
	bids *levels // descending: best bid first
	asks *levels // ascending: best ask first

	activeLocation map[domain.OrderId]orderLocation
	activeElement  map[domain.OrderId]*list.Element

	ledger LedgerPoster // nil in unit-test mode

	marketPriceMu   sync.Mutex
	lastMarketPrice decimal.Decimal

	callbackMu sync.Mutex
	onTrade    TradeCallback
	onReject   RejectionCallback

	now func() domain.Timestamp // overridable in tests for deterministic trade timestamps
}

// New creates an empty order book for symbol. ledger may be nil, in which
// case admission checks are skipped (unit-test mode).
func New(symbol domain.Symbol, ledger LedgerPoster, log *slog.Logger) *OrderBook {
	if log == nil {
		log = slog.Default()
	}
	return &OrderBook{
		symbol:         symbol,
		log:            log,
		bids:           newLevels(false),
		asks:           newLevels(true),
		activeLocation: make(map[domain.OrderId]orderLocation),
		activeElement:  make(map[domain.OrderId]*list.Element),
		ledger:         ledger,
		now:            func() domain.Timestamp { return domain.Timestamp(time.Now().UnixMilli()) },
	}
}

// SetTradeCallback installs the trade consumer. Replacing it while running
// is allowed; the callback reference itself is guarded by callbackMu, which
// is never held while a callback is actually running.
func (b *OrderBook) SetTradeCallback(cb TradeCallback) {
	b.callbackMu.Lock()
	defer b.callbackMu.Unlock()
	b.onTrade = cb
}

// SetRejectionCallback installs the rejection consumer.
func (b *OrderBook) SetRejectionCallback(cb RejectionCallback) {
	b.callbackMu.Lock()
	defer b.callbackMu.Unlock()
	b.onReject = cb
}

// UpdateMarketPrice sets the reference price used to estimate a market
// order's admission cost when the opposite side is empty.
func (b *OrderBook) UpdateMarketPrice(price decimal.Decimal) {
	b.marketPriceMu.Lock()
	defer b.marketPriceMu.Unlock()
	b.lastMarketPrice = price
}

// event is a locally buffered callback invocation, collected while the
// writer lock is held and dispatched strictly in occurrence order after
// the lock is released (callback discipline, option (a)).
type event struct {
	trade    *domain.Trade
	reject   *domain.Order
	rejectWh string
}

// AddOrder admits an order to the book. It validates funds/inventory
// against the ledger (if attached), then either runs market-order matching
// or inserts a limit order and attempts to cross it. Returns true iff the
// order was admitted (a market order that only partially fills is still
// admitted).
func (b *OrderBook) AddOrder(order domain.Order) bool {
	order.Remaining = order.Quantity

	if reason, ok := b.validate(order); !ok {
		b.dispatch([]event{{reject: &order, rejectWh: reason}})
		return false
	}

	b.mu.Lock()
	var evs []event
	var admitted bool
	if order.Type == domain.Market {
		evs, admitted = b.executeMarketOrderLocked(order)
	} else {
		evs = b.addLimitOrderLocked(order)
		admitted = true
	}
	b.mu.Unlock()

	b.dispatch(evs)
	return admitted
}

// validate runs the admission checks. It takes only the
// reader lock (via estimateExecutionPrice) and the ledger's own lock, never
// the writer lock, so concurrent admissions never block each other here.
func (b *OrderBook) validate(order domain.Order) (string, bool) {
	if b.ledger == nil {
		return "", true
	}

	if order.Side == domain.Buy {
		return b.validateBuy(order)
	}
	return b.validateSell(order)
}

func (b *OrderBook) validateBuy(order domain.Order) (string, bool) {
	executionPrice := b.estimateExecutionPrice(order)

	if executionPrice.IsZero() {
		if order.Type == domain.Market {
			return domain.ReasonNoLiquidity, false
		}
		// LIMIT with no reference price at all: admission uses the
		// order's own price
		executionPrice = order.Price
	}

	priceToCheck := executionPrice
	if order.Type == domain.Limit {
		priceToCheck = order.Price
	}

	if !b.ledger.CanBuy(order.ParticipantId, order.Symbol, order.Quantity, priceToCheck) {
		return domain.ReasonInsufficientFunds, false
	}
	return "", true
}

func (b *OrderBook) validateSell(order domain.Order) (string, bool) {
	if !b.ledger.CanSell(order.ParticipantId, order.Symbol, order.Quantity) {
		return domain.ReasonInsufficientFunds, false
	}
	return "", true
}

// estimateExecutionPrice mirrors
// original_source/src/cpp/core/order_book.cpp's
// estimate_execution_price_unsafe: best opposite-side price if available,
// else the engine's last known market price.
func (b *OrderBook) estimateExecutionPrice(order domain.Order) decimal.Decimal {
	b.mu.RLock()
	var opposite *levels
	if order.Side == domain.Buy {
		opposite = b.asks
	} else {
		opposite = b.bids
	}
	best := opposite.best()
	b.mu.RUnlock()

	if best != nil {
		return best.price
	}

	b.marketPriceMu.Lock()
	defer b.marketPriceMu.Unlock()
	return b.lastMarketPrice
}

// CancelOrder removes a resting order from the book using the active-order
// index for direct level/element lookup (Cancel operation).
// Returns false if the order is unknown (already filled or never existed).
func (b *OrderBook) CancelOrder(id domain.OrderId) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	loc, ok := b.activeLocation[id]
	if !ok {
		return false
	}
	elem := b.activeElement[id]

	var side *levels
	if loc.side == domain.Buy {
		side = b.bids
	} else {
		side = b.asks
	}

	idx, found := side.find(loc.price)
	if !found {
		// Index says the order exists but the level is gone; treat as
		// already removed rather than panicking on a stale pointer.
		delete(b.activeLocation, id)
		delete(b.activeElement, id)
		return false
	}

	side.items[idx].queue.Remove(elem)
	side.removeEmptyAt(idx)
	delete(b.activeLocation, id)
	delete(b.activeElement, id)
	return true
}

// GetBidPrice returns the best bid price, or decimal.Zero if the bid side
// is empty.
func (b *OrderBook) GetBidPrice() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	best := b.bids.best()
	if best == nil {
		return decimal.Zero
	}
	return best.price
}

// GetAskPrice returns the best ask price, or decimal.Zero if the ask side
// is empty.
func (b *OrderBook) GetAskPrice() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	best := b.asks.best()
	if best == nil {
		return decimal.Zero
	}
	return best.price
}

// GetMidPrice returns the midpoint of the best bid and ask. Unless both
// sides have resting orders, decimal.Zero is returned — matching
// original_source/src/cpp/core/order_book.cpp's get_mid_price, which
// only averages when both bid and ask are positive.
func (b *OrderBook) GetMidPrice() decimal.Decimal {
	b.mu.RLock()
	bid := b.bids.best()
	ask := b.asks.best()
	b.mu.RUnlock()

	if bid == nil || ask == nil {
		return decimal.Zero
	}
	return bid.price.Add(ask.price).Div(decimal.NewFromInt(2))
}

// GetBookDepth returns up to n price levels on each side, best price first,
// for display/diagnostic use.
func (b *OrderBook) GetBookDepth(n int) (bids, asks []domain.PriceLevel) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.bids.snapshot(n), b.asks.snapshot(n)
}

// dispatch invokes callbacks for each event in order, outside any book
// lock, so a callback is free to call back into AddOrder/CancelOrder
// without deadlocking.
func (b *OrderBook) dispatch(evs []event) {
	for _, ev := range evs {
		if ev.trade != nil {
			b.callbackMu.Lock()
			cb := b.onTrade
			b.callbackMu.Unlock()
			if cb != nil {
				cb(*ev.trade)
			}
		}
		if ev.reject != nil {
			b.callbackMu.Lock()
			cb := b.onReject
			b.callbackMu.Unlock()
			if cb != nil {
				cb(*ev.reject, ev.rejectWh)
			}
		}
	}
}
