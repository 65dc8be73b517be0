package orderbook

import (
	"container/list"

	"github.com/shopspring/decimal"

	"marketsim/internal/domain"
)

// executeMarketOrderLocked sweeps a market order against the opposite
// side's resting levels. Caller must hold the writer lock. A market order
// that only partially fills leaves no remainder on the book.
func (b *OrderBook) executeMarketOrderLocked(order domain.Order) ([]event, bool) {
	if order.Side == domain.Buy {
		return b.executeBuyMarketLocked(order)
	}
	return b.executeSellMarketLocked(order)
}

func (b *OrderBook) executeBuyMarketLocked(order domain.Order) ([]event, bool) {
	if b.asks.empty() {
		return []event{{reject: &order, rejectWh: domain.ReasonNoLiquidity}}, false
	}

	var evs []event
	for order.Remaining > 0 && !b.asks.empty() {
		lvl := b.asks.items[0]
		front := lvl.queue.Front()
		resting := front.Value.(*domain.Order)

		qty := min64(order.Remaining, resting.Remaining)
		tr := b.settleLocked(&order, resting, qty, lvl.price)
		evs = append(evs, event{trade: &tr})

		order.Remaining -= qty
		resting.Remaining -= qty

		if resting.Remaining == 0 {
			b.popFrontLocked(b.asks, 0, front, resting.ID)
		}
	}
	return evs, true
}

func (b *OrderBook) executeSellMarketLocked(order domain.Order) ([]event, bool) {
	if b.bids.empty() {
		return []event{{reject: &order, rejectWh: domain.ReasonNoLiquidity}}, false
	}

	var evs []event
	for order.Remaining > 0 && !b.bids.empty() {
		lvl := b.bids.items[0]
		front := lvl.queue.Front()
		resting := front.Value.(*domain.Order)

		qty := min64(order.Remaining, resting.Remaining)
		tr := b.settleLocked(resting, &order, qty, lvl.price)
		evs = append(evs, event{trade: &tr})

		order.Remaining -= qty
		resting.Remaining -= qty

		if resting.Remaining == 0 {
			b.popFrontLocked(b.bids, 0, front, resting.ID)
		}
	}
	return evs, true
}

// addLimitOrderLocked pushes order to the back of its side's queue at its
// price, records it in the active-order index, and then runs
// cross-matching ("Limit order insertion").
func (b *OrderBook) addLimitOrderLocked(order domain.Order) []event {
	own := order // copy that we will store a pointer to
	var side *levels
	if order.Side == domain.Buy {
		side = b.bids
	} else {
		side = b.asks
	}

	lvl := side.getOrCreate(order.Price)
	elem := lvl.queue.PushBack(&own)
	b.activeLocation[order.ID] = orderLocation{price: order.Price, side: order.Side}
	b.activeElement[order.ID] = elem

	return b.crossMatchLocked()
}

// crossMatchLocked is the direct translation of
// original_source/src/cpp/core/order_book.cpp's match_orders_unsafe: while
// the best bid crosses the best ask, trade at the resting ask's price
// (price improvement for the buyer), taking front-of-queue orders on both
// sides.
func (b *OrderBook) crossMatchLocked() []event {
	var evs []event

	for !b.bids.empty() && !b.asks.empty() {
		bidLvl := b.bids.items[0]
		askLvl := b.asks.items[0]

		if bidLvl.price.LessThan(askLvl.price) {
			break
		}

		buyFront := bidLvl.queue.Front()
		sellFront := askLvl.queue.Front()
		buyOrder := buyFront.Value.(*domain.Order)
		sellOrder := sellFront.Value.(*domain.Order)

		qty := min64(buyOrder.Remaining, sellOrder.Remaining)
		tradePrice := askLvl.price // standing order gets priority on price

		tr := b.settleLocked(buyOrder, sellOrder, qty, tradePrice)
		evs = append(evs, event{trade: &tr})

		buyOrder.Remaining -= qty
		sellOrder.Remaining -= qty

		if buyOrder.Remaining == 0 {
			b.popFrontLocked(b.bids, 0, buyFront, buyOrder.ID)
		}
		if sellOrder.Remaining == 0 {
			b.popFrontLocked(b.asks, 0, sellFront, sellOrder.ID)
		}
	}

	return evs
}

// settleLocked posts both legs of a trade to the ledger (if attached) and
// returns the Trade record. The buyer/seller Order values passed in are
// only used for their ID/ParticipantId/Symbol — remaining-quantity
// bookkeeping is the caller's responsibility.
func (b *OrderBook) settleLocked(buyOrder, sellOrder *domain.Order, qty int64, price decimal.Decimal) domain.Trade {
	trade := domain.Trade{
		BuyOrderId:  buyOrder.ID,
		SellOrderId: sellOrder.ID,
		Symbol:      b.symbol,
		Quantity:    qty,
		Price:       price,
		Timestamp:   b.now(),
	}

	if b.ledger != nil {
		// Errors here mean the participant vanished between admission and
		// match, which cannot happen under the book's own lock discipline
		// (admission already confirmed both participants exist); any
		// failure is logged and the trade is still emitted rather than lost.
		if err := b.ledger.ExecuteTrade(buyOrder.ParticipantId, trade, domain.Buy); err != nil {
			b.log.Warn("ledger post failed for buy leg", "order_id", buyOrder.ID, "error", err)
		}
		if err := b.ledger.ExecuteTrade(sellOrder.ParticipantId, trade, domain.Sell); err != nil {
			b.log.Warn("ledger post failed for sell leg", "order_id", sellOrder.ID, "error", err)
		}
	}

	return trade
}

// popFrontLocked removes the front element of a level's queue, erases the
// level if it is now empty, and removes the order from the active-order
// index.
func (b *OrderBook) popFrontLocked(lv *levels, idx int, elem *list.Element, id domain.OrderId) {
	lv.items[idx].queue.Remove(elem)
	lv.removeEmptyAt(idx)
	delete(b.activeLocation, id)
	delete(b.activeElement, id)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
