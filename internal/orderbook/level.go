package orderbook

import (
	"container/list"

	"github.com/shopspring/decimal"

	"marketsim/internal/domain"
)

// priceLevel is the FIFO queue of resting orders at one price, the Go
// translation of the original C++ core's std::queue<Order> held inside a
// std::map<Price, std::queue<Order>> (original_source/src/cpp/core/
// order_book.hpp). container/list gives O(1) push-back and O(1) removal
// given a *list.Element, the natural upgrade path for cancel cost over a
// plain slice: an intrusive doubly-linked list per level with an id -> node
// map for O(1) cancel.
type priceLevel struct {
	price decimal.Decimal
	queue *list.List // of *domain.Order
}

func newPriceLevel(price decimal.Decimal) *priceLevel {
	return &priceLevel{price: price, queue: list.New()}
}

// totalQuantity sums the remaining quantity of every order resting at this
// level, for GetBookDepth. It does not disturb the queue.
func (pl *priceLevel) totalQuantity() domain.Quantity {
	var total domain.Quantity
	for e := pl.queue.Front(); e != nil; e = e.Next() {
		total += e.Value.(*domain.Order).Remaining
	}
	return total
}

// levels is a price-ordered slice of *priceLevel. ascending selects the
// sort direction: asks are kept ascending (lowest price first), bids
// descending (highest price first), so that levels[0] is always the best
// price on that side — matching buy_orders_.rbegin() / sell_orders_.begin()
// in the C++ original without needing a reverse iterator.
type levels struct {
	ascending bool
	items     []*priceLevel
}

func newLevels(ascending bool) *levels {
	return &levels{ascending: ascending}
}

func (l *levels) empty() bool {
	return len(l.items) == 0
}

// best returns the top-of-book level for this side, or nil if empty.
func (l *levels) best() *priceLevel {
	if l.empty() {
		return nil
	}
	return l.items[0]
}

// less reports whether price a sorts before price b under this side's
// ordering (ascending for asks, descending for bids).
func (l *levels) less(a, b decimal.Decimal) bool {
	if l.ascending {
		return a.LessThan(b)
	}
	return a.GreaterThan(b)
}

// find locates the level at an exact price, returning its index and
// whether it was found. Uses a linear scan: book depth in a simulator is
// small (single-digit to low hundreds of distinct prices per symbol), and
// a linear scan keeps the ordering logic trivially correct; see DESIGN.md
// for the tradeoff against a binary search or balanced tree.
func (l *levels) find(price decimal.Decimal) (int, bool) {
	for i, lvl := range l.items {
		if lvl.price.Equal(price) {
			return i, true
		}
	}
	return -1, false
}

// getOrCreate returns the level at price, inserting a new empty one in
// sorted position if none exists yet.
func (l *levels) getOrCreate(price decimal.Decimal) *priceLevel {
	idx := 0
	for idx < len(l.items) {
		if l.items[idx].price.Equal(price) {
			return l.items[idx]
		}
		if l.less(price, l.items[idx].price) {
			break
		}
		idx++
	}

	lvl := newPriceLevel(price)
	l.items = append(l.items, nil)
	copy(l.items[idx+1:], l.items[idx:])
	l.items[idx] = lvl
	return lvl
}

// removeEmptyAt erases the level at index i if its queue has gone empty.
func (l *levels) removeEmptyAt(i int) {
	if i < 0 || i >= len(l.items) {
		return
	}
	if l.items[i].queue.Len() > 0 {
		return
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
}

// snapshot returns up to n (price, aggregate quantity) pairs from the best
// side outward, for OrderBook.GetBookDepth.
func (l *levels) snapshot(n int) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, n)
	for i := 0; i < n && i < len(l.items); i++ {
		out = append(out, domain.PriceLevel{
			Price:    l.items[i].price,
			Quantity: l.items[i].totalQuantity(),
		})
	}
	return out
}
