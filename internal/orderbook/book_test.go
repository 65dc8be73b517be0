package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"

	"marketsim/internal/domain"
	"marketsim/internal/portfolio"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newOrder(id domain.OrderId, pid domain.ParticipantId, side domain.Side, typ domain.OrderType, qty int64, price int64) domain.Order {
	return domain.Order{
		ID:            id,
		ParticipantId: pid,
		Symbol:        "AAPL",
		Side:          side,
		Type:          typ,
		Quantity:      qty,
		Price:         dec(price),
	}
}

func TestOrderBook_SimpleCross(t *testing.T) {
	// A buys 100 @ 150, B sells 60 @ 149: one trade at 149, A's order rests the remainder.
	ledger := portfolio.NewLedger()
	ledger.AddParticipant("A", dec(10000))
	ledger.AddParticipant("B", dec(10000))
	ledger.SetInitialPosition("B", "AAPL", 60, decimal.Zero)

	book := New("AAPL", ledger, nil)

	var trades []domain.Trade
	book.SetTradeCallback(func(tr domain.Trade) { trades = append(trades, tr) })

	if !book.AddOrder(newOrder(1, "A", domain.Buy, domain.Limit, 100, 150)) {
		t.Fatal("A's buy should be admitted")
	}
	if !book.AddOrder(newOrder(2, "B", domain.Sell, domain.Limit, 60, 149)) {
		t.Fatal("B's sell should be admitted")
	}

	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	tr := trades[0]
	if tr.Quantity != 60 || !tr.Price.Equal(dec(149)) {
		t.Errorf("trade = %+v, want qty=60 price=149", tr)
	}

	aCash, _ := ledger.GetCash("A")
	if !aCash.Equal(dec(10000 - 60*149)) {
		t.Errorf("A.cash = %v", aCash)
	}
	aPos, _ := ledger.GetPosition("A", "AAPL")
	if aPos != 60 {
		t.Errorf("A.position = %d, want 60", aPos)
	}

	bid := book.GetBidPrice()
	if !bid.Equal(dec(150)) {
		t.Errorf("bid = %v, want 150", bid)
	}
	ask := book.GetAskPrice()
	if !ask.IsZero() {
		t.Errorf("ask = %v, want 0 (asks empty)", ask)
	}

	bids, asks := book.GetBookDepth(5)
	if len(bids) != 1 || bids[0].Quantity != 40 {
		t.Errorf("bids depth = %+v, want one level with qty 40", bids)
	}
	if len(asks) != 0 {
		t.Errorf("asks depth = %+v, want empty", asks)
	}
}

func TestOrderBook_FIFOAtPriceLevel(t *testing.T) {
	// A and B both rest sell orders at 100; a smaller market buy fills only A's order.
	ledger := portfolio.NewLedger()
	ledger.AddParticipant("A", dec(10000))
	ledger.AddParticipant("B", dec(10000))
	ledger.AddParticipant("C", dec(10000))
	ledger.SetInitialPosition("A", "AAPL", 10, decimal.Zero)
	ledger.SetInitialPosition("B", "AAPL", 10, decimal.Zero)

	book := New("AAPL", ledger, nil)

	var trades []domain.Trade
	book.SetTradeCallback(func(tr domain.Trade) { trades = append(trades, tr) })

	book.AddOrder(newOrder(1, "A", domain.Sell, domain.Limit, 10, 100))
	book.AddOrder(newOrder(2, "B", domain.Sell, domain.Limit, 10, 100))
	book.AddOrder(newOrder(3, "C", domain.Buy, domain.Market, 10, 0))

	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	if trades[0].SellOrderId != 1 {
		t.Errorf("trade filled order %d, want A's order (1)", trades[0].SellOrderId)
	}

	bPos, _ := ledger.GetPosition("B", "AAPL")
	if bPos != 10 {
		t.Errorf("B.position = %d, want 10 (untouched)", bPos)
	}

	_, asks := book.GetBookDepth(5)
	if len(asks) != 1 || asks[0].Quantity != 10 {
		t.Errorf("asks depth = %+v, want one level with qty 10 (B's order)", asks)
	}
}

func TestOrderBook_MarketOrderNoLiquidity(t *testing.T) {
	// An empty book rejects a market order for lack of liquidity.
	book := New("AAPL", nil, nil)

	var rejected bool
	var reason string
	book.SetRejectionCallback(func(o domain.Order, r string) { rejected = true; reason = r })

	admitted := book.AddOrder(newOrder(1, "A", domain.Buy, domain.Market, 1, 0))
	if admitted {
		t.Error("expected market buy against empty book to be rejected")
	}
	if !rejected || reason != domain.ReasonNoLiquidity {
		t.Errorf("rejected=%v reason=%q, want no-liquidity rejection", rejected, reason)
	}

	bids, asks := book.GetBookDepth(5)
	if len(bids) != 0 || len(asks) != 0 {
		t.Error("book should be unchanged after rejection")
	}
}

func TestOrderBook_AdmissionRejectionOnFunds(t *testing.T) {
	// Insufficient cash rejects the order and leaves the ledger untouched.
	ledger := portfolio.NewLedger()
	ledger.AddParticipant("A", dec(100))

	book := New("AAPL", ledger, nil)

	var reason string
	book.SetRejectionCallback(func(o domain.Order, r string) { reason = r })

	admitted := book.AddOrder(newOrder(1, "A", domain.Buy, domain.Limit, 10, 50))
	if admitted {
		t.Error("expected rejection: notional 500 > cash 100")
	}
	if reason != domain.ReasonInsufficientFunds {
		t.Errorf("reason = %q, want insufficient funds", reason)
	}

	cash, _ := ledger.GetCash("A")
	if !cash.Equal(dec(100)) {
		t.Errorf("A.cash = %v, want unchanged 100", cash)
	}
}

func TestOrderBook_CancelPreservesFIFO(t *testing.T) {
	// Canceling the middle order of three at a level preserves FIFO for the rest.
	ledger := portfolio.NewLedger()
	ledger.AddParticipant("A", dec(100000))
	ledger.AddParticipant("S", dec(100000))
	ledger.SetInitialPosition("S", "AAPL", 100, decimal.Zero)

	book := New("AAPL", ledger, nil)

	book.AddOrder(newOrder(1, "A", domain.Buy, domain.Limit, 10, 100)) // O1
	book.AddOrder(newOrder(2, "A", domain.Buy, domain.Limit, 10, 100)) // O2
	book.AddOrder(newOrder(3, "A", domain.Buy, domain.Limit, 10, 100)) // O3

	if !book.CancelOrder(2) {
		t.Fatal("expected cancel of O2 to succeed")
	}
	if book.CancelOrder(2) {
		t.Error("expected second cancel of O2 to be a benign false")
	}

	var trades []domain.Trade
	book.SetTradeCallback(func(tr domain.Trade) { trades = append(trades, tr) })

	book.AddOrder(newOrder(4, "S", domain.Sell, domain.Market, 10, 0))

	if len(trades) != 1 || trades[0].BuyOrderId != 1 {
		t.Fatalf("trades = %+v, want single fill against O1", trades)
	}

	bids, _ := book.GetBookDepth(5)
	if len(bids) != 1 || bids[0].Quantity != 10 {
		t.Fatalf("bids depth = %+v, want one level with qty 10 (O3 only)", bids)
	}
}

func TestOrderBook_CrossingLimitPriceImprovement(t *testing.T) {
	// Price-improvement: a crossing limit buy executes at the resting ask's
	// price, not the aggressor's price.
	ledger := portfolio.NewLedger()
	ledger.AddParticipant("A", dec(100000))
	ledger.AddParticipant("B", dec(100000))
	ledger.SetInitialPosition("B", "AAPL", 10, decimal.Zero)

	book := New("AAPL", ledger, nil)

	book.AddOrder(newOrder(1, "B", domain.Sell, domain.Limit, 10, 100))

	var trades []domain.Trade
	book.SetTradeCallback(func(tr domain.Trade) { trades = append(trades, tr) })

	book.AddOrder(newOrder(2, "A", domain.Buy, domain.Limit, 10, 110))

	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	if !trades[0].Price.Equal(dec(100)) {
		t.Errorf("trade price = %v, want 100 (resting ask's price)", trades[0].Price)
	}
}

func TestOrderBook_PartialFillLeavesNoMarketRemainder(t *testing.T) {
	ledger := portfolio.NewLedger()
	ledger.AddParticipant("A", dec(100000))
	ledger.AddParticipant("S", dec(100000))
	ledger.SetInitialPosition("S", "AAPL", 5, decimal.Zero)

	book := New("AAPL", ledger, nil)
	book.AddOrder(newOrder(1, "S", domain.Sell, domain.Limit, 5, 100))

	admitted := book.AddOrder(newOrder(2, "A", domain.Buy, domain.Market, 10, 0))
	if !admitted {
		t.Error("partially-filled market order should still count as admitted")
	}

	bids, asks := book.GetBookDepth(5)
	if len(bids) != 0 {
		t.Errorf("market buy must not rest on the book, got bids=%+v", bids)
	}
	if len(asks) != 0 {
		t.Errorf("seller's order should be fully filled, got asks=%+v", asks)
	}
}

func TestOrderBook_RejectionDoesNotBlockLaterOrders(t *testing.T) {
	// Re-entrant submission from a rejection callback must not deadlock.
	book := New("AAPL", nil, nil)

	var reentered bool
	book.SetRejectionCallback(func(o domain.Order, reason string) {
		if !reentered {
			reentered = true
			book.AddOrder(newOrder(99, "A", domain.Buy, domain.Market, 1, 0))
		}
	})

	book.AddOrder(newOrder(1, "A", domain.Buy, domain.Market, 1, 0))
	if !reentered {
		t.Error("expected rejection callback to have re-entered AddOrder")
	}
}

func TestOrderBook_GetMidPrice(t *testing.T) {
	book := New("AAPL", nil, nil)

	if !book.GetMidPrice().IsZero() {
		t.Error("mid price of empty book should be zero")
	}

	book.AddOrder(newOrder(1, "A", domain.Buy, domain.Limit, 10, 100))
	if !book.GetMidPrice().IsZero() {
		t.Errorf("mid with only a bid and no ask should be zero")
	}

	book.AddOrder(newOrder(2, "B", domain.Sell, domain.Limit, 10, 102))
	want := dec(100).Add(dec(102)).Div(dec(2))
	if !book.GetMidPrice().Equal(want) {
		t.Errorf("mid = %v, want %v", book.GetMidPrice(), want)
	}
}
