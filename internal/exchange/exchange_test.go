package exchange

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"marketsim/internal/domain"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestExchange_SimpleCrossEndToEnd(t *testing.T) {
	ex := New(nil, 1)
	ex.AddSymbol("AAPL", dec(150))
	ex.AddParticipant("A", dec(10000))
	ex.AddParticipant("B", dec(10000))
	ex.SetInitialPosition("B", "AAPL", 60)

	var mu sync.Mutex
	var trades []domain.Trade
	ex.OnTrade(func(tr domain.Trade) {
		mu.Lock()
		defer mu.Unlock()
		trades = append(trades, tr)
	})

	ex.SubmitOrder(domain.Order{ParticipantId: "A", Symbol: "AAPL", Side: domain.Buy, Type: domain.Limit, Quantity: 100, Price: dec(150)})
	ex.SubmitOrder(domain.Order{ParticipantId: "B", Symbol: "AAPL", Side: domain.Sell, Type: domain.Limit, Quantity: 60, Price: dec(149)})

	mu.Lock()
	defer mu.Unlock()
	if len(trades) != 1 || trades[0].Quantity != 60 {
		t.Fatalf("trades = %+v, want one trade of qty 60", trades)
	}

	summary, err := ex.PortfolioSummary("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Positions["AAPL"] != 60 {
		t.Errorf("A.position = %d, want 60", summary.Positions["AAPL"])
	}

	market, ok := ex.MarketSummary("AAPL")
	if !ok {
		t.Fatal("expected market summary for AAPL")
	}
	if !market.Bid.Equal(dec(150)) {
		t.Errorf("bid = %v, want 150", market.Bid)
	}

	history := ex.TradeHistory()
	if len(history) != 1 {
		t.Errorf("trade history length = %d, want 1", len(history))
	}
}

func TestExchange_UnknownSymbolSubmitRejected(t *testing.T) {
	ex := New(nil, 1)
	ex.AddParticipant("A", dec(1000))

	if ex.SubmitOrder(domain.Order{ParticipantId: "A", Symbol: "GHOST", Side: domain.Buy, Type: domain.Market, Quantity: 1}) {
		t.Error("expected submission against an unregistered symbol to fail")
	}
}

func TestExchange_RejectionRoutedOnlyToOwningStrategy(t *testing.T) {
	ex := New(nil, 1)
	ex.AddSymbol("AAPL", dec(100))

	var mu sync.Mutex
	var reasons []string
	ex.OnRejection(func(o domain.Order, reason string) {
		mu.Lock()
		defer mu.Unlock()
		reasons = append(reasons, reason)
	})

	// No participant registered at all, so admission fails at the ledger.
	ex.SubmitOrder(domain.Order{ParticipantId: "ghost", Symbol: "AAPL", Side: domain.Buy, Type: domain.Limit, Quantity: 1, Price: dec(100)})

	mu.Lock()
	defer mu.Unlock()
	if len(reasons) != 1 || reasons[0] != domain.ReasonInsufficientFunds {
		t.Errorf("reasons = %v, want one insufficient-funds rejection", reasons)
	}
}
