package marketdata

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketsim/internal/domain"
)

func TestEngine_PositivityAndCadence(t *testing.T) {
	// High volatility, ~1 second of run time: expect roughly 10 ticks at
	// 100ms cadence, all at or above the floor price.
	e := NewSeeded(42, nil)
	e.AddSymbolWithVolatility("X", decimal.NewFromFloat(1.00), 5.0)

	var mu sync.Mutex
	var ticks []domain.MarketData
	e.SetCallback(func(md domain.MarketData) {
		mu.Lock()
		defer mu.Unlock()
		ticks = append(ticks, md)
	})

	e.Start()
	time.Sleep(1050 * time.Millisecond)
	e.Stop()

	mu.Lock()
	defer mu.Unlock()

	if len(ticks) < 8 || len(ticks) > 13 {
		t.Errorf("got %d ticks in ~1s, want ~10", len(ticks))
	}
	for _, md := range ticks {
		if md.Symbol != "X" {
			t.Errorf("tick symbol = %q, want X", md.Symbol)
		}
		if md.Price.LessThan(decimal.NewFromFloat(floorPrice)) {
			t.Errorf("tick price %v below floor %v", md.Price, floorPrice)
		}
	}

	last := ticks[len(ticks)-1]
	current := e.GetCurrentPrice("X")
	if !current.Equal(last.Price) {
		t.Errorf("GetCurrentPrice = %v, want last callback price %v", current, last.Price)
	}
}

func TestEngine_AddSymbolIdempotentOverwrite(t *testing.T) {
	e := NewSeeded(1, nil)
	e.AddSymbol("AAPL", decimal.NewFromInt(100))
	e.AddSymbol("AAPL", decimal.NewFromInt(200))

	if !e.GetCurrentPrice("AAPL").Equal(decimal.NewFromInt(200)) {
		t.Errorf("price = %v, want 200 (overwrite)", e.GetCurrentPrice("AAPL"))
	}
}

func TestEngine_UnknownSymbolIsZero(t *testing.T) {
	e := NewSeeded(1, nil)
	if !e.GetCurrentPrice("GHOST").IsZero() {
		t.Error("expected zero price for unknown symbol")
	}
}

func TestEngine_StartStopIdempotent(t *testing.T) {
	e := NewSeeded(1, nil)
	e.AddSymbol("AAPL", decimal.NewFromInt(100))

	e.Start()
	e.Start() // no-op, must not spawn a second producer
	time.Sleep(150 * time.Millisecond)
	e.Stop()
	e.Stop() // no-op, must not block forever
}

func TestEngine_GetAllPrices(t *testing.T) {
	e := NewSeeded(1, nil)
	e.AddSymbol("AAPL", decimal.NewFromInt(100))
	e.AddSymbol("MSFT", decimal.NewFromInt(200))

	prices := e.GetAllPrices()
	if len(prices) != 2 {
		t.Fatalf("got %d prices, want 2", len(prices))
	}
	if !prices["AAPL"].Equal(decimal.NewFromInt(100)) {
		t.Errorf("AAPL = %v, want 100", prices["AAPL"])
	}
}

func TestEngine_SeededRunsAreReproducible(t *testing.T) {
	run := func(seed int64) []decimal.Decimal {
		e := NewSeeded(seed, nil)
		e.AddSymbol("AAPL", decimal.NewFromInt(100))

		var mu sync.Mutex
		var prices []decimal.Decimal
		e.SetCallback(func(md domain.MarketData) {
			mu.Lock()
			defer mu.Unlock()
			prices = append(prices, md.Price)
		})

		e.Start()
		time.Sleep(350 * time.Millisecond)
		e.Stop()

		mu.Lock()
		defer mu.Unlock()
		return prices
	}

	a := run(7)
	b := run(7)

	if len(a) == 0 || len(b) == 0 {
		t.Fatal("expected at least one tick in 350ms")
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if !a[i].Equal(b[i]) {
			t.Errorf("tick %d diverged between identically seeded runs: %v vs %v", i, a[i], b[i])
		}
	}
}
