// Package bots implements synthetic trading participants — momentum and
// market-making strategies — that submit orders autonomously in response
// to market data and trade events. Grounded on original_source/src/python/
// simulator/strategies/base.py's BaseStrategy (the submit_order/
// get_position/get_cash helper surface) and chycee-cryptoGo's
// internal/strategy package (the Strategy interface shape, generalized
// from a single-symbol SMA crossover to the simulator's multi-symbol
// event callbacks).
package bots

import (
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"marketsim/internal/domain"
)

// Submitter is the narrow slice of the exchange a strategy needs to act:
// submitting/cancelling orders and reading portfolio/market state. It is
// satisfied by *exchange.Exchange.
type Submitter interface {
	SubmitOrder(order domain.Order) bool
	CancelOrder(symbol domain.Symbol, id domain.OrderId) bool
	Position(participantId domain.ParticipantId, symbol domain.Symbol) domain.Quantity
	CurrentPrice(symbol domain.Symbol) decimal.Decimal
}

// Strategy is a synthetic trading participant. The exchange calls these
// methods as events occur; implementations must not block.
type Strategy interface {
	ParticipantId() domain.ParticipantId
	Init(sub Submitter)
	OnMarketData(md domain.MarketData)
	OnTrade(trade domain.Trade)
	OnOrderRejection(order domain.Order, reason string)
}

// history keeps a bounded list of recent MarketData per symbol, the Go
// analogue of BaseStrategy's market_data_history list: each record appends
// and then trims the list to the most recent maxKeep entries.
type history struct {
	mu      sync.Mutex
	bySym   map[domain.Symbol][]domain.MarketData
	maxKeep int
}

func newHistory(maxKeep int) *history {
	return &history{bySym: make(map[domain.Symbol][]domain.MarketData), maxKeep: maxKeep}
}

func (h *history) record(md domain.MarketData) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := append(h.bySym[md.Symbol], md)
	if len(list) > h.maxKeep {
		list = list[len(list)-h.maxKeep:]
	}
	h.bySym[md.Symbol] = list
}

// recent returns up to n of the most recent entries for symbol, oldest
// first. Returns fewer than n if not enough history has accumulated yet.
func (h *history) recent(symbol domain.Symbol, n int) []domain.MarketData {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.bySym[symbol]
	if len(list) < n {
		return append([]domain.MarketData(nil), list...)
	}
	return append([]domain.MarketData(nil), list[len(list)-n:]...)
}

const maxHistoryPerSymbol = 1000

func defaultLogger(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
