// Package domain holds the shared data shapes of the simulator: orders,
// trades, market-data snapshots, and the identifiers that tie them
// together. Nothing in this package mutates state owned by another
// package; it only describes the wire shapes the core subsystems pass to
// each other and to external observers.
package domain

import (
	"github.com/shopspring/decimal"
)

// Symbol is an opaque short ticker, e.g. "AAPL".
type Symbol string

// ParticipantId is an opaque identifier for a trading participant.
type ParticipantId string

// OrderId is unique per process, monotonically assigned by NewOrderID.
type OrderId uint64

// Price is a non-negative real number, represented exactly to avoid the
// binary floating-point drift that would otherwise accumulate across many
// partial fills.
type Price = decimal.Decimal

// Quantity is a non-negative integer number of shares/units.
type Quantity = int64

// Timestamp is integer milliseconds since the Unix epoch.
type Timestamp = int64

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType selects market vs. limit execution style.
type OrderType int

const (
	Market OrderType = iota
	Limit
)

func (t OrderType) String() string {
	if t == Market {
		return "MARKET"
	}
	return "LIMIT"
}

// Order describes a request to trade a symbol. Remaining decreases on
// partial fills; the book that owns a resting order is the only thing
// that ever mutates it.
type Order struct {
	ID            OrderId
	ParticipantId ParticipantId
	Symbol        Symbol
	Side          Side
	Type          OrderType
	Quantity      Quantity
	Remaining     Quantity
	Price         Price
	Timestamp     Timestamp
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.Remaining <= 0
}

// Trade is an immutable record of one match event.
type Trade struct {
	BuyOrderId  OrderId
	SellOrderId OrderId
	Symbol      Symbol
	Quantity    Quantity
	Price       Price
	Timestamp   Timestamp
}

// MarketData is a single symbol's published reference-price snapshot.
// Bid/Ask are derived from Price per the 0.999/1.001 convention decided in
// DESIGN.md; Volume is not filled in by the market-data engine and is
// always zero in published snapshots.
type MarketData struct {
	Symbol    Symbol
	Price     Price
	Bid       Price
	Ask       Price
	Volume    Quantity
	Timestamp Timestamp
}

// PriceLevel reports the aggregate resting quantity at one price, used by
// OrderBook.GetBookDepth.
type PriceLevel struct {
	Price    Price
	Quantity Quantity
}
