// Package portfolio implements the Portfolio Ledger: per-participant cash
// and positions, admission checks against available funds/inventory, and
// atomic posting of trade effects. Grounded on chycee-cryptoGo's
// internal/domain.BalanceBook (a mutex-guarded map of per-symbol balances)
// and the shape fixed by internal/execution/paper_test.go's PaperExecution
// account (Deposit/UpdatePrice/ExecuteOrder/GetBalance), generalized from
// satoshi-denominated crypto balances to a decimal cash-and-position
// model sized for equities.
package portfolio

import (
	"sync"

	"github.com/shopspring/decimal"

	"marketsim/internal/domain"
)

// account holds one participant's cash and per-symbol positions. All
// fields are only ever touched while the owning Ledger's mutex is held.
type account struct {
	cash        decimal.Decimal
	initialCash decimal.Decimal
	positions   map[domain.Symbol]domain.Quantity
}

// Ledger tracks cash and positions for a set of participants and gates
// order admission against them. All mutating operations and all reads are
// serialized on a single mutex. The ledger performs no callbacks and no
// I/O.
type Ledger struct {
	mu           sync.Mutex
	participants map[domain.ParticipantId]*account
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		participants: make(map[domain.ParticipantId]*account),
	}
}

// AddParticipant inserts a participant, or replaces an existing one with a
// fresh account at initialCash (idempotent replace).
func (l *Ledger) AddParticipant(id domain.ParticipantId, initialCash decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.participants[id] = &account{
		cash:        initialCash,
		initialCash: initialCash,
		positions:   make(map[domain.Symbol]domain.Quantity),
	}
}

// SetInitialPosition seeds a position for an existing (or implicitly
// created) participant, debiting cash by qty*costBasis when costBasis is
// positive
func (l *Ledger) SetInitialPosition(id domain.ParticipantId, symbol domain.Symbol, qty domain.Quantity, costBasis decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.getOrCreate(id)
	acc.positions[symbol] = qty

	if costBasis.IsPositive() {
		totalCost := decimal.NewFromInt(qty).Mul(costBasis)
		acc.cash = acc.cash.Sub(totalCost)
	}
}

func (l *Ledger) getOrCreate(id domain.ParticipantId) *account {
	acc, ok := l.participants[id]
	if !ok {
		acc = &account{positions: make(map[domain.Symbol]domain.Quantity)}
		l.participants[id] = acc
	}
	return acc
}

// CanBuy reports whether the participant exists and qty*price does not
// exceed their cash. symbol is accepted but unused, matching
// original_source's can_buy, which never consults it either; kept in the
// signature so a future per-symbol buying-power rule (e.g. sector
// exposure caps) would not need to change every caller.
func (l *Ledger) CanBuy(id domain.ParticipantId, symbol domain.Symbol, qty domain.Quantity, price decimal.Decimal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.participants[id]
	if !ok {
		return false
	}

	notional := decimal.NewFromInt(qty).Mul(price)
	return notional.LessThanOrEqual(acc.cash)
}

// CanSell reports whether the participant exists and their position in
// symbol is at least qty. No shorting is permitted by default; see
// DESIGN.md for that decision.
func (l *Ledger) CanSell(id domain.ParticipantId, symbol domain.Symbol, qty domain.Quantity) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.participants[id]
	if !ok {
		return false
	}

	return acc.positions[symbol] >= qty
}

// ExecuteTrade applies the signed effect of one leg of a trade to a
// participant: position[symbol] += sign*qty, cash -= sign*qty*price, where
// sign is +1 for BUY and -1 for SELL. Returns domain.ErrUnknownParticipant
// if id was never registered.
func (l *Ledger) ExecuteTrade(id domain.ParticipantId, trade domain.Trade, side domain.Side) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.participants[id]
	if !ok {
		return domain.ErrUnknownParticipant
	}

	sign := int64(1)
	if side == domain.Sell {
		sign = -1
	}

	acc.positions[trade.Symbol] += sign * trade.Quantity
	notional := decimal.NewFromInt(sign * trade.Quantity).Mul(trade.Price)
	acc.cash = acc.cash.Sub(notional)

	return nil
}

// GetCash returns the participant's cash balance.
func (l *Ledger) GetCash(id domain.ParticipantId) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.participants[id]
	if !ok {
		return decimal.Zero, domain.ErrUnknownParticipant
	}
	return acc.cash, nil
}

// GetBuyingPower is an alias for GetCash
func (l *Ledger) GetBuyingPower(id domain.ParticipantId) (decimal.Decimal, error) {
	return l.GetCash(id)
}

// GetPosition returns the participant's signed position in symbol.
func (l *Ledger) GetPosition(id domain.ParticipantId, symbol domain.Symbol) (domain.Quantity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.participants[id]
	if !ok {
		return 0, domain.ErrUnknownParticipant
	}
	return acc.positions[symbol], nil
}

// GetPnL returns Σ position*price + cash - initialCash for the given
// mark-to-market prices.
func (l *Ledger) GetPnL(id domain.ParticipantId, prices map[domain.Symbol]decimal.Decimal) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.participants[id]
	if !ok {
		return decimal.Zero, domain.ErrUnknownParticipant
	}

	positionValue := positionValue(acc, prices)
	return positionValue.Add(acc.cash).Sub(acc.initialCash), nil
}

// GetPortfolioValue returns cash + Σ position*price for the given
// mark-to-market prices.
func (l *Ledger) GetPortfolioValue(id domain.ParticipantId, prices map[domain.Symbol]decimal.Decimal) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.participants[id]
	if !ok {
		return decimal.Zero, domain.ErrUnknownParticipant
	}

	return acc.cash.Add(positionValue(acc, prices)), nil
}

// GetTotalExposure returns Σ |position|*price for the given mark-to-market
// prices.
func (l *Ledger) GetTotalExposure(id domain.ParticipantId, prices map[domain.Symbol]decimal.Decimal) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.participants[id]
	if !ok {
		return decimal.Zero, domain.ErrUnknownParticipant
	}

	total := decimal.Zero
	for symbol, qty := range acc.positions {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		total = total.Add(decimal.NewFromInt(abs(qty)).Mul(price))
	}
	return total, nil
}

func positionValue(acc *account, prices map[domain.Symbol]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for symbol, qty := range acc.positions {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		total = total.Add(decimal.NewFromInt(qty).Mul(price))
	}
	return total
}

func abs(q domain.Quantity) domain.Quantity {
	if q < 0 {
		return -q
	}
	return q
}
