package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRejectionError(t *testing.T) {
	order := Order{ID: 42, Symbol: "AAPL", Side: Buy, Quantity: 10, Price: decimal.NewFromInt(150)}
	err := &RejectionError{Order: order, Reason: ReasonInsufficientFunds}

	want := "order 42 rejected: insufficient funds or position"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConfigError(t *testing.T) {
	baseErr := errors.New("missing value")
	err := &ConfigError{Field: "symbols", Err: baseErr}

	expected := "config error [symbols]: missing value"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}

	if !errors.Is(err, baseErr) {
		t.Error("expected ConfigError to unwrap to baseErr")
	}
}
