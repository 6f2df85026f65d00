package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidRatio      = errors.New("payout ratio must be between 0 and 1")
	ErrInvalidEntry      = errors.New("invalid ledger entry")
)

// InsufficientFundsError is returned by a debit larger than the balance.
// No state is mutated when it is returned.
type InsufficientFundsError struct {
	Balance   int64
	Amount    int64
	Shortfall int64
}

func NewInsufficientFundsError(balance, amount int64) *InsufficientFundsError {
	return &InsufficientFundsError{
		Balance:   balance,
		Amount:    amount,
		Shortfall: amount - balance,
	}
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: have %d, need %d (short %d)", e.Balance, e.Amount, e.Shortfall)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// StorageError wraps any failure of local persistence.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NetworkError wraps transport failures and non-2xx responses of the backend.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("network %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
