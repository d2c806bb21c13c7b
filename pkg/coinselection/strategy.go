package coinselection

import (
	"fmt"
	"math/big"

	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/pkg/errors"
)

// ResultSet represents a coin selection result
type ResultSet struct {
	Coins  []*common.UnspentOutput
	Total  *big.Int
	Change *big.Int
}

var (
	// ErrInsufficient is matched by every InsufficientFundsError
	ErrInsufficient = errors.New("insufficient funds")

	// ErrNoFunds is returned if there are no coins of the requested color at all
	ErrNoFunds = errors.New("no coins available")

	// ErrInsufficientFunds is returned if there are coins, but not enough of them
	ErrInsufficientFunds = errors.New("not enough coins")
)

// InsufficientFundsError reports how far the available coins fall short of the target
type InsufficientFundsError struct {
	Required  *big.Int
	Available *big.Int
	Shortfall *big.Int
}

func newInsufficientFundsError(required, available *big.Int) *InsufficientFundsError {
	return &InsufficientFundsError{
		Required:  new(big.Int).Set(required),
		Available: new(big.Int).Set(available),
		Shortfall: new(big.Int).Sub(required, available),
	}
}

func (e *InsufficientFundsError) Error() string {
	if e.Empty() {
		return fmt.Sprintf("%s: need %s", ErrNoFunds, e.Required)
	}
	return fmt.Sprintf("%s: need %s, have %s, short by %s", ErrInsufficientFunds, e.Required, e.Available, e.Shortfall)
}

// Empty is true when nothing at all was available
func (e *InsufficientFundsError) Empty() bool {
	return e.Available.Sign() == 0
}

// Is lets errors.Is tell an empty faucet from an underfunded one
func (e *InsufficientFundsError) Is(target error) bool {
	switch target {
	case ErrInsufficient:
		return true
	case ErrNoFunds:
		return e.Empty()
	case ErrInsufficientFunds:
		return !e.Empty()
	}
	return false
}

// Strategy interface for coin selection. Callers rely only on Coins; Total and
// Change are informational.
type Strategy interface {
	SelectCoins(utxos []*common.UnspentOutput, target *big.Int) (*ResultSet, error)
}
