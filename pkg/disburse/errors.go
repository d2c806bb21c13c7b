package disburse

import (
	"github.com/mariusgiger/batch-disburser/pkg/blockchain"
	"github.com/mariusgiger/batch-disburser/pkg/coinselection"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidAmount is returned for a batch with no requests or a non-positive amount
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrFundingAddressBusy is returned if another batch from the same address is in flight
	ErrFundingAddressBusy = errors.New("funding address busy")
)

// Retryable reports whether re-fetching and rebuilding the whole batch may succeed.
// Invalid batches and missing funds need a change in batch or balance first.
func Retryable(err error) bool {
	return errors.Is(err, blockchain.ErrLedgerUnavailable) ||
		errors.Is(err, blockchain.ErrRejectedByLedger) ||
		errors.Is(err, ErrFundingAddressBusy)
}

// Describe names the failure for operators
func Describe(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid batch"
	case errors.Is(err, coinselection.ErrNoFunds):
		return "faucet is empty"
	case errors.Is(err, coinselection.ErrInsufficientFunds):
		return "faucet is underfunded for this batch"
	case errors.Is(err, blockchain.ErrRejectedByLedger):
		return "transaction rejected by ledger, possibly lost a race against another spender"
	case errors.Is(err, blockchain.ErrLedgerUnavailable):
		return "ledger unavailable"
	case errors.Is(err, ErrFundingAddressBusy):
		return "another batch is using the funding address"
	}
	return "disbursement failed"
}
