package disburse

import (
	"math/big"

	"github.com/mariusgiger/batch-disburser/pkg/coinselection"
	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/pkg/errors"
)

// Result is an unsigned transaction together with the outputs it spends
type Result struct {
	Tx     *common.Transaction
	Spent  []*common.UnspentOutput
	Total  *big.Int
	Change *big.Int
}

// HasChange reports whether Tx.Outputs[0] is the change output
func (r *Result) HasChange() bool {
	return r.Change.Sign() > 0
}

// Builder assembles one transaction per batch. It performs no I/O and keeps
// no state, so one Builder may serve any number of goroutines.
type Builder struct {
	Selector coinselection.Strategy
}

// NewBuilder returns a Builder using first-fit selection
func NewBuilder() *Builder {
	return &Builder{Selector: coinselection.FirstFit{}}
}

// Build is NewBuilder().Build
func Build(requests []common.PayoutRequest, fundingAddress string, unspent []*common.UnspentOutput, amountPerRequest *big.Int, color common.Color) (*Result, error) {
	return NewBuilder().Build(requests, fundingAddress, unspent, amountPerRequest, color)
}

// Build pays amountPerRequest of color to every request from the funding address.
//
// Inputs are taken from unspent in the given order until they cover the total.
// Outputs are the change back to fundingAddress, if any, followed by one
// output per request in request order.
func (b *Builder) Build(requests []common.PayoutRequest, fundingAddress string, unspent []*common.UnspentOutput, amountPerRequest *big.Int, color common.Color) (*Result, error) {
	if amountPerRequest == nil || amountPerRequest.Sign() <= 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "amount per request must be positive, got %v", amountPerRequest)
	}
	if len(requests) == 0 {
		return nil, errors.Wrap(ErrInvalidAmount, "no requests in batch")
	}

	total := new(big.Int).Mul(amountPerRequest, big.NewInt(int64(len(requests))))

	set, err := b.Selector.SelectCoins(Eligible(unspent, fundingAddress, color), total)
	if err != nil {
		return nil, errors.Wrapf(err, "color %d", color)
	}
	if set == nil {
		return nil, errors.New("selector returned no result")
	}

	// change is derived from the coins, whatever the selector reported
	change := new(big.Int).Sub(common.Sum(set.Coins), total)
	if change.Sign() < 0 {
		return nil, errors.Errorf("selector returned coins worth %s for a target of %s", common.Sum(set.Coins), total)
	}

	tx := &common.Transaction{
		Inputs:  make([]common.Outpoint, 0, len(set.Coins)),
		Outputs: make([]common.Output, 0, len(requests)+1),
	}
	for _, coin := range set.Coins {
		tx.Inputs = append(tx.Inputs, coin.Outpoint)
	}
	if change.Sign() > 0 {
		tx.Outputs = append(tx.Outputs, common.NewOutput(change, fundingAddress, color))
	}
	for _, request := range requests {
		tx.Outputs = append(tx.Outputs, common.NewOutput(amountPerRequest, request.Address, color))
	}

	return &Result{
		Tx:     tx,
		Spent:  set.Coins,
		Total:  total,
		Change: change,
	}, nil
}

// Eligible keeps the outputs of color owned by address, dropping repeated
// outpoints. Order is preserved.
func Eligible(unspent []*common.UnspentOutput, address string, color common.Color) []*common.UnspentOutput {
	seen := make(map[common.Outpoint]struct{}, len(unspent))
	eligible := make([]*common.UnspentOutput, 0, len(unspent))
	for _, u := range unspent {
		if u == nil || u.Output.Value == nil || u.Output.Color != color || !common.SameAddress(u.Output.Address, address) {
			continue
		}
		if _, dup := seen[u.Outpoint]; dup {
			continue
		}
		seen[u.Outpoint] = struct{}{}
		eligible = append(eligible, u)
	}
	return eligible
}
