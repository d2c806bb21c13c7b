package coinselection

import (
	"math/big"

	"github.com/mariusgiger/batch-disburser/pkg/common"
)

// FirstFit is a Strategy that walks the coins in the order given and takes
// every one of them until their total value reaches the target. It never
// sorts, shuffles or skips, so the same input always yields the same set.
type FirstFit struct{}

// SelectCoins will attempt to select coins using the algorithm described
// in the FirstFit struct.
func (FirstFit) SelectCoins(utxos []*common.UnspentOutput, target *big.Int) (*ResultSet, error) {
	total := new(big.Int)
	if len(utxos) == 0 {
		return nil, newInsufficientFundsError(target, total)
	}

	set := &ResultSet{}
	for _, utxo := range utxos {
		set.Coins = append(set.Coins, utxo)
		total.Add(total, utxo.Output.Value)
		if total.Cmp(target) >= 0 {
			set.Total = total
			set.Change = new(big.Int).Sub(total, target)
			return set, nil
		}
	}

	return nil, newInsufficientFundsError(target, total)
}
