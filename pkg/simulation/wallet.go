package simulation

import (
	"context"
	"encoding/hex"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/mariusgiger/batch-disburser/pkg/coinselection"
	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/mariusgiger/batch-disburser/pkg/disburse"
	"github.com/mariusgiger/batch-disburser/pkg/signer"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	. "github.com/ahmetb/go-linq/v3"
)

// Wallet is a faucet paying out batches from a single address
type Wallet struct {
	Address string
	Color   common.Color

	ledger    *InMemoryLedger
	disburser *disburse.Disburser
	logger    *zap.Logger

	numberOfBatchesSent   int
	numberOfBatchesFailed int
	receipts              []*disburse.Receipt
}

// Stats summarizes a wallet's activity
type Stats struct {
	BatchesSent     int
	BatchesFailed   int
	AvgInputs       float64
	AvgOutputs      float64
	BatchesOnChange int
	TotalPaid       *big.Int
	Balance         *big.Int
	UTXOs           int
}

// AddressFor derives a ledger address from a key: the hex hash160 of the compressed public key
func AddressFor(s *signer.KeySigner) string {
	return "0x" + hex.EncodeToString(btcutil.Hash160(s.PublicKey().SerializeCompressed()))
}

// NewWallet creates a wallet whose address is derived from s and registers it with ledger
func NewWallet(logger *zap.Logger, ledger *InMemoryLedger, s *signer.KeySigner, color common.Color) *Wallet {
	address := AddressFor(s)
	ledger.RegisterOwner(address, s.PublicKey())

	return &Wallet{
		Address:   address,
		Color:     color,
		ledger:    ledger,
		disburser: disburse.NewDisburser(logger, ledger, s, nil),
		logger:    logger,
	}
}

// Balance sums the wallet's unspent outputs of its color
func (w *Wallet) Balance(ctx context.Context) (*big.Int, error) {
	utxos, err := w.ledger.FetchUnspent(ctx, w.Address, w.Color)
	if err != nil {
		return nil, err
	}
	return common.Sum(utxos), nil
}

// NumberOfUTXOs counts the wallet's unspent outputs of its color
func (w *Wallet) NumberOfUTXOs(ctx context.Context) (int, error) {
	utxos, err := w.ledger.FetchUnspent(ctx, w.Address, w.Color)
	if err != nil {
		return 0, err
	}
	return len(utxos), nil
}

// Deposit credits the wallet with a new output
func (w *Wallet) Deposit(value *big.Int) {
	w.ledger.AddUTXO(value, w.Address, w.Color)
}

// SendBatch pays amount to every recipient. An underfunded wallet is counted
// and reported with a nil error so a simulation can keep going.
func (w *Wallet) SendBatch(ctx context.Context, amount *big.Int, recipients []string) (*disburse.Receipt, error) {
	batch := disburse.NewBatch(w.Address, amount, w.Color, common.NewPayoutRequests(recipients...))

	receipt, err := w.disburser.Disburse(ctx, batch)
	if errors.Is(err, coinselection.ErrInsufficient) {
		w.numberOfBatchesFailed++
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	w.numberOfBatchesSent++
	w.receipts = append(w.receipts, receipt)
	return receipt, nil
}

// Stats computes the wallet's statistics against the current ledger state
func (w *Wallet) Stats(ctx context.Context) (*Stats, error) {
	balance, err := w.Balance(ctx)
	if err != nil {
		return nil, err
	}
	utxos, err := w.NumberOfUTXOs(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		BatchesSent:   w.numberOfBatchesSent,
		BatchesFailed: w.numberOfBatchesFailed,
		TotalPaid:     new(big.Int),
		Balance:       balance,
		UTXOs:         utxos,
	}
	if len(w.receipts) == 0 {
		return stats, nil
	}

	stats.AvgInputs = From(w.receipts).SelectT(func(r *disburse.Receipt) int {
		return len(r.Result.Tx.Inputs)
	}).Average()

	stats.AvgOutputs = From(w.receipts).SelectT(func(r *disburse.Receipt) int {
		return len(r.Result.Tx.Outputs)
	}).Average()

	stats.BatchesOnChange = From(w.receipts).CountWithT(func(r *disburse.Receipt) bool {
		return r.Result.HasChange()
	})

	stats.TotalPaid = From(w.receipts).AggregateWithSeedT(new(big.Int), func(acc *big.Int, r *disburse.Receipt) *big.Int {
		return acc.Add(acc, r.Result.Total)
	}).(*big.Int)

	return stats, nil
}

// PrintStats logs the wallet's statistics
func (w *Wallet) PrintStats(ctx context.Context) error {
	stats, err := w.Stats(ctx)
	if err != nil {
		return err
	}

	w.logger.Info("stats",
		zap.Int("number of batches sent", stats.BatchesSent),
		zap.Int("number of batches underfunded", stats.BatchesFailed),
		zap.Float64("avg inputs", stats.AvgInputs),
		zap.Float64("avg outputs", stats.AvgOutputs),
		zap.Int("batches with change", stats.BatchesOnChange),
		zap.Stringer("total paid", stats.TotalPaid),
		zap.Stringer("resulting balance", stats.Balance),
		zap.Int("resulting utxos", stats.UTXOs),
	)
	return nil
}
