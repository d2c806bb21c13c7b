package disburse

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mariusgiger/batch-disburser/pkg/blockchain"
	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/mariusgiger/batch-disburser/pkg/journal"
	"github.com/mariusgiger/batch-disburser/pkg/signer"
	"github.com/mariusgiger/batch-disburser/pkg/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Recorder keeps an audit trail of broadcast batches
type Recorder interface {
	Record(rec *journal.Record) error
}

// Receipt describes a broadcast batch
type Receipt struct {
	BatchID uuid.UUID
	TxID    string
	Result  *Result
}

// Disburser runs fetch, build, sign and submit for one batch at a time per
// funding address. Batches from different addresses may run concurrently.
type Disburser struct {
	ledger  blockchain.Ledger
	signer  signer.Signer
	journal Recorder
	builder *Builder
	locks   *utils.Mutex
	logger  *zap.Logger
}

// NewDisburser creates a Disburser. journal may be nil.
func NewDisburser(logger *zap.Logger, ledger blockchain.Ledger, s signer.Signer, journal Recorder) *Disburser {
	return &Disburser{
		ledger:  ledger,
		signer:  s,
		journal: journal,
		builder: NewBuilder(),
		locks:   utils.NewMapMutex(),
		logger:  logger,
	}
}

// Plan fetches a fresh snapshot of the funding address and builds the
// transaction for batch without signing or submitting it
func (d *Disburser) Plan(ctx context.Context, batch *Batch) (*Result, error) {
	utxos, err := d.ledger.FetchUnspent(ctx, batch.FundingAddress, batch.Color)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch unspent outputs")
	}

	result, err := d.builder.Build(batch.Requests, batch.FundingAddress, utxos, batch.AmountPerRequest, batch.Color)
	if err != nil {
		d.logger.Warn(Describe(err),
			zap.Stringer("batch", batch.ID),
			zap.String("address", batch.FundingAddress),
			zap.Uint32("color", uint32(batch.Color)),
			zap.Int("utxos", len(utxos)),
			zap.Error(err))
		return nil, err
	}

	d.logger.Info("built transaction",
		zap.Stringer("batch", batch.ID),
		zap.Int("inputs", len(result.Tx.Inputs)),
		zap.Int("outputs", len(result.Tx.Outputs)),
		zap.Stringer("total", result.Total),
		zap.Stringer("change", result.Change))
	return result, nil
}

// Disburse pays out batch in a single transaction. Every failure is returned
// as is, a rejected submission is never patched or resubmitted here.
func (d *Disburser) Disburse(ctx context.Context, batch *Batch) (*Receipt, error) {
	key := common.NormalizeAddress(batch.FundingAddress)
	if err := d.locks.TryLockContext(ctx, key); err != nil {
		if errors.Is(err, utils.ErrLockBusy) {
			return nil, errors.Wrap(ErrFundingAddressBusy, batch.FundingAddress)
		}
		return nil, err
	}
	defer d.locks.Unlock(key)

	result, err := d.Plan(ctx, batch)
	if err != nil {
		return nil, err
	}

	signed, err := d.signer.Sign(result.Tx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}
	raw, err := signed.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize transaction")
	}

	txID, err := d.ledger.Submit(ctx, raw)
	if err != nil {
		d.logger.Warn(Describe(err), zap.Stringer("batch", batch.ID), zap.Error(err))
		return nil, errors.Wrap(err, "failed to submit transaction")
	}

	d.logger.Info("batch disbursed",
		zap.Stringer("batch", batch.ID),
		zap.String("tx", txID),
		zap.Int("recipients", len(batch.Requests)))

	receipt := &Receipt{BatchID: batch.ID, TxID: txID, Result: result}
	d.record(batch, receipt)
	return receipt, nil
}

// the transaction is already out, so a journal failure is only logged
func (d *Disburser) record(batch *Batch, receipt *Receipt) {
	if d.journal == nil {
		return
	}

	inputs := make([]string, 0, len(receipt.Result.Tx.Inputs))
	for _, in := range receipt.Result.Tx.Inputs {
		inputs = append(inputs, in.String())
	}

	err := d.journal.Record(&journal.Record{
		BatchID:          batch.ID,
		TxID:             receipt.TxID,
		FundingAddress:   batch.FundingAddress,
		Color:            batch.Color,
		AmountPerRequest: batch.AmountPerRequest.String(),
		Change:           receipt.Result.Change.String(),
		Recipients:       batch.Recipients(),
		Inputs:           inputs,
		Time:             time.Now(),
	})
	if err != nil {
		d.logger.Error("failed to journal batch", zap.Stringer("batch", batch.ID), zap.String("tx", receipt.TxID), zap.Error(err))
	}
}
