package disburse

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/mariusgiger/batch-disburser/pkg/blockchain"
	"github.com/mariusgiger/batch-disburser/pkg/coinselection"
	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/mariusgiger/batch-disburser/pkg/disburse/mocks"
	"github.com/mariusgiger/batch-disburser/pkg/journal"
	"github.com/mariusgiger/batch-disburser/pkg/utils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	ledger    *mocks.MockLedger
	signer    *mocks.MockSigner
	journal   *mocks.MockRecorder
	disburser *Disburser
}

func newFixture(t *testing.T) *fixture {
	ctl := gomock.NewController(t)
	f := &fixture{
		ledger:  mocks.NewMockLedger(ctl),
		signer:  mocks.NewMockSigner(ctl),
		journal: mocks.NewMockRecorder(ctl),
	}
	f.disburser = NewDisburser(zap.NewNop(), f.ledger, f.signer, f.journal)
	f.disburser.locks = utils.NewCustomizedMapMutex(2, float64(time.Millisecond), float64(time.Millisecond), 1, 0)
	return f
}

func fakeSign(tx *common.Transaction) (*common.SignedTransaction, error) {
	sigs := make([][]byte, len(tx.Inputs))
	for i := range sigs {
		sigs[i] = []byte{0x30, byte(i)}
	}
	return &common.SignedTransaction{Tx: tx, Signatures: sigs}, nil
}

func testBatch() *Batch {
	return NewBatch(faucet, big.NewInt(10), color, abc())
}

func TestShouldFetchBuildSignSubmitAndRecord(t *testing.T) {
	f := newFixture(t)
	batch := testBatch()
	unspent := []*common.UnspentOutput{utxo(20, 0), utxo(20, 1)}
	var submitted []byte

	gomock.InOrder(
		f.ledger.EXPECT().FetchUnspent(gomock.Any(), faucet, color).Return(unspent, nil),
		f.signer.EXPECT().Sign(gomock.Any()).DoAndReturn(fakeSign),
		f.ledger.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, raw []byte) (string, error) {
			submitted = raw
			return "0xfeed", nil
		}),
		f.journal.EXPECT().Record(gomock.Any()).DoAndReturn(func(rec *journal.Record) error {
			assert.Equal(t, batch.ID, rec.BatchID)
			assert.Equal(t, "0xfeed", rec.TxID)
			assert.Equal(t, "10", rec.Change)
			assert.Equal(t, "10", rec.AmountPerRequest)
			assert.Equal(t, []string{"0xA", "0xB", "0xC"}, rec.Recipients)
			assert.Len(t, rec.Inputs, 2)
			return nil
		}),
	)

	receipt, err := f.disburser.Disburse(context.Background(), batch)

	require.NoError(t, err)
	assert.Equal(t, "0xfeed", receipt.TxID)
	assert.Equal(t, batch.ID, receipt.BatchID)
	assertConserved(t, receipt.Result)

	expected, err := fakeSign(receipt.Result.Tx)
	require.NoError(t, err)
	raw, err := expected.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, submitted)
}

func TestShouldSurfaceRejectionWithoutRecording(t *testing.T) {
	f := newFixture(t)

	f.ledger.EXPECT().FetchUnspent(gomock.Any(), faucet, color).Return([]*common.UnspentOutput{utxo(30, 0)}, nil)
	f.signer.EXPECT().Sign(gomock.Any()).DoAndReturn(fakeSign)
	f.ledger.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("", &blockchain.RejectedError{Code: -32000, Reason: "input already spent"})

	_, err := f.disburser.Disburse(context.Background(), testBatch())

	var rejection *blockchain.RejectedError
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, "input already spent", rejection.Reason)
	assert.True(t, Retryable(err))
	assert.Contains(t, Describe(err), "rejected")
}

func TestShouldNotSignWhenLedgerIsUnavailable(t *testing.T) {
	f := newFixture(t)
	cause := &blockchain.UnavailableError{Method: blockchain.MethodUnspent, Err: context.DeadlineExceeded}

	f.ledger.EXPECT().FetchUnspent(gomock.Any(), faucet, color).Return(nil, cause)

	_, err := f.disburser.Disburse(context.Background(), testBatch())

	assert.True(t, errors.Is(err, blockchain.ErrLedgerUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, Retryable(err))
	assert.Equal(t, "ledger unavailable", Describe(err))
}

func TestShouldNotSignWhenFundsAreShort(t *testing.T) {
	f := newFixture(t)

	f.ledger.EXPECT().FetchUnspent(gomock.Any(), faucet, color).Return([]*common.UnspentOutput{utxo(25, 0)}, nil)

	_, err := f.disburser.Disburse(context.Background(), testBatch())

	assert.True(t, errors.Is(err, coinselection.ErrInsufficientFunds))
	assert.False(t, Retryable(err))
}

func TestShouldStillReturnReceiptWhenJournalFails(t *testing.T) {
	f := newFixture(t)

	f.ledger.EXPECT().FetchUnspent(gomock.Any(), faucet, color).Return([]*common.UnspentOutput{utxo(30, 0)}, nil)
	f.signer.EXPECT().Sign(gomock.Any()).DoAndReturn(fakeSign)
	f.ledger.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("0xbeef", nil)
	f.journal.EXPECT().Record(gomock.Any()).Return(errors.New("disk full"))

	receipt, err := f.disburser.Disburse(context.Background(), testBatch())

	require.NoError(t, err)
	assert.Equal(t, "0xbeef", receipt.TxID)
}

func TestShouldWorkWithoutJournal(t *testing.T) {
	f := newFixture(t)
	f.disburser.journal = nil

	f.ledger.EXPECT().FetchUnspent(gomock.Any(), faucet, color).Return([]*common.UnspentOutput{utxo(30, 0)}, nil)
	f.signer.EXPECT().Sign(gomock.Any()).DoAndReturn(fakeSign)
	f.ledger.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("0xbeef", nil)

	_, err := f.disburser.Disburse(context.Background(), testBatch())
	require.NoError(t, err)
}

func TestShouldRefuseConcurrentBatchFromSameAddress(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.disburser.locks.TryLock(common.NormalizeAddress(faucet)))

	_, err := f.disburser.Disburse(context.Background(), NewBatch("0xFAUCET", big.NewInt(10), color, abc()))

	assert.True(t, errors.Is(err, ErrFundingAddressBusy))
	assert.True(t, Retryable(err))
}

func TestShouldShareLockAcrossAddressSpellings(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.disburser.locks.TryLock(common.NormalizeAddress("0xFAUCET")))

	_, err := f.disburser.Disburse(context.Background(), NewBatch("faucet", big.NewInt(10), color, abc()))

	assert.True(t, errors.Is(err, ErrFundingAddressBusy))
}

func TestShouldStopWaitingForBusyAddressWhenCancelled(t *testing.T) {
	f := newFixture(t)
	f.disburser.locks = utils.NewMapMutex()
	require.True(t, f.disburser.locks.TryLock(common.NormalizeAddress(faucet)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()

	_, err := f.disburser.Disburse(ctx, testBatch())

	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrFundingAddressBusy))
	assert.Less(t, time.Since(start), time.Second)
}

func TestShouldReleaseAddressAfterFailure(t *testing.T) {
	f := newFixture(t)

	f.ledger.EXPECT().FetchUnspent(gomock.Any(), faucet, color).Return(nil, nil).Times(2)

	for i := 0; i < 2; i++ {
		_, err := f.disburser.Disburse(context.Background(), testBatch())
		assert.True(t, errors.Is(err, coinselection.ErrNoFunds))
	}
}

func TestShouldPlanWithoutSigningOrSubmitting(t *testing.T) {
	f := newFixture(t)

	f.ledger.EXPECT().FetchUnspent(gomock.Any(), faucet, color).Return([]*common.UnspentOutput{utxo(35, 0)}, nil)

	result, err := f.disburser.Plan(context.Background(), testBatch())

	require.NoError(t, err)
	assert.Len(t, result.Tx.Outputs, 4)
	assert.Equal(t, int64(5), result.Change.Int64())
}

func TestShouldClassifyRetryableErrors(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{errors.Wrap(&blockchain.UnavailableError{Method: "m", Err: errors.New("eof")}, "fetch"), true},
		{errors.Wrap(&blockchain.RejectedError{Reason: "double spend"}, "submit"), true},
		{errors.Wrap(ErrFundingAddressBusy, "0x"), true},
		{errors.Wrap(ErrInvalidAmount, "no requests"), false},
		{errors.Wrap(coinselection.ErrNoFunds, "color 1"), false},
		{errors.New("signer broke"), false},
	}

	for _, test := range tests {
		assert.Equal(t, test.retryable, Retryable(test.err), test.err.Error())
	}
}
