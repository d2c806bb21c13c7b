package disburse

import (
	"math/big"
	"testing"

	"github.com/mariusgiger/batch-disburser/pkg/coinselection"
	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	faucet = "0xfaucet"
	color  = common.Color(1)
)

func utxo(value int64, index byte) *common.UnspentOutput {
	return &common.UnspentOutput{
		Outpoint: common.Outpoint{Hash: [32]byte{index}, Index: uint32(index)},
		Output:   common.NewOutput(big.NewInt(value), faucet, color),
	}
}

func abc() []common.PayoutRequest {
	return common.NewPayoutRequests("0xA", "0xB", "0xC")
}

func assertConserved(t *testing.T, result *Result) {
	assert.Equal(t, 0, common.Sum(result.Spent).Cmp(result.Tx.OutputSum()),
		"inputs %s != outputs %s", common.Sum(result.Spent), result.Tx.OutputSum())
	for _, out := range result.Tx.Outputs {
		assert.Equal(t, 1, out.Value.Sign(), "zero or negative output %s", out)
		assert.Equal(t, color, out.Color)
	}
}

func TestShouldFailWhenBatchExceedsBalance(t *testing.T) {
	// 25 < 3 * 10
	_, err := Build(abc(), faucet, []*common.UnspentOutput{utxo(25, 0)}, big.NewInt(10), color)

	var insufficient *coinselection.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(5), insufficient.Shortfall.Int64())
	assert.True(t, errors.Is(err, coinselection.ErrInsufficientFunds))
	assert.False(t, errors.Is(err, coinselection.ErrNoFunds))
}

func TestShouldPutChangeFirst(t *testing.T) {
	result, err := Build(abc(), faucet, []*common.UnspentOutput{utxo(35, 0)}, big.NewInt(10), color)

	require.NoError(t, err)
	assertConserved(t, result)
	assert.True(t, result.HasChange())
	assert.Equal(t, []common.Output{
		common.NewOutput(big.NewInt(5), faucet, color),
		common.NewOutput(big.NewInt(10), "0xA", color),
		common.NewOutput(big.NewInt(10), "0xB", color),
		common.NewOutput(big.NewInt(10), "0xC", color),
	}, result.Tx.Outputs)
	assert.Equal(t, []common.Outpoint{utxo(35, 0).Outpoint}, result.Tx.Inputs)
}

func TestShouldOmitZeroChange(t *testing.T) {
	result, err := Build(abc(), faucet, []*common.UnspentOutput{utxo(30, 0)}, big.NewInt(10), color)

	require.NoError(t, err)
	assertConserved(t, result)
	assert.False(t, result.HasChange())
	require.Len(t, result.Tx.Outputs, 3)
	assert.Equal(t, "0xA", result.Tx.Outputs[0].Address)
	assert.Equal(t, "0xB", result.Tx.Outputs[1].Address)
	assert.Equal(t, "0xC", result.Tx.Outputs[2].Address)
}

func TestShouldReportEmptyFaucet(t *testing.T) {
	for _, unspent := range [][]*common.UnspentOutput{nil, {}} {
		_, err := Build(abc(), faucet, unspent, big.NewInt(10), color)

		var insufficient *coinselection.InsufficientFundsError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, int64(30), insufficient.Shortfall.Int64())
		assert.True(t, errors.Is(err, coinselection.ErrNoFunds))
		assert.False(t, errors.Is(err, coinselection.ErrInsufficientFunds))
		assert.Equal(t, "faucet is empty", Describe(err))
	}
}

func TestShouldReportShortfallAgainstWholeSet(t *testing.T) {
	unspent := []*common.UnspentOutput{utxo(4, 0), utxo(7, 1), utxo(9, 2)}

	_, err := Build(abc(), faucet, unspent, big.NewInt(10), color)

	var insufficient *coinselection.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(10), insufficient.Shortfall.Int64())
	assert.Equal(t, "faucet is underfunded for this batch", Describe(err))
}

func TestShouldRejectInvalidAmounts(t *testing.T) {
	unspent := []*common.UnspentOutput{utxo(100, 0)}

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-10)} {
		_, err := Build(abc(), faucet, unspent, amount, color)
		assert.True(t, errors.Is(err, ErrInvalidAmount), "amount %v", amount)
		assert.False(t, Retryable(err))
	}

	_, err := Build(nil, faucet, unspent, big.NewInt(10), color)
	assert.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestShouldCheckAmountBeforeFunds(t *testing.T) {
	_, err := Build(nil, faucet, nil, big.NewInt(10), color)

	assert.True(t, errors.Is(err, ErrInvalidAmount))
	assert.False(t, errors.Is(err, coinselection.ErrInsufficient))
}

func TestShouldKeepDuplicateRecipients(t *testing.T) {
	requests := common.NewPayoutRequests("0xA", "0xA", "0xB", "0xA")

	result, err := Build(requests, faucet, []*common.UnspentOutput{utxo(40, 0)}, big.NewInt(10), color)

	require.NoError(t, err)
	require.Len(t, result.Tx.Outputs, 4)
	for i, r := range requests {
		assert.Equal(t, r.Address, result.Tx.Outputs[i].Address)
		assert.Equal(t, int64(10), result.Tx.Outputs[i].Value.Int64())
	}
}

func TestShouldSelectFirstFitInLedgerOrder(t *testing.T) {
	unspent := []*common.UnspentOutput{utxo(8, 0), utxo(50, 1), utxo(15, 2), utxo(100, 3)}

	result, err := Build(abc(), faucet, unspent, big.NewInt(10), color)

	require.NoError(t, err)
	assertConserved(t, result)
	assert.Equal(t, []common.Outpoint{unspent[0].Outpoint, unspent[1].Outpoint}, result.Tx.Inputs)
	assert.Equal(t, int64(28), result.Change.Int64())
	assert.Equal(t, int64(28), result.Tx.Outputs[0].Value.Int64())
	assert.Equal(t, faucet, result.Tx.Outputs[0].Address)
}

func TestShouldSkipForeignAndRepeatedOutputs(t *testing.T) {
	otherColor := utxo(100, 1)
	otherColor.Output.Color = 2
	otherOwner := utxo(100, 2)
	otherOwner.Output.Address = "0xsomeoneelse"
	mixedCase := utxo(10, 3)
	mixedCase.Output.Address = "0xFAUCET"

	unspent := []*common.UnspentOutput{utxo(10, 0), utxo(10, 0), otherColor, otherOwner, mixedCase, utxo(10, 4)}

	result, err := Build(abc(), faucet, unspent, big.NewInt(10), color)

	require.NoError(t, err)
	assertConserved(t, result)
	assert.Equal(t, []common.Outpoint{unspent[0].Outpoint, mixedCase.Outpoint, unspent[5].Outpoint}, result.Tx.Inputs)
	assert.False(t, result.HasChange())
}

func TestShouldBuildIdenticalBytesForIdenticalInput(t *testing.T) {
	unspent := []*common.UnspentOutput{utxo(12, 0), utxo(12, 1), utxo(12, 2)}

	first, err := Build(abc(), faucet, unspent, big.NewInt(10), color)
	require.NoError(t, err)
	second, err := Build(abc(), faucet, unspent, big.NewInt(10), color)
	require.NoError(t, err)

	b1, err := first.Tx.Bytes()
	require.NoError(t, err)
	b2, err := second.Tx.Bytes()
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestShouldNotAliasCallerAmount(t *testing.T) {
	amount := big.NewInt(10)

	result, err := Build(abc(), faucet, []*common.UnspentOutput{utxo(35, 0)}, amount, color)
	require.NoError(t, err)
	amount.SetInt64(999)

	assertConserved(t, result)
	assert.Equal(t, int64(10), result.Tx.Outputs[1].Value.Int64())
}

func TestShouldConserveValueBeyond53Bits(t *testing.T) {
	amount, _ := new(big.Int).SetString("1000000000000000000000", 10) // 1000 tokens at 18 decimals
	balance, _ := new(big.Int).SetString("3000000000000000000001", 10)
	unspent := []*common.UnspentOutput{{
		Outpoint: common.Outpoint{Index: 7},
		Output:   common.NewOutput(balance, faucet, color),
	}}

	result, err := Build(abc(), faucet, unspent, amount, color)

	require.NoError(t, err)
	assertConserved(t, result)
	assert.Equal(t, "1", result.Change.String())
	assert.Equal(t, "3000000000000000000000", result.Total.String())
}

func TestShouldConserveValueAcrossBatchShapes(t *testing.T) {
	for n := 1; n <= 12; n++ {
		for amount := int64(1); amount <= 7; amount++ {
			var requests []common.PayoutRequest
			for i := 0; i < n; i++ {
				requests = append(requests, common.PayoutRequest{Address: "0xr"})
			}
			unspent := []*common.UnspentOutput{utxo(3, 0), utxo(5, 1), utxo(11, 2), utxo(17, 3), utxo(23, 4)}

			result, err := Build(requests, faucet, unspent, big.NewInt(amount), color)
			if int64(n)*amount > 59 {
				assert.True(t, errors.Is(err, coinselection.ErrInsufficientFunds))
				continue
			}

			require.NoError(t, err)
			assertConserved(t, result)
			expected := n
			if result.HasChange() {
				expected++
				assert.Equal(t, faucet, result.Tx.Outputs[0].Address)
			}
			assert.Len(t, result.Tx.Outputs, expected)
		}
	}
}

type fixedSelector struct {
	set *coinselection.ResultSet
}

func (s fixedSelector) SelectCoins([]*common.UnspentOutput, *big.Int) (*coinselection.ResultSet, error) {
	return s.set, nil
}

func TestShouldDeriveChangeFromSelectedCoins(t *testing.T) {
	coins := []*common.UnspentOutput{utxo(20, 0), utxo(15, 1)}
	builder := &Builder{Selector: fixedSelector{set: &coinselection.ResultSet{Coins: coins}}}

	result, err := builder.Build(abc(), faucet, coins, big.NewInt(10), color)

	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Change.Int64())
	assert.True(t, result.HasChange())
	assertConserved(t, result)
}

func TestShouldRefuseSelectionThatMissesTarget(t *testing.T) {
	coins := []*common.UnspentOutput{utxo(20, 0)}
	tests := []*coinselection.ResultSet{
		nil,
		{Coins: coins, Total: big.NewInt(30), Change: big.NewInt(0)},
	}

	for _, set := range tests {
		builder := &Builder{Selector: fixedSelector{set: set}}

		result, err := builder.Build(abc(), faucet, coins, big.NewInt(10), color)

		assert.Error(t, err)
		assert.Nil(t, result)
	}
}
