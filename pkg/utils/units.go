package utils

import (
	"math/big"

	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ToBaseUnits converts an amount of whole tokens into base units, e.g.
// ToBaseUnits("1.5", 18) is 1500000000000000000. The result must be integral.
func ToBaseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errors.Wrapf(common.ErrInvalidValue, "cannot parse %q", amount)
	}

	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, errors.Wrapf(common.ErrInvalidValue, "%s has more than %d decimals", amount, decimals)
	}
	if scaled.Sign() < 0 {
		return nil, errors.Wrapf(common.ErrInvalidValue, "negative amount %s", amount)
	}
	return scaled.BigInt(), nil
}

// FromBaseUnits formats base units as whole tokens
func FromBaseUnits(value *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(value, -decimals).String()
}
