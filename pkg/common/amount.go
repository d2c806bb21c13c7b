package common

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidValue is returned when an amount cannot be decoded
	ErrInvalidValue = errors.New("invalid amount")
)

// ParseAmount decodes a non-negative integer given in decimal or 0x-prefixed hex
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}

	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidValue, "cannot parse %q", s)
	}
	if v.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidValue, "negative amount %s", v)
	}
	return v, nil
}

// Amount decodes from a JSON string or a bare JSON integer without ever
// passing through float64
type Amount struct {
	big.Int
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}

	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	a.Set(v)
	return nil
}

// MarshalJSON writes the amount as a decimal string
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// Sum adds up the values of the given outputs
func Sum(utxos []*UnspentOutput) *big.Int {
	total := new(big.Int)
	for _, u := range utxos {
		if u.Output.Value != nil {
			total.Add(total, u.Output.Value)
		}
	}
	return total
}

// SumOutputs adds up output values
func SumOutputs(outputs []Output) *big.Int {
	total := new(big.Int)
	for _, o := range outputs {
		if o.Value != nil {
			total.Add(total, o.Value)
		}
	}
	return total
}
