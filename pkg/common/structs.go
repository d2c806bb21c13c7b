package common

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
)

// Color identifies a fungible asset class on the ledger
type Color uint32

// Outpoint references an output of a previous transaction
type Outpoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// RawOutpointSize is the length of the packed outpoint form: 32 byte hash followed by a one byte index
const RawOutpointSize = chainhash.HashSize + 1

// OutpointFromRaw decodes the packed hex form of an outpoint
func OutpointFromRaw(s string) (Outpoint, error) {
	raw, err := hex.DecodeString(strip0x(s))
	if err != nil {
		return Outpoint{}, errors.Wrap(err, "failed to decode outpoint")
	}
	if len(raw) != RawOutpointSize {
		return Outpoint{}, errors.Errorf("outpoint must be %d bytes, got %d", RawOutpointSize, len(raw))
	}

	var o Outpoint
	copy(o.Hash[:], raw[:chainhash.HashSize])
	o.Index = uint32(raw[chainhash.HashSize])
	return o, nil
}

// HashFromHex parses a 32 byte hex transaction id. The bytes are taken in the
// order given, unlike chainhash.NewHashFromStr which reverses them.
func HashFromHex(s string) (chainhash.Hash, error) {
	var h chainhash.Hash
	raw, err := hex.DecodeString(strip0x(s))
	if err != nil {
		return h, errors.Wrap(err, "failed to decode hash")
	}
	if len(raw) != chainhash.HashSize {
		return h, errors.Errorf("hash must be %d bytes, got %d", chainhash.HashSize, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// HashHex formats a hash the way HashFromHex reads it
func HashHex(h chainhash.Hash) string {
	return "0x" + hex.EncodeToString(h[:])
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", HashHex(o.Hash), o.Index)
}

// Output is an asset destination
type Output struct {
	Value   *big.Int
	Address string
	Color   Color
}

// NewOutput copies value so the output never aliases the caller's integer
func NewOutput(value *big.Int, address string, color Color) Output {
	return Output{
		Value:   new(big.Int).Set(value),
		Address: address,
		Color:   color,
	}
}

func (o Output) String() string {
	return fmt.Sprintf("%s -> %s (color %d)", o.Value, o.Address, o.Color)
}

// UnspentOutput represents an unspent transaction output
type UnspentOutput struct {
	Outpoint Outpoint
	Output   Output
}

// PayoutRequest is one recipient of one unit of disbursement
type PayoutRequest struct {
	Address string
}

// NewPayoutRequests wraps plain addresses, keeping their order
func NewPayoutRequests(addresses ...string) []PayoutRequest {
	requests := make([]PayoutRequest, 0, len(addresses))
	for _, a := range addresses {
		requests = append(requests, PayoutRequest{Address: a})
	}
	return requests
}

// NormalizeAddress is the canonical form of a ledger address: lower case, without 0x
func NormalizeAddress(address string) string {
	return strings.ToLower(strip0x(address))
}

// SameAddress compares ledger addresses ignoring hex letter case
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}

func strip0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}
