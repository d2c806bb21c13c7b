package common

import (
	"bytes"
	"encoding/hex"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

// protocol version handed to the wire varint helpers, which ignore it
const pver = 0

// Transaction spends Inputs and creates Outputs. The order of both is significant.
type Transaction struct {
	Inputs  []Outpoint
	Outputs []Output
}

// Serialize writes the canonical encoding of the unsigned transaction:
//
//	varint(len(inputs))  { hash[32] varint(index) }
//	varint(len(outputs)) { varbytes(value) varstring(address) varint(color) }
//
// Values are unsigned big-endian with no leading zero bytes.
func (tx *Transaction) Serialize(w io.Writer) error {
	if err := wire.WriteVarInt(w, pver, uint64(len(tx.Inputs))); err != nil {
		return err
	}
	for _, in := range tx.Inputs {
		if _, err := w.Write(in.Hash[:]); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, pver, uint64(in.Index)); err != nil {
			return err
		}
	}

	if err := wire.WriteVarInt(w, pver, uint64(len(tx.Outputs))); err != nil {
		return err
	}
	for _, out := range tx.Outputs {
		if out.Value == nil || out.Value.Sign() < 0 {
			return errors.Wrapf(ErrInvalidValue, "output to %s", out.Address)
		}
		if err := wire.WriteVarBytes(w, pver, out.Value.Bytes()); err != nil {
			return err
		}
		if err := wire.WriteVarString(w, pver, out.Address); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, pver, uint64(out.Color)); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the canonical encoding
func (tx *Transaction) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TxHash is the double sha256 of the canonical encoding
func (tx *Transaction) TxHash() (chainhash.Hash, error) {
	b, err := tx.Bytes()
	if err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.DoubleHashH(b), nil
}

// OutputSum adds up all output values
func (tx *Transaction) OutputSum() *big.Int {
	return SumOutputs(tx.Outputs)
}

// SignedTransaction carries one signature per input, in input order
type SignedTransaction struct {
	Tx         *Transaction
	Signatures [][]byte
}

// Serialize writes the unsigned encoding followed by varint(len(signatures)) and one varbytes per signature
func (s *SignedTransaction) Serialize(w io.Writer) error {
	if s.Tx == nil {
		return errors.New("signed transaction has no body")
	}
	if len(s.Signatures) != len(s.Tx.Inputs) {
		return errors.Errorf("have %d signatures for %d inputs", len(s.Signatures), len(s.Tx.Inputs))
	}
	if err := s.Tx.Serialize(w); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, pver, uint64(len(s.Signatures))); err != nil {
		return err
	}
	for _, sig := range s.Signatures {
		if err := wire.WriteVarBytes(w, pver, sig); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the signed encoding
func (s *SignedTransaction) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hex returns the 0x-prefixed signed encoding, as expected by eth_sendRawTransaction
func (s *SignedTransaction) Hex() (string, error) {
	b, err := s.Bytes()
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}

// limits applied while decoding, so a malformed length prefix cannot force a huge allocation
const (
	maxTxInputs   = 1 << 12
	maxTxOutputs  = 1 << 14
	maxValueBytes = 64
	maxSigBytes   = 128
)

// Deserialize reads the canonical encoding written by Serialize
func (tx *Transaction) Deserialize(r io.Reader) error {
	count, err := wire.ReadVarInt(r, pver)
	if err != nil {
		return errors.Wrap(err, "failed to read input count")
	}
	if count > maxTxInputs {
		return errors.Errorf("too many inputs: %d", count)
	}
	tx.Inputs = make([]Outpoint, 0, count)
	for i := uint64(0); i < count; i++ {
		var in Outpoint
		if _, err := io.ReadFull(r, in.Hash[:]); err != nil {
			return errors.Wrapf(err, "failed to read input %d", i)
		}
		index, err := wire.ReadVarInt(r, pver)
		if err != nil {
			return errors.Wrapf(err, "failed to read input %d", i)
		}
		if index > 0xffffffff {
			return errors.Errorf("input %d index %d out of range", i, index)
		}
		in.Index = uint32(index)
		tx.Inputs = append(tx.Inputs, in)
	}

	count, err = wire.ReadVarInt(r, pver)
	if err != nil {
		return errors.Wrap(err, "failed to read output count")
	}
	if count > maxTxOutputs {
		return errors.Errorf("too many outputs: %d", count)
	}
	tx.Outputs = make([]Output, 0, count)
	for i := uint64(0); i < count; i++ {
		value, err := wire.ReadVarBytes(r, pver, maxValueBytes, "value")
		if err != nil {
			return errors.Wrapf(err, "failed to read output %d", i)
		}
		address, err := wire.ReadVarString(r, pver)
		if err != nil {
			return errors.Wrapf(err, "failed to read output %d", i)
		}
		color, err := wire.ReadVarInt(r, pver)
		if err != nil {
			return errors.Wrapf(err, "failed to read output %d", i)
		}
		if color > 0xffffffff {
			return errors.Errorf("output %d color %d out of range", i, color)
		}
		tx.Outputs = append(tx.Outputs, Output{
			Value:   new(big.Int).SetBytes(value),
			Address: address,
			Color:   Color(color),
		})
	}
	return nil
}

// Deserialize reads the encoding written by Serialize
func (s *SignedTransaction) Deserialize(r io.Reader) error {
	s.Tx = &Transaction{}
	if err := s.Tx.Deserialize(r); err != nil {
		return err
	}

	count, err := wire.ReadVarInt(r, pver)
	if err != nil {
		return errors.Wrap(err, "failed to read signature count")
	}
	if count != uint64(len(s.Tx.Inputs)) {
		return errors.Errorf("have %d signatures for %d inputs", count, len(s.Tx.Inputs))
	}
	s.Signatures = make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		sig, err := wire.ReadVarBytes(r, pver, maxSigBytes, "signature")
		if err != nil {
			return errors.Wrapf(err, "failed to read signature %d", i)
		}
		s.Signatures = append(s.Signatures, sig)
	}
	return nil
}

// ParseSignedTransaction decodes raw signed bytes, rejecting trailing data
func ParseSignedTransaction(raw []byte) (*SignedTransaction, error) {
	r := bytes.NewReader(raw)
	var s SignedTransaction
	if err := s.Deserialize(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes", r.Len())
	}
	return &s, nil
}
