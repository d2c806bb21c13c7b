package signer

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidKey is returned if a private key cannot be loaded
	ErrInvalidKey = errors.New("invalid private key")

	// ErrWrongNetwork is returned if a WIF key belongs to another network
	ErrWrongNetwork = errors.New("key is for a different network")

	// ErrInvalidSignature is returned by Verify
	ErrInvalidSignature = errors.New("invalid signature")
)

// Signer turns an unsigned transaction into a signed one
type Signer interface {
	Sign(tx *common.Transaction) (*common.SignedTransaction, error)
}

// KeySigner signs every input with one secp256k1 key
type KeySigner struct {
	key *btcec.PrivateKey
}

var _ Signer = (*KeySigner)(nil)

// NewKeySigner creates a signer for key
func NewKeySigner(key *btcec.PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

// LoadKey reads a private key given as 32 hex bytes (with or without 0x) or as WIF.
// WIF keys must belong to net.
func LoadKey(s string, net *chaincfg.Params) (*btcec.PrivateKey, error) {
	s = strings.TrimSpace(s)
	hexKey := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(hexKey) == 2*btcec.PrivKeyBytesLen {
		raw, err := hex.DecodeString(hexKey)
		if err == nil {
			// scalar must be in [1, N-1]
			k := new(big.Int).SetBytes(raw)
			if k.Sign() == 0 || k.Cmp(btcec.S256().N) >= 0 {
				return nil, errors.Wrap(ErrInvalidKey, "private key out of range")
			}
			key, _ := btcec.PrivKeyFromBytes(raw)
			return key, nil
		}
	}

	wif, err := btcutil.DecodeWIF(s)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKey, err.Error())
	}
	if net != nil && !wif.IsForNet(net) {
		return nil, errors.Wrapf(ErrWrongNetwork, "expected %s", net.Name)
	}
	return wif.PrivKey, nil
}

// NetParams looks up network parameters by name
func NetParams(name string) (*chaincfg.Params, error) {
	for _, p := range []*chaincfg.Params{
		&chaincfg.MainNetParams,
		&chaincfg.TestNet3Params,
		&chaincfg.RegressionNetParams,
		&chaincfg.SimNetParams,
	} {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, errors.Errorf("unknown network %q", name)
}

// PublicKey returns the public half of the signing key
func (s *KeySigner) PublicKey() *btcec.PublicKey {
	return s.key.PubKey()
}

// Sign produces one DER signature per input
func (s *KeySigner) Sign(tx *common.Transaction) (*common.SignedTransaction, error) {
	if len(tx.Inputs) == 0 {
		return nil, errors.New("transaction has no inputs")
	}

	sigs := make([][]byte, 0, len(tx.Inputs))
	for i := range tx.Inputs {
		hash, err := SigHash(tx, i)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to hash input %d", i)
		}
		sigs = append(sigs, ecdsa.Sign(s.key, hash).Serialize())
	}

	return &common.SignedTransaction{Tx: tx, Signatures: sigs}, nil
}

// SigHash commits to the whole unsigned transaction and the index of the input being signed
func SigHash(tx *common.Transaction, index int) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(&buf, 0, uint64(index)); err != nil {
		return nil, err
	}
	return chainhash.DoubleHashB(buf.Bytes()), nil
}

// Verify checks every input signature of signed against pub
func Verify(signed *common.SignedTransaction, pub *btcec.PublicKey) error {
	if len(signed.Signatures) != len(signed.Tx.Inputs) {
		return errors.Wrapf(ErrInvalidSignature, "have %d signatures for %d inputs", len(signed.Signatures), len(signed.Tx.Inputs))
	}
	for i := range signed.Signatures {
		if err := VerifyInput(signed, i, pub); err != nil {
			return err
		}
	}
	return nil
}

// VerifyInput checks the signature of a single input
func VerifyInput(signed *common.SignedTransaction, index int, pub *btcec.PublicKey) error {
	if index < 0 || index >= len(signed.Signatures) {
		return errors.Wrapf(ErrInvalidSignature, "no signature for input %d", index)
	}
	sig, err := ecdsa.ParseDERSignature(signed.Signatures[index])
	if err != nil {
		return errors.Wrapf(ErrInvalidSignature, "input %d: %v", index, err)
	}
	hash, err := SigHash(signed.Tx, index)
	if err != nil {
		return err
	}
	if !sig.Verify(hash, pub) {
		return errors.Wrapf(ErrInvalidSignature, "input %d", index)
	}
	return nil
}
