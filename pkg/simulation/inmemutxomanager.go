package simulation

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/mariusgiger/batch-disburser/pkg/blockchain"
	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/mariusgiger/batch-disburser/pkg/signer"
)

// rejection code used for every refused transaction, mirroring geth's generic -32000
const codeRejected = -32000

// InMemoryLedger is a blockchain.Ledger that keeps its unspent set in memory.
// Outputs are returned in the order they were created. Submitted transactions
// are validated and applied atomically.
type InMemoryLedger struct {
	mu      sync.Mutex
	utxos   []*common.UnspentOutput
	owners  map[string]*btcec.PublicKey
	minted  uint64
	applied int
}

// NewInMemoryLedger creates an empty ledger
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		owners: make(map[string]*btcec.PublicKey),
	}
}

// RegisterOwner makes the ledger check input signatures of address against pub.
// Inputs of unregistered addresses are accepted unsigned.
func (m *InMemoryLedger) RegisterOwner(address string, pub *btcec.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[common.NormalizeAddress(address)] = pub
}

// AddUTXO mints a new output out of thin air, the way a deposit would appear
func (m *InMemoryLedger) AddUTXO(value *big.Int, address string, color common.Color) common.Outpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], m.minted)
	m.minted++

	outpoint := common.Outpoint{Hash: chainhash.DoubleHashH(append([]byte("deposit"), seed[:]...)), Index: 0}
	m.utxos = append(m.utxos, &common.UnspentOutput{
		Outpoint: outpoint,
		Output:   common.NewOutput(value, address, color),
	})
	return outpoint
}

// FetchUnspent implements blockchain.Ledger
func (m *InMemoryLedger) FetchUnspent(ctx context.Context, address string, color common.Color) ([]*common.UnspentOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, &blockchain.UnavailableError{Method: blockchain.MethodUnspent, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	utxos := make([]*common.UnspentOutput, 0)
	for _, u := range m.utxos {
		if u.Output.Color == color && common.SameAddress(u.Output.Address, address) {
			utxos = append(utxos, &common.UnspentOutput{
				Outpoint: u.Outpoint,
				Output:   common.NewOutput(u.Output.Value, u.Output.Address, u.Output.Color),
			})
		}
	}
	return utxos, nil
}

// Submit implements blockchain.Ledger
func (m *InMemoryLedger) Submit(ctx context.Context, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &blockchain.UnavailableError{Method: blockchain.MethodSendRawTransaction, Err: err}
	}

	signed, err := common.ParseSignedTransaction(raw)
	if err != nil {
		return "", reject("invalid transaction: %v", err)
	}
	hash, err := signed.Tx.TxHash()
	if err != nil {
		return "", reject("invalid transaction: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	spent, err := m.validate(signed)
	if err != nil {
		return "", err
	}

	kept := make([]*common.UnspentOutput, 0, len(m.utxos)-len(spent)+len(signed.Tx.Outputs))
	for i, u := range m.utxos {
		if _, ok := spent[i]; !ok {
			kept = append(kept, u)
		}
	}
	for i, out := range signed.Tx.Outputs {
		kept = append(kept, &common.UnspentOutput{
			Outpoint: common.Outpoint{Hash: hash, Index: uint32(i)},
			Output:   common.NewOutput(out.Value, out.Address, out.Color),
		})
	}
	m.utxos = kept
	m.applied++

	return common.HashHex(hash), nil
}

// validate returns the positions of the spent outputs in m.utxos
func (m *InMemoryLedger) validate(signed *common.SignedTransaction) (map[int]struct{}, error) {
	tx := signed.Tx
	if len(tx.Inputs) == 0 {
		return nil, reject("transaction has no inputs")
	}

	in := make(map[common.Color]*big.Int)
	spent := make(map[int]struct{}, len(tx.Inputs))
	for i, outpoint := range tx.Inputs {
		pos := m.find(outpoint)
		if pos < 0 {
			return nil, reject("input %s already spent or unknown", outpoint)
		}
		if _, ok := spent[pos]; ok {
			return nil, reject("input %s spent twice", outpoint)
		}
		spent[pos] = struct{}{}

		u := m.utxos[pos]
		if pub, ok := m.owners[common.NormalizeAddress(u.Output.Address)]; ok {
			if err := signer.VerifyInput(signed, i, pub); err != nil {
				return nil, reject("%v", err)
			}
		}
		add(in, u.Output.Color, u.Output.Value)
	}

	out := make(map[common.Color]*big.Int)
	for _, o := range tx.Outputs {
		if o.Value.Sign() <= 0 {
			return nil, reject("output to %s has no value", o.Address)
		}
		add(out, o.Color, o.Value)
	}

	if len(in) != len(out) {
		return nil, reject("inputs and outputs carry different colors")
	}
	for color, sum := range in {
		if o, ok := out[color]; !ok || o.Cmp(sum) != 0 {
			return nil, reject("color %d is not conserved: in %s, out %s", color, sum, o)
		}
	}
	return spent, nil
}

func (m *InMemoryLedger) find(o common.Outpoint) int {
	for i, u := range m.utxos {
		if u.Outpoint == o {
			return i
		}
	}
	return -1
}

// Applied counts accepted transactions
func (m *InMemoryLedger) Applied() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied
}

func add(sums map[common.Color]*big.Int, color common.Color, v *big.Int) {
	s, ok := sums[color]
	if !ok {
		s = new(big.Int)
		sums[color] = s
	}
	s.Add(s, v)
}

func reject(format string, args ...interface{}) error {
	return &blockchain.RejectedError{Code: codeRejected, Reason: fmt.Sprintf(format, args...)}
}
