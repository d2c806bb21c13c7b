package simulation

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"math/rand"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/mariusgiger/batch-disburser/pkg/signer"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config describes a simulation run
type Config struct {
	// Deposits are credited to the faucet before the first batch, in order
	Deposits []*big.Int
	// Batches is the number of batches to pay out
	Batches int
	// MaxRequests bounds the size of a batch, sizes are drawn from [1, MaxRequests]
	MaxRequests int
	Amount      *big.Int
	Color       common.Color
	Seed        int64
}

// Simulation pays out a sequence of randomly sized batches from one faucet
// against an in-memory ledger
type Simulation struct {
	cfg    Config
	ledger *InMemoryLedger
	wallet *Wallet
	logger *zap.Logger
	rand   *rand.Rand
}

// NewSimulation creates a simulation with a fresh faucet key
func NewSimulation(logger *zap.Logger, cfg Config) (*Simulation, error) {
	if cfg.Amount == nil || cfg.Amount.Sign() <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if cfg.MaxRequests < 1 {
		return nil, errors.New("batches need at least one request")
	}

	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate faucet key")
	}

	ledger := NewInMemoryLedger()
	return &Simulation{
		cfg:    cfg,
		ledger: ledger,
		wallet: NewWallet(logger, ledger, signer.NewKeySigner(key), cfg.Color),
		logger: logger,
		rand:   rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Wallet returns the faucet
func (s *Simulation) Wallet() *Wallet {
	return s.wallet
}

// Run credits the deposits, pays out every batch and returns the faucet's statistics
func (s *Simulation) Run(ctx context.Context) (*Stats, error) {
	//Setup
	for _, d := range s.cfg.Deposits {
		s.wallet.Deposit(d)
	}

	//Run
	recipient := 0
	for i := 0; i < s.cfg.Batches; i++ {
		n := 1 + s.rand.Intn(s.cfg.MaxRequests)
		recipients := make([]string, 0, n)
		for j := 0; j < n; j++ {
			recipients = append(recipients, fmt.Sprintf("0x%040x", recipient))
			recipient++
		}

		if _, err := s.wallet.SendBatch(ctx, s.cfg.Amount, recipients); err != nil {
			return nil, errors.Wrapf(err, "batch %d", i)
		}
	}

	//Stats
	if err := s.wallet.PrintStats(ctx); err != nil {
		return nil, err
	}
	return s.wallet.Stats(ctx)
}

// ReadDeposits reads deposit values from the first column of a csv file
func ReadDeposits(file string) ([]*big.Int, error) {
	csvFile, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", file)
	}
	defer csvFile.Close()

	return readDeposits(csvFile)
}

func readDeposits(r io.Reader) ([]*big.Int, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1

	var deposits []*big.Int
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			continue
		}

		value, err := common.ParseAmount(record[0])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if value.Sign() == 0 {
			continue
		}
		deposits = append(deposits, value)
	}

	return deposits, nil
}
