package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mariusgiger/batch-disburser/pkg/disburse"
	"github.com/mariusgiger/batch-disburser/pkg/journal"
	"github.com/mariusgiger/batch-disburser/pkg/signer"
	"github.com/mariusgiger/batch-disburser/pkg/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// sendCommand pays out a batch
var sendCommand = &cobra.Command{
	Use:   "send [address...]",
	Short: "Pays out a batch",
	Long: `Pays out a batch in a single transaction. Retryable failures such as a
rejected double spend or an unreachable node are retried from a fresh ledger
snapshot, up to --attempts times.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := batchFromFlags(cmd, args)
		if err != nil {
			return err
		}

		net, err := signer.NetParams(viper.GetString("network"))
		if err != nil {
			return err
		}
		key, err := signer.LoadKey(viper.GetString("key"), net)
		if err != nil {
			return err
		}

		var recorder disburse.Recorder
		if dir := viper.GetString("journal"); dir != "" {
			j, err := journal.Open(dir)
			if err != nil {
				return err
			}
			defer utils.IgnoreErrorOn(logger, j.Close)
			recorder = j
		}

		ctx, cancel := signalContext()
		defer cancel()

		d := disburse.NewDisburser(logger, newClient(), signer.NewKeySigner(key), recorder)
		receipt, err := sendWithRetry(ctx, d, batch, viper.GetInt("attempts"), viper.GetDuration("retry-delay"))
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), receipt.TxID)
		return nil
	},
}

type batchSender interface {
	Disburse(ctx context.Context, batch *disburse.Batch) (*disburse.Receipt, error)
}

// sendWithRetry rebuilds the batch from scratch on every attempt, a rejected
// transaction is never resubmitted
func sendWithRetry(ctx context.Context, d batchSender, batch *disburse.Batch, attempts int, delay time.Duration) (*disburse.Receipt, error) {
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		receipt, err := d.Disburse(ctx, batch)
		if err == nil {
			return receipt, nil
		}
		if !disburse.Retryable(err) || attempt >= attempts {
			return nil, err
		}

		logger.Warn("retrying batch",
			zap.Stringer("batch", batch.ID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("reason", disburse.Describe(err)))

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "gave up retrying")
		case <-time.After(delay):
		}
	}
}

func init() {
	addBatchFlags(sendCommand)
	sendCommand.Flags().String("key", "", "faucet private key, hex or WIF")
	sendCommand.Flags().String("network", "mainnet", "network of a WIF key: mainnet, testnet3, regtest or simnet")
	sendCommand.Flags().String("journal", "", "directory of the batch journal, empty disables it")
	sendCommand.Flags().Int("attempts", 3, "attempts before giving up on a retryable failure")
	sendCommand.Flags().Duration("retry-delay", 2*time.Second, "wait between attempts")

	RootCmd.AddCommand(sendCommand)
}
