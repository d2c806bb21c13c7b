package cmd

import (
	"math/big"

	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/mariusgiger/batch-disburser/pkg/simulation"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// simCommand runs a disbursement simulation against an in-memory ledger
var simCommand = &cobra.Command{
	Use:   "sim",
	Short: "Runs disbursement simulation",
	Long:  `Runs a sequence of randomly sized batches from one faucet against an in-memory ledger and logs statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(viper.GetString("amount"), 0)
		if err != nil {
			return err
		}

		deposits := []*big.Int{}
		if file := viper.GetString("deposits"); file != "" {
			deposits, err = simulation.ReadDeposits(file)
			if err != nil {
				return err
			}
		} else {
			initial, err := parseAmount(viper.GetString("initial"), 0)
			if err != nil {
				return err
			}
			deposits = append(deposits, initial)
		}

		sim, err := simulation.NewSimulation(logger, simulation.Config{
			Deposits:    deposits,
			Batches:     viper.GetInt("batches"),
			MaxRequests: viper.GetInt("max-requests"),
			Amount:      amount,
			Color:       common.Color(viper.GetUint32("color")),
			Seed:        viper.GetInt64("seed"),
		})
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		_, err = sim.Run(ctx)
		return err
	},
}

func init() {
	simCommand.Flags().String("amount", "1000", "amount per request in base units")
	simCommand.Flags().Uint32("color", 0, "asset color")
	simCommand.Flags().String("deposits", "", "csv file whose first column lists the faucet's deposits")
	simCommand.Flags().String("initial", "1000000", "single deposit used when --deposits is not given")
	simCommand.Flags().Int("batches", 1000, "number of batches")
	simCommand.Flags().Int("max-requests", 20, "largest batch size")
	simCommand.Flags().Int64("seed", 1, "seed of the batch size generator")
	RootCmd.AddCommand(simCommand)
}
