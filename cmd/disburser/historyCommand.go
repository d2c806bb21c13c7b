package cmd

import (
	"strconv"
	"time"

	"github.com/mariusgiger/batch-disburser/pkg/journal"
	"github.com/mariusgiger/batch-disburser/pkg/utils"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// historyCommand prints the batch journal
var historyCommand = &cobra.Command{
	Use:   "history",
	Short: "Lists journaled batches",
	Long:  `Lists the batches recorded by send --journal, oldest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := viper.GetString("journal")
		if dir == "" {
			return errors.New("--journal is required")
		}

		j, err := journal.Open(dir)
		if err != nil {
			return err
		}
		defer utils.IgnoreErrorOn(logger, j.Close)

		records, err := j.List()
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"time", "batch", "tx", "faucet", "color", "amount", "recipients", "inputs", "change"})
		table.SetCaption(true, "Batches")
		for _, r := range records {
			table.Append([]string{
				r.Time.Format(time.RFC3339),
				r.BatchID.String(),
				r.TxID,
				r.FundingAddress,
				strconv.FormatUint(uint64(r.Color), 10),
				r.AmountPerRequest,
				strconv.Itoa(len(r.Recipients)),
				strconv.Itoa(len(r.Inputs)),
				r.Change,
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	historyCommand.Flags().String("journal", "", "directory of the batch journal")
	RootCmd.AddCommand(historyCommand)
}
