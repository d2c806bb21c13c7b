package cmd

import (
	"fmt"
	"strconv"

	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/mariusgiger/batch-disburser/pkg/disburse"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// planCommand is a dry run of send
var planCommand = &cobra.Command{
	Use:   "plan [address...]",
	Short: "Shows the transaction a batch would produce",
	Long:  `Fetches the faucet's unspent outputs and builds the batch transaction without signing or submitting it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := batchFromFlags(cmd, args)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		d := disburse.NewDisburser(logger, newClient(), nil, nil)
		result, err := d.Plan(ctx, batch)
		if err != nil {
			return err
		}

		decimals := viper.GetInt32("decimals")
		out := cmd.OutOrStdout()

		inputTable := tablewriter.NewWriter(out)
		inputTable.SetHeader([]string{"outpoint", "value"})
		inputTable.SetCaption(true, "Inputs")
		for _, u := range result.Spent {
			inputTable.Append([]string{u.Outpoint.String(), formatValue(u.Output.Value, decimals)})
		}
		inputTable.SetFooter([]string{"total", formatValue(common.Sum(result.Spent), decimals)})
		inputTable.Render()
		fmt.Fprintln(out)

		outputTable := tablewriter.NewWriter(out)
		outputTable.SetHeader([]string{"#", "address", "value", "color", "kind"})
		outputTable.SetCaption(true, "Outputs")
		for i, o := range result.Tx.Outputs {
			kind := "payout"
			if i == 0 && result.HasChange() {
				kind = "change"
			}
			outputTable.Append([]string{strconv.Itoa(i), o.Address, formatValue(o.Value, decimals), strconv.FormatUint(uint64(o.Color), 10), kind})
		}
		outputTable.Render()
		fmt.Fprintln(out)

		fmt.Fprintf(out, "batch %s: %d requests to %d recipients, total %s, change %s\n",
			batch.ID, len(batch.Requests), distinctRecipients(batch.Requests),
			formatValue(result.Total, decimals), formatValue(result.Change, decimals))
		return nil
	},
}

func init() {
	addBatchFlags(planCommand)
	RootCmd.AddCommand(planCommand)
}
