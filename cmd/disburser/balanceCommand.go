package cmd

import (
	"fmt"

	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// balanceCommand lists the faucet's unspent outputs
var balanceCommand = &cobra.Command{
	Use:   "balance",
	Short: "Lists the faucet's unspent outputs",
	Long:  `Lists the unspent outputs of the faucet address in one color, in ledger order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		faucet := viper.GetString("faucet")
		if faucet == "" {
			return errors.New("--faucet is required")
		}
		color := common.Color(viper.GetUint32("color"))
		decimals := viper.GetInt32("decimals")

		ctx, cancel := signalContext()
		defer cancel()

		utxos, err := newClient().FetchUnspent(ctx, faucet, color)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"outpoint", "value"})
		table.SetCaption(true, fmt.Sprintf("%s, color %d", faucet, color))
		for _, u := range utxos {
			table.Append([]string{u.Outpoint.String(), formatValue(u.Output.Value, decimals)})
		}
		table.SetFooter([]string{fmt.Sprintf("%d outputs", len(utxos)), formatValue(common.Sum(utxos), decimals)})
		table.Render()
		return nil
	},
}

func init() {
	balanceCommand.Flags().String("faucet", "", "funding address")
	balanceCommand.Flags().Uint32("color", 0, "asset color")
	balanceCommand.Flags().Int32("decimals", 0, "show values in whole tokens with this many decimals")
	RootCmd.AddCommand(balanceCommand)
}
