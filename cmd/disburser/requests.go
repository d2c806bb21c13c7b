package cmd

import (
	"bufio"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/mariusgiger/batch-disburser/pkg/common"
	"github.com/mariusgiger/batch-disburser/pkg/disburse"
	"github.com/mariusgiger/batch-disburser/pkg/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	. "github.com/ahmetb/go-linq/v3"
)

// addBatchFlags registers the flags describing a batch
func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().String("faucet", "", "funding address")
	cmd.Flags().Uint32("color", 0, "asset color")
	cmd.Flags().String("amount", "", "amount per request, in base units unless --decimals is given")
	cmd.Flags().Int32("decimals", 0, "read --amount in whole tokens with this many decimals")
	cmd.Flags().String("requests", "", "file with one recipient address per line, - reads stdin")
}

// batchFromFlags assembles a batch from flags, the requests file and positional addresses
func batchFromFlags(cmd *cobra.Command, args []string) (*disburse.Batch, error) {
	faucet := viper.GetString("faucet")
	if faucet == "" {
		return nil, errors.New("--faucet is required")
	}

	amount, err := parseAmount(viper.GetString("amount"), viper.GetInt32("decimals"))
	if err != nil {
		return nil, err
	}

	requests, err := loadRequests(viper.GetString("requests"), args, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}

	return disburse.NewBatch(faucet, amount, common.Color(viper.GetUint32("color")), requests), nil
}

func parseAmount(s string, decimals int32) (*big.Int, error) {
	if decimals == 0 {
		v, err := common.ParseAmount(s)
		return v, errors.Wrap(err, "invalid --amount")
	}
	v, err := utils.ToBaseUnits(s, decimals)
	return v, errors.Wrap(err, "invalid --amount")
}

// loadRequests reads recipients from file, then appends args. Blank lines and
// lines starting with # are skipped. Duplicates are kept, each is paid.
func loadRequests(file string, args []string, stdin io.Reader) ([]common.PayoutRequest, error) {
	var lines []string

	switch file {
	case "":
	case "-":
		l, err := readLines(stdin)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read requests from stdin")
		}
		lines = l
	default:
		f, err := os.Open(file)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot open %s", file)
		}
		defer f.Close()

		l, err := readLines(f)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read %s", file)
		}
		lines = l
	}
	lines = append(lines, args...)

	var addresses []string
	From(lines).SelectT(strings.TrimSpace).WhereT(func(s string) bool {
		return s != "" && !strings.HasPrefix(s, "#")
	}).ToSlice(&addresses)

	return common.NewPayoutRequests(addresses...), nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// distinctRecipients counts addresses ignoring case
func distinctRecipients(requests []common.PayoutRequest) int {
	return From(requests).SelectT(func(r common.PayoutRequest) string {
		return strings.ToLower(r.Address)
	}).Distinct().Count()
}

func formatValue(v *big.Int, decimals int32) string {
	if decimals == 0 {
		return v.String()
	}
	return utils.FromBaseUnits(v, decimals)
}
