package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mariusgiger/batch-disburser/pkg/blockchain"
	"github.com/mariusgiger/batch-disburser/pkg/disburse"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger    *zap.Logger
	cfgFile   string
	configErr error
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:           "disburser",
	Short:         "batch disburser",
	Long:          `Pays out batches of payout requests from a faucet address in a single ledger transaction.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return errors.Wrap(configErr, "cannot read config")
		}
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return errors.Wrap(err, "cannot bind flags")
		}

		var err error
		logger, err = newLogger(viper.GetBool("log-json"))
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		if logger == nil {
			log.Fatalf("Something went terribly wrong: %v", err)
		}
		logger.Error(disburse.Describe(err), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.disburser.yaml)")
	flags.String("url", "localhost:8545", "ledger node rpc url")
	flags.StringP("user", "u", "", "ledger node rpc username")
	flags.StringP("password", "p", "", "ledger node rpc password")
	flags.Duration("timeout", 30*time.Second, "timeout of a single rpc call, 0 disables it")
	flags.Bool("log-json", false, "log json instead of console output")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			configErr = errors.Wrap(err, "cannot get homedir")
			return
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".disburser")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DISBURSER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			configErr = err
		}
	}
}

func newLogger(json bool) (*zap.Logger, error) {
	if json {
		return zap.NewProduction()
	}
	return zap.NewDevelopment(zap.AddStacktrace(zapcore.FatalLevel))
}

func newClient() *blockchain.Client {
	return blockchain.NewClient(
		viper.GetString("url"),
		viper.GetString("user"),
		viper.GetString("password"),
		viper.GetDuration("timeout"),
		logger,
	)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
