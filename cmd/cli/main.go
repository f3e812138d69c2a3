package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// cliOptions holds the persistent flags shared by every command.
type cliOptions struct {
	baseURL string
	timeout time.Duration
	raw     bool
}

func (o *cliOptions) client() *apiClient {
	return newAPIClient(o.baseURL, o.timeout)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "chatledger-cli",
		Short:         "ChatLedger CLI tool",
		Long:          `A command line interface for the ChatLedger wallet API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the ChatLedger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.raw, "json", false, "Print raw JSON responses")

	rootCmd.AddCommand(
		clientCmd(opts),
		accountCmd(opts),
		postCmd(opts),
		statementCmd(opts),
		balanceCmd(opts),
		balancesCmd(opts),
		reconcileCmd(opts),
	)

	return rootCmd
}
