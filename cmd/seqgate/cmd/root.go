// Package cmd provides the CLI commands for seqgate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seqgate/seqgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "seqgate",
	Short: "seqgate - rate-limited gateway to NCBI nucleotide records",
	Long: `seqgate is an HTTP gateway in front of the NCBI E-utilities API.

It exposes organism and author searches and combined GenBank/FASTA record
retrieval, and admits at most a fixed number of requests per client IP
within each time window.

Quick start:
  1. Optionally create a config file: seqgate.yaml
  2. Run: seqgate start
  3. curl http://127.0.0.1:8080/search/genus/Homo

Configuration:
  Config is loaded from seqgate.yaml in the current directory,
  $HOME/.seqgate/, or /etc/seqgate/.

  Environment variables can override config values with the SEQGATE_ prefix.
  Example: SEQGATE_SERVER_HTTP_ADDR=:9090

Commands:
  start       Start the gateway server
  stop        Stop the running server
  search      Run one search and print the identifiers
  fetch       Fetch one record and print both formats
  hash-key    Generate an argon2id hash for an admin API key
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./seqgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
