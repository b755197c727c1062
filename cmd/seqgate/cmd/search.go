package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/seqgate/seqgate/internal/adapter/outbound/entrez"
	"github.com/seqgate/seqgate/internal/config"
	"github.com/seqgate/seqgate/internal/domain/gateway"
	"github.com/seqgate/seqgate/internal/port/inbound"
	"github.com/seqgate/seqgate/internal/service"
)

var searchCmd = &cobra.Command{
	Use:   "search <genus|author> <query>",
	Short: "Run one search and print the identifiers",
	Long: `Search the nucleotide database once and print the matching record
identifiers as a JSON array. The rate limiter is not involved.

Examples:
  seqgate search genus Homo
  seqgate search author "Smith J"`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <id>",
	Short: "Fetch one record and print both formats",
	Long: `Fetch one record in GenBank and FASTA form and print
{"genbank": "...", "fasta": "..."}. The rate limiter is not involved.

Example:
  seqgate fetch NM_000546`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(fetchCmd)
}

// searchOperation maps a CLI search type to an operation.
func searchOperation(searchType, query string) (gateway.Operation, error) {
	switch strings.ToLower(searchType) {
	case "genus", "organism":
		return gateway.NewSearchByOrganism(query), nil
	case "author":
		return gateway.NewSearchByAuthor(query), nil
	default:
		return gateway.Operation{}, fmt.Errorf("unknown search type %q (must be 'genus' or 'author')", searchType)
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	op, err := searchOperation(args[0], args[1])
	if err != nil {
		return err
	}
	return runOnce(cmd, op)
}

func runFetch(cmd *cobra.Command, args []string) error {
	return runOnce(cmd, gateway.NewFetchDetails(args[0]))
}

// runOnce executes op against the configured upstream and prints the result.
func runOnce(cmd *cobra.Command, op gateway.Operation) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), gracefulSignals()...)
	defer stop()

	logger := newLogger(cfg, os.Stderr)
	orchestrator := service.NewOrchestrator(newRemoteClient(cfg, logger, nil), entrez.NewParser(), logger)
	return executeAndPrint(ctx, orchestrator, op, cmd.OutOrStdout())
}

func executeAndPrint(ctx context.Context, orchestrator inbound.Orchestrator, op gateway.Operation, out io.Writer) error {
	result, err := orchestrator.Execute(ctx, op)
	if err != nil {
		return fmt.Errorf("%s failed: %w", op.Kind, err)
	}

	var v any
	if op.Kind == gateway.FetchDetails {
		v = result.Details
	} else {
		ids := result.Identifiers
		if ids == nil {
			ids = []string{}
		}
		v = ids
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
