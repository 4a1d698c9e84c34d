package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/ownersync/internal/cmd/output"
	"github.com/agentstation/ownersync/internal/config"
	"github.com/agentstation/ownersync/internal/sources/reftable"
	"github.com/agentstation/ownersync/internal/transport"
)

// tablesCmd lists the reference tables visible to the configured keys.
var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List available reference tables",
	Long: `Tables lists the reference tables the configured API keys can see,
with their ids. Useful for picking a value for REF_TABLE_NAME or
REF_TABLE_ID before running sync.`,
	Example: `  ownersync tables
  ownersync tables -o json`,
	RunE: runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := transport.New(
		&transport.KeyPairAuth{APIKey: cfg.APIKey, AppKey: cfg.AppKey},
		transport.WithContentType(transport.ContentTypeJSONAPI),
	)

	tables, err := reftable.New(client, cfg.BaseURL()).Tables(cmd.Context())
	if err != nil {
		return err
	}

	formatter := output.NewFormatter(output.Format(flagOutput))
	return formatter.Format(os.Stdout, tables)
}
