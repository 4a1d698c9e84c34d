package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/ownersync/internal/cmd/output"
	"github.com/agentstation/ownersync/internal/config"
	"github.com/agentstation/ownersync/internal/sources/events"
	"github.com/agentstation/ownersync/internal/sources/reftable"
	"github.com/agentstation/ownersync/internal/sources/servicecatalog"
	"github.com/agentstation/ownersync/internal/transport"
	"github.com/agentstation/ownersync/pkg/logging"
	"github.com/agentstation/ownersync/pkg/sync"
)

var (
	syncDays       int
	syncQuery      string
	syncPageLimit  int
	syncMaxPages   int
	syncTable      string
	syncServiceCol string
	syncTeamCol    string
	syncTeams      []string
	syncDryRun     bool
)

// syncCmd represents the sync command.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync event-stream services into the Service Catalog",
	Long: `Sync discovers every service mentioned in the event stream over the
query window, looks up team ownership in the configured reference table,
creates placeholder ownership rows for services the table does not know,
then upserts a service definition for each owned service.

The command will:
1. Search events over the window and collect service identifiers
2. Look up existing service-to-team rows in the reference table
3. Create placeholder rows for services without a team
4. Upsert a v2.2 service definition per service
5. Print a run summary

Per-service failures are reported but do not abort the run.`,
	Example: `  ownersync sync
  ownersync sync --days 30 --query "source:kubernetes"
  ownersync sync --table service_owners --service-col svc --team-col owner
  ownersync sync --dry-run`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().IntVar(&syncDays, "days", 7, "Days of event history to search")
	syncCmd.Flags().StringVar(&syncQuery, "query", "*", "Event search query")
	syncCmd.Flags().IntVar(&syncPageLimit, "page-limit", 100, "Events per page")
	syncCmd.Flags().IntVar(&syncMaxPages, "max-pages", 0, "Stop after this many pages (0 = no limit)")
	syncCmd.Flags().StringVar(&syncTable, "table", "", "Reference table name or id (default from environment)")
	syncCmd.Flags().StringVar(&syncServiceCol, "service-col", "", "Reference table service column")
	syncCmd.Flags().StringVar(&syncTeamCol, "team-col", "", "Reference table team column")
	syncCmd.Flags().StringSliceVar(&syncTeams, "teams", nil, "Placeholder team rotation for unowned services")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Report what would change without writing")
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg := config.Load()
	applySyncFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	auth := &transport.KeyPairAuth{APIKey: cfg.APIKey, AppKey: cfg.AppKey}
	jsonClient := transport.New(auth)
	jsonAPIClient := transport.New(auth, transport.WithContentType(transport.ContentTypeJSONAPI))

	baseURL := cfg.BaseURL()
	tables := reftable.New(jsonAPIClient, baseURL)

	tableID := cfg.TableID
	if tableID == "" {
		var err error
		tableID, err = tables.FindTable(ctx, cfg.TableName)
		if err != nil {
			return err
		}
	}

	source := events.New(jsonClient, baseURL).Source(events.Query{
		Window:    events.LastDays(syncDays),
		Query:     syncQuery,
		PageLimit: syncPageLimit,
		MaxPages:  syncMaxPages,
	})
	rows := tables.Rows(tableID, cfg.ServiceColumn, cfg.TeamColumn)
	catalog := servicecatalog.New(jsonClient, baseURL)

	opts := []sync.Option{sync.WithDryRun(syncDryRun)}
	if len(syncTeams) > 0 {
		opts = append(opts, sync.WithPlaceholderTeams(syncTeams...))
	}

	result, err := sync.New(source, rows, catalog).Run(ctx, opts...)
	if err != nil {
		return err
	}

	return reportResult(result)
}

// applySyncFlags lets command flags override environment configuration.
func applySyncFlags(cfg *config.Config) {
	if syncTable != "" {
		cfg.TableName = syncTable
		cfg.TableID = ""
	}
	if syncServiceCol != "" {
		cfg.ServiceColumn = syncServiceCol
	}
	if syncTeamCol != "" {
		cfg.TeamColumn = syncTeamCol
	}
}

// reportResult prints the run result in the selected output format. Table
// output gets the human summary; json/yaml get the structured result.
func reportResult(result *sync.Result) error {
	format := output.Format(flagOutput)

	if format == output.FormatTable {
		fmt.Println(result.Summary())
		for _, svc := range result.MissingTeams {
			fmt.Printf("  missing team: %s\n", svc)
		}
		for _, f := range result.Failures {
			fmt.Printf("  failed: %s: %s\n", f.Service, f.Message)
		}
		for _, f := range result.RowFailures {
			fmt.Printf("  row create failed: %s: %s\n", f.Service, f.Message)
		}
	} else {
		formatter := output.NewFormatter(format)
		if err := formatter.Format(os.Stdout, result); err != nil {
			return err
		}
	}

	if result.HasFailures() {
		logging.Warn().
			Int("failed", result.Failed).
			Int("row_failures", len(result.RowFailures)).
			Msg("Run completed with per-service failures")
	}
	return nil
}
