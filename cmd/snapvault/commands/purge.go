package commands

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dyluth/snapvault/pkg/cleanup"
	"github.com/dyluth/snapvault/pkg/storage"
	"github.com/dyluth/snapvault/pkg/storage/redisstore"
	"github.com/dyluth/snapvault/pkg/storage/sqlstore"
)

var (
	purgeYes  bool
	purgeRows bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge --yes [--rows]",
	Short: "Delete every object in every namespace",
	Long: `Empty every namespace of the object store, page by page. Namespaces
themselves are kept. With --rows, every row of every table is deleted too,
in Redis and in the SQL store when sql.database_url is configured.

Purges are idempotent: an interrupted purge can be re-run until it
converges. Ctrl-C stops after the batch in flight.

This is maintenance tooling for test environments. It is not scoped to
--namespace.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "Confirm deletion of all stored data")
	purgeCmd.Flags().BoolVar(&purgeRows, "rows", false, "Also delete every row of every table")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !purgeYes {
		return newPrinter(cmd).Error(
			"confirmation required",
			"purge deletes every object in every namespace of the store.",
			[]string{"Re-run with --yes to proceed"},
		)
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	metrics, err := cleanup.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return s.out.Error("failed to register cleanup metrics", err.Error(), nil)
	}

	var rowAdmins []storage.RowAdmin
	if purgeRows {
		rowAdmins = append(rowAdmins, redisstore.NewRowAdmin(s.client))
		st, err := s.openSQL(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			rowAdmins = append(rowAdmins, sqlstore.NewAdmin(st))
		}
	}

	m := cleanup.NewMaintenance(redisstore.NewObjectAdmin(s.client), rowAdmins...).
		WithOptions(
			cleanup.WithMaxConcurrency(s.cfg.Cleanup.MaxConcurrency),
			cleanup.WithLogger(s.logger),
			cleanup.WithMetrics(metrics),
		)

	reports, purgeErr := m.PurgeAll(ctx)
	for _, r := range reports {
		s.out.Info("%-8s %d item(s) deleted across %d group(s), %d vanished, %d page(s)\n",
			r.Kind, r.Items, r.Groups, r.Skipped, r.Pages)
	}

	switch {
	case purgeErr == nil:
		s.out.Success("Purge complete\n")
		return nil
	case storage.IsCancelled(purgeErr):
		return s.out.Error(
			"purge interrupted",
			"The batch in flight finished; no further pages were requested.",
			[]string{"Re-run the purge to finish the job"},
		)
	default:
		return s.out.Error(
			"purge incomplete",
			purgeErr.Error(),
			[]string{"Re-run the purge once the failures above are resolved; it picks up where it left off"},
		)
	}
}
