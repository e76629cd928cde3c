package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/snapvault/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configPath    string
	namespaceFlag string
	traceFlag     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "snapvault",
	Short: "Snapvault - versioned snapshot archive",
	Long: `Snapvault archives successive revisions of process state as JSON
documents in a Redis-backed object store, and wipes whole backends for
test fixtures and maintenance.

Configuration is read from snapvault.yml; SNAPVAULT_REDIS_URL,
SNAPVAULT_DATABASE_URL and SNAPVAULT_NAMESPACE override it.`,
	// Show help instead of silently succeeding on a bare invocation
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context; a purge in progress finishes its current batch and stops.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Errors are printed by the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = versionString()
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to snapvault.yml")
	rootCmd.PersistentFlags().StringVar(&namespaceFlag, "namespace", "", "Archive namespace (overrides configuration)")
	rootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", false, "Print OpenTelemetry spans to stderr")
}
