package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dyluth/snapvault/internal/scaffold"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default snapvault.yml",
	Long: `Write a default snapvault.yml into the directory of --config.

Use --force to overwrite an existing file.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing snapvault.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	out := newPrinter(cmd)

	path, err := scaffold.Initialize(filepath.Dir(configPath), forceInit)
	if err != nil {
		return out.Error("initialization failed", err.Error(), nil)
	}
	if filepath.Base(configPath) != scaffold.ConfigFile {
		out.Warning("wrote %s; pass --config %s to use it\n", path, path)
	}

	scaffold.PrintSuccess(cmd.OutOrStdout(), path)
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
