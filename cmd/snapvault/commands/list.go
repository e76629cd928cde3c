package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/snapvault/internal/catalog"
)

var (
	listEntity       string
	listOutputFormat string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived snapshots",
	Long: `List every snapshot in the namespace, ordered by entity and revision.

Output Formats:
  default - Human-readable table
  jsonl   - Line-delimited JSON, one snapshot per line

Examples:
  # List everything
  snapvault list

  # All revisions of one entity, as JSONL for jq
  snapvault list --entity 7f0c2a -o jsonl | jq .revision`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listEntity, "entity", "", "Only list snapshots of this entity (full ID or 6+ char prefix)")
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "default", "Output format: default or jsonl")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var format catalog.OutputFormat
	switch listOutputFormat {
	case "default":
		format = catalog.OutputFormatDefault
	case "jsonl":
		format = catalog.OutputFormatJSONL
	default:
		return newPrinter(cmd).Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", listOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	filter := &catalog.Filter{}
	if listEntity != "" {
		if filter.EntityID, err = resolveEntityID(ctx, s, listEntity); err != nil {
			return err
		}
	}

	if err := catalog.ListSnapshots(ctx, s.archive, format, filter, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
		return s.out.Error("failed to list snapshots", err.Error(), nil)
	}
	return nil
}
