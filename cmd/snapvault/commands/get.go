package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dyluth/snapvault/internal/catalog"
	"github.com/dyluth/snapvault/pkg/archive"
)

var getCmd = &cobra.Command{
	Use:   "get ENTITY REVISION",
	Short: "Print the payload of an archived snapshot",
	Long: `Print the stored payload of one snapshot as pretty-printed JSON,
including its "$type" discriminator.

ENTITY is a full entity ID or a prefix of at least 6 hex characters.

Examples:
  snapvault get 7f0c2a91-5be4-4f7e-9a55-0d9a4b1c2e3f 3
  snapvault get 7f0c2a 3`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShow(cmd, args, catalog.GetSnapshot)
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata ENTITY REVISION",
	Short: "Print the metadata of an archived snapshot",
	Long: `Print the metadata stored alongside one snapshot as JSON.

ENTITY is a full entity ID or a prefix of at least 6 hex characters.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShow(cmd, args, catalog.GetMetadata)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(metadataCmd)
}

type showFunc func(ctx context.Context, a *archive.Archive, entityID uuid.UUID, revision int64, w io.Writer) error

func runShow(cmd *cobra.Command, args []string, show showFunc) error {
	ctx := cmd.Context()

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	revision, err := parseRevision(s.out, args[1])
	if err != nil {
		return err
	}

	entityID, err := resolveEntityID(ctx, s, args[0])
	if err != nil {
		return err
	}

	if err := show(ctx, s.archive, entityID, revision, cmd.OutOrStdout()); err != nil {
		if catalog.IsNotFound(err) {
			return s.out.ErrorWithContext(
				"snapshot not found",
				"The snapshot has no stored object for this revision.",
				map[string]string{
					"Namespace": s.archive.Namespace(),
					"Entity":    entityID.String(),
					"Revision":  fmt.Sprint(revision),
				},
				[]string{fmt.Sprintf("List the entity's revisions:\n  snapvault list --entity %s", entityID)},
			)
		}
		return s.out.Error("failed to read snapshot", err.Error(), nil)
	}
	return nil
}

// resolveEntityID resolves a full or short entity ID and prints resolution
// failures.
func resolveEntityID(ctx context.Context, s *session, ref string) (uuid.UUID, error) {
	id, err := catalog.ResolveEntityID(ctx, s.archive, ref)
	if err == nil {
		return id, nil
	}

	switch {
	case catalog.IsNotFoundError(err):
		return uuid.Nil, s.out.Error(
			fmt.Sprintf("no snapshots found for entity '%s'", ref),
			fmt.Sprintf("Namespace '%s' holds no snapshot of a matching entity.", s.archive.Namespace()),
			[]string{
				"List all snapshots:\n  snapvault list",
				"Check the namespace:\n  snapvault --namespace <name> list",
			},
		)
	case catalog.IsAmbiguousError(err):
		amb := err.(*catalog.AmbiguousError)
		fmt.Fprintln(s.out.Err, catalog.FormatAmbiguousError(amb))
		return uuid.Nil, fmt.Errorf("ambiguous short ID")
	default:
		return uuid.Nil, s.out.Error("invalid entity ID", err.Error(), nil)
	}
}
