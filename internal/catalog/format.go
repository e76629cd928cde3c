package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// FormatTable writes a listing as a fixed-width table. Returns the number
// of snapshots written.
func FormatTable(w io.Writer, listing *Listing) int {
	if len(listing.Snapshots) == 0 {
		fmt.Fprintf(w, "No snapshots found in namespace '%s'\n", listing.Namespace)
		formatStray(w, listing.Stray)
		return 0
	}

	fmt.Fprintf(w, "Snapshots in namespace '%s':\n\n", listing.Namespace)

	fmt.Fprintf(w, "%-10s %-10s %-20s %-9s %s\n",
		"ENTITY", "REVISION", "TYPE", "SIZE", "PARTS")
	fmt.Fprintf(w, "%-10s %-10s %-20s %-9s %s\n",
		"----------", "----------", "--------------------", "---------", "-------------")

	for _, s := range listing.Snapshots {
		fmt.Fprintf(w, "%-10s %-10d %-20s %-9s %s\n",
			formatID(s.EntityID),
			s.Revision,
			formatType(s.Type),
			formatSize(s.Size),
			formatParts(s),
		)
	}

	noun := "snapshot"
	if len(listing.Snapshots) != 1 {
		noun = "snapshots"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(listing.Snapshots), noun)
	formatStray(w, listing.Stray)

	return len(listing.Snapshots)
}

func formatStray(w io.Writer, n int) {
	if n > 0 {
		fmt.Fprintf(w, "%d unrecognised object(s) ignored\n", n)
	}
}

// FormatJSONL writes snapshots as line-delimited JSON.
func FormatJSONL(w io.Writer, snapshots []Snapshot) error {
	for _, s := range snapshots {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON re-indents a stored JSON document for display.
func FormatSingleJSON(w io.Writer, data []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return fmt.Errorf("stored document is not valid JSON: %w", err)
	}
	out.WriteByte('\n')
	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

// formatID shows the first 8 hex characters of an entity ID.
func formatID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

func formatType(name string) string {
	if name == "" {
		return "-"
	}
	if len(name) > 20 {
		return name[:17] + "..."
	}
	return name
}

func formatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fK", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1fM", float64(n)/(1024*1024))
	}
}

// formatParts flags snapshots missing one of their two objects, which
// happens when a save was interrupted between writes.
func formatParts(s Snapshot) string {
	switch {
	case s.Payload && s.Metadata:
		return "data+metadata"
	case s.Payload:
		return "data (partial)"
	default:
		return "metadata (partial)"
	}
}
