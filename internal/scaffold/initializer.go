package scaffold

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dyluth/snapvault/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// ConfigFile is the name of the file Initialize writes.
const ConfigFile = config.DefaultPath

// CheckExisting returns an error if dir already holds a snapvault.yml.
func CheckExisting(dir string) error {
	path := filepath.Join(dir, ConfigFile)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists\n\nUse 'snapvault init --force' to overwrite it", path)
	}
	return nil
}

// Initialize writes the default snapvault.yml into dir, replacing an
// existing one only when force is set, and checks that the written file
// loads. Returns the path written.
func Initialize(dir string, force bool) (string, error) {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return "", err
		}
	}

	content, err := templatesFS.ReadFile("templates/snapvault.yml.tmpl")
	if err != nil {
		return "", fmt.Errorf("failed to read snapvault.yml template: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, ConfigFile)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	if _, err := config.Load(path); err != nil {
		return "", fmt.Errorf("created %s does not load: %w", path, err)
	}
	return path, nil
}

// PrintSuccess prints the created file and next steps.
func PrintSuccess(w io.Writer, path string) {
	fmt.Fprintln(w, "\n✅ Successfully initialized snapvault!")
	fmt.Fprintln(w, "\nCreated:")
	fmt.Fprintf(w, "  ✓ %s\n", path)
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Point redis.url at your Redis server")
	fmt.Fprintln(w, "  2. Run 'snapvault list' to browse archived snapshots")
}
