package main

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/remotefn/internal/config"
)

const (
	sentinelStart = "# remotefn:start"
	sentinelEnd   = "# remotefn:end"
)

// initCmd implements `remotefn init`, which writes a default config file and
// a .gitignore section covering the generated endpoints.
func initCmd(opts *options) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write .remotefn.yaml and ignore generated endpoints in .gitignore",
		Long: `init writes a default .remotefn.yaml unless one exists, and adds a section
to .gitignore that ignores the generated endpoint directories. The section is
wrapped in sentinel comments so it can be updated in place on subsequent runs
without touching surrounding content.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

			section := generateSection(cfg)
			ignorePath := filepath.Join(cfg.Root, ".gitignore")
			existing, err := os.ReadFile(ignorePath)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("reading %s: %w", ignorePath, err)
			}
			updated := applySection(string(existing), section)

			if dryRun {
				_, _ = fmt.Fprint(stdout, updated)
				return nil
			}

			cfgPath := filepath.Join(cfg.Root, config.FileName)
			if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
				if err := config.Save(cfg.Root, cfg); err != nil {
					return fmt.Errorf("writing %s: %w", cfgPath, err)
				}
				_, _ = fmt.Fprintf(stderr, "wrote %s\n", cfgPath)
			}

			if err := os.WriteFile(ignorePath, []byte(updated), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", ignorePath, err)
			}
			_, _ = fmt.Fprintf(stderr, "wrote remotefn section to %s\n", ignorePath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the resulting .gitignore without modifying anything")
	return cmd
}

// generateSection returns the sentinel-wrapped .gitignore block for cfg.
func generateSection(cfg *config.Config) string {
	out := cfg.OutputDir
	if rel, err := filepath.Rel(cfg.Root, cfg.OutputPath()); err == nil {
		out = rel
	}
	pattern := "/" + path.Join(filepath.ToSlash(out), cfg.Prefix+"*") + "/"

	body := "# Endpoints generated by remotefn; regenerated on every build.\n" + pattern
	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if len(content) == 0 {
		return section + "\n"
	}
	// Append, ensuring a blank line separator.
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
