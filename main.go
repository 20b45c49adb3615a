// remotefn moves server-only functions out of Svelte components into
// generated SvelteKit endpoints and rewrites their calls into fetches.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/phobologic/remotefn/internal/config"
	"github.com/phobologic/remotefn/internal/hook"
	"github.com/phobologic/remotefn/internal/toon"
	"github.com/phobologic/remotefn/internal/transform"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// options are the persistent flags shared by every subcommand.
type options struct {
	root       string
	configPath string
	prefix     string
	outputDir  string
	verbose    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "remotefn",
		Short: "Extract server_ functions from Svelte components into endpoints",
		Long: `remotefn finds async top-level functions whose names start with a reserved
prefix (server_ by default) in the instance script of Svelte components,
moves each into a generated SvelteKit +server.js endpoint and rewrites every
call to it into a fetch POST against that endpoint.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("remotefn {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&opts.root, "root", ".", "project root")
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (default <root>/.remotefn.yaml)")
	pf.StringVar(&opts.prefix, "prefix", "", "override the function name prefix")
	pf.StringVar(&opts.outputDir, "output-dir", "", "override the endpoint output directory")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		sweepCmd(opts),
		transformCmd(opts),
		serveCmd(opts),
		watchCmd(opts),
		routesCmd(opts),
		initCmd(opts),
	)
	return root
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func loadConfig(opts *options) (*config.Config, error) {
	info, err := os.Stat(opts.root)
	if err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", opts.root)
	}

	cfg, err := config.Load(opts.root, opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.prefix != "" {
		cfg.Prefix = opts.prefix
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}
	return cfg, nil
}

func newTransformer(cmd *cobra.Command, opts *options) (*transform.Transformer, zerolog.Logger, error) {
	log := newLogger(cmd.ErrOrStderr(), opts.verbose)
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, log, err
	}
	tr, err := transform.New(cfg, transform.WithLogger(log))
	if err != nil {
		return nil, log, err
	}
	return tr, log, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func sweepCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Regenerate every endpoint and remove stale ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, _, err := newTransformer(cmd, opts)
			if err != nil {
				return err
			}
			report, err := tr.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "documents=%d endpoints=%d written=%d removed=%d failed=%d\n",
				report.Documents, report.Endpoints, report.Written, report.Removed, report.Failed)
			return nil
		},
	}
}

func transformCmd(opts *options) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "transform FILE...",
		Short: "Rewrite components, printing the result or writing it back",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, _, err := newTransformer(cmd, opts)
			if err != nil {
				return err
			}
			for _, path := range args {
				abs, err := filepath.Abs(path)
				if err != nil {
					return fmt.Errorf("resolving %s: %w", path, err)
				}
				data, err := os.ReadFile(abs)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				out := tr.Transform(string(data), abs)
				if !write {
					_, _ = io.WriteString(cmd.OutOrStdout(), out)
					continue
				}
				if out == string(data) {
					continue
				}
				if err := os.WriteFile(abs, []byte(out), 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write results back to the files")
	return cmd
}

func serveCmd(opts *options) *cobra.Command {
	var cacheSize int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer preprocessing hooks as JSON lines on stdin/stdout",
		Long: `serve runs one sweep and then answers hook requests, one JSON object per
line: {"id":1,"hook":"markup","content":"...","filename":"..."}. Each gets
a response line {"id":1,"code":"..."}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, log, err := newTransformer(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if _, err := tr.Sweep(ctx); err != nil {
				return err
			}
			srv, err := hook.NewServer(tr, cacheSize, log)
			if err != nil {
				return err
			}
			return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&cacheSize, "cache-size", hook.DefaultCacheSize, "markup results to cache")
	return cmd
}

func watchCmd(opts *options) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sweep, then sweep again whenever a component changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, log, err := newTransformer(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if _, err := tr.Sweep(ctx); err != nil {
				return err
			}
			return watch(ctx, tr.Config(), debounce, func(changed []string) {
				log.Debug().Strs("paths", changed).Msg("change detected")
				if _, err := tr.Sweep(ctx); err != nil {
					log.Error().Err(err).Msg("sweep failed")
				}
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 250*time.Millisecond, "quiet period before a sweep")
	return cmd
}

func routesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the endpoints the current sources produce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, _, err := newTransformer(cmd, opts)
			if err != nil {
				return err
			}
			plan, err := tr.Plan(cmd.Context())
			if err != nil {
				return err
			}
			root := tr.Config().Root
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), toon.Encode(toon.Manifest{
				Project:   filepath.Base(root),
				Root:      root,
				Endpoints: plan.Endpoints,
			}))
			return nil
		},
	}
}
