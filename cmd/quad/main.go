package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/five82/quad/internal/app"
	"github.com/five82/quad/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer glog.Flush()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "quad: %v\n", err)
		if errors.Is(err, config.ErrMissingCredentials) {
			fmt.Fprintln(os.Stderr, "quad: set backend.url, backend.student_id and QUAD_TOKEN_SECRET, or use mode = \"simulated\"")
			return 2
		}
		return 1
	}
	return 0
}

type globals struct {
	configPath string
	prefsPath  string
	syncEvery  time.Duration
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "quad",
		Short: "Campus dashboard with optimistic updates",
		Long: `quad shows grades, campus buses, library loans, place occupancy and
thesis defenses in the terminal. Edits apply immediately and are rolled back
if the campus backend rejects them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.runDashboard(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file path (default ~/.config/quad/config.toml)")
	pf.StringVar(&g.prefsPath, "prefs", "", "preferences file path (default ~/.config/quad/prefs.toml)")
	pf.DurationVar(&g.syncEvery, "sync", 0, "state save interval (default 15s)")
	pf.AddGoFlagSet(flag.CommandLine)

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Show the dashboard (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return g.runDashboard(cmd.Context())
			},
		},
		newSimulateCmd(g),
		&cobra.Command{
			Use:   "reset",
			Short: "Delete saved state so the next start uses the seed data",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := app.Reset(g.cfg); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "saved state removed")
				return nil
			},
		},
	)
	return root
}

func newSimulateCmd(g *globals) *cobra.Command {
	var opts app.SimulateOptions
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the backend simulator headless and print push and mutation events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(g.cfg, app.Options{PrefsPath: g.prefsPath, SyncEvery: g.syncEvery})
			if err != nil {
				return err
			}
			opts.Out = cmd.OutOrStdout()
			summary, runErr := a.Simulate(cmd.Context(), opts)
			closeErr := a.Close()
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return errors.Join(runErr, closeErr)
		},
	}
	f := cmd.Flags()
	f.DurationVar(&opts.Duration, "duration", 30*time.Second, "how long to run (0 runs until interrupted)")
	f.DurationVar(&opts.Every, "every", 2*time.Second, "time between random mutations")
	f.Uint64Var(&opts.Seed, "seed", 0, "random seed for mutation choice (0 uses the clock)")
	return cmd
}

// load reads the config and points glog at its log directory unless the
// user chose one with -log_dir.
func (g *globals) load(cmd *cobra.Command) error {
	// glog reads its settings from the standard flag set.
	if err := flag.CommandLine.Parse(nil); err != nil {
		return err
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	g.cfg = cfg

	if !cmd.Flags().Changed("log_dir") && cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		if err := flag.Set("log_dir", cfg.LogDir); err != nil {
			return err
		}
	}
	return nil
}

func (g *globals) runDashboard(ctx context.Context) error {
	// Anything glog copies to stderr would draw over the alt screen.
	if err := flag.Set("stderrthreshold", "FATAL"); err != nil {
		return err
	}
	a, err := app.New(g.cfg, app.Options{PrefsPath: g.prefsPath, SyncEvery: g.syncEvery})
	if err != nil {
		return err
	}
	runErr := a.Run(ctx, g.prefsPath)
	return errors.Join(runErr, a.Close())
}
