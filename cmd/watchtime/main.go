package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"watchtime/internal/bootstrap"
	filterinadapter "watchtime/internal/modules/filter/adapter/in"
	trackinginadapter "watchtime/internal/modules/tracking/adapter/in"
	trackingoutadapter "watchtime/internal/modules/tracking/adapter/out"
	trackingin "watchtime/internal/modules/tracking/port/in"
	"watchtime/internal/platform/config"
	"watchtime/internal/platform/logging"
)

const signalTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dataDir string

	root := &cobra.Command{
		Use:           "watchtime",
		Short:         "Track time spent watching videos",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "directory holding config.yaml, the snapshot store and plugins")

	root.AddCommand(newServeCmd(&dataDir))
	root.AddCommand(newSignalCmd(&dataDir))
	root.AddCommand(newStatusCmd(&dataDir))
	root.AddCommand(newReportCmd(&dataDir))
	root.AddCommand(newDashboardCmd(&dataDir))
	root.AddCommand(newFilterCmd(&dataDir))
	root.AddCommand(newConfigCmd(&dataDir))
	return root
}

func defaultDataDir() string {
	if dir := os.Getenv("WATCHTIME_DATA_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ".watchtime"
	}
	return filepath.Join(base, "watchtime")
}

func load(dataDir string) (config.Config, hclog.Logger, error) {
	cfg, err := config.New(dataDir)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(cfg.Settings.Logging, os.Stderr), nil
}

// withQueries runs fn against the daemon, or against the stored snapshot when
// offline is set.
func withQueries(dataDir string, offline bool, fn func(q trackingin.Queries, source string) error) error {
	cfg, logger, err := load(dataDir)
	if err != nil {
		return err
	}
	if offline {
		view, err := bootstrap.NewOffline(context.Background(), cfg, logger)
		if err != nil {
			return err
		}
		defer view.Close()
		return fn(view.Queries, "offline snapshot")
	}
	remote, err := bootstrap.DialDaemon(cfg)
	if err != nil {
		return err
	}
	defer remote.Close()
	return fn(remote, cfg.Settings.Listen)
}

func newServeCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tracker daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := load(*dataDir)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			daemon, err := bootstrap.NewDaemon(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return daemon.Run(ctx)
		},
	}
}

func newSignalCmd(dataDir *string) *cobra.Command {
	sig := &cobra.Command{Use: "signal", Short: "Send browser events to the daemon"}

	send := func(fn func(ctx context.Context, cli trackinginadapter.CLIHandler) error) error {
		cfg, _, err := load(*dataDir)
		if err != nil {
			return err
		}
		remote, err := bootstrap.DialDaemon(cfg)
		if err != nil {
			return err
		}
		defer remote.Close()
		ctx, cancel := context.WithTimeout(context.Background(), signalTimeout)
		defer cancel()
		return fn(ctx, bootstrap.TrackingCLI(remote))
	}

	var title string
	var tab int64
	tabFlag := func(cmd *cobra.Command) *int64 {
		if !cmd.Flags().Changed("tab") {
			return nil
		}
		v := tab
		return &v
	}

	play := &cobra.Command{
		Use:   "play <url>",
		Short: "Report that a video started playing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(func(ctx context.Context, cli trackinginadapter.CLIHandler) error {
				return cli.Play(ctx, title, args[0], tabFlag(cmd))
			})
		},
	}
	play.Flags().StringVar(&title, "title", "", "video title")
	play.Flags().Int64Var(&tab, "tab", 0, "browser tab id")

	pause := &cobra.Command{
		Use:   "pause <url>",
		Short: "Report that a video stopped playing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(func(ctx context.Context, cli trackinginadapter.CLIHandler) error {
				return cli.Pause(ctx, args[0], tabFlag(cmd))
			})
		},
	}
	pause.Flags().Int64Var(&tab, "tab", 0, "browser tab id")

	tabUpdated := &cobra.Command{
		Use:   "tab-updated <tab-id> <url>",
		Short: "Report that a tab navigated",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			tabID, err := parseTabID(args[0])
			if err != nil {
				return err
			}
			return send(func(ctx context.Context, cli trackinginadapter.CLIHandler) error {
				return cli.TabUpdated(ctx, tabID, args[1])
			})
		},
	}

	tabClosed := &cobra.Command{
		Use:   "tab-closed <tab-id>",
		Short: "Report that a tab was closed",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			tabID, err := parseTabID(args[0])
			if err != nil {
				return err
			}
			return send(func(ctx context.Context, cli trackinginadapter.CLIHandler) error {
				return cli.TabClosed(ctx, tabID)
			})
		},
	}

	sig.AddCommand(play, pause, tabUpdated, tabClosed)
	return sig
}

func parseTabID(raw string) (int64, error) {
	tabID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid tab id %q", raw)
	}
	return tabID, nil
}

func newStatusCmd(dataDir *string) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what is playing and today's watch time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withQueries(*dataDir, offline, func(q trackingin.Queries, _ string) error {
				status, err := bootstrap.ReportCLI(q).Status(context.Background())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "%s\n", status.Name)
				_, _ = fmt.Fprintf(out, "today\t%s\n", trackingoutadapter.FormatMillis(status.TodayMillis))
				_, _ = fmt.Fprintf(out, "total\t%s\n", trackingoutadapter.FormatMillis(int64(status.TotalWatchedSeconds*1000)))
				if !status.Playing {
					_, _ = fmt.Fprintln(out, "playing\tnone")
					return nil
				}
				for _, v := range status.PlayingVideos {
					_, _ = fmt.Fprintf(out, "playing\t%s\t%s\n", v.Title, v.URL)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "read the stored snapshot instead of the daemon")
	return cmd
}

func newReportCmd(dataDir *string) *cobra.Command {
	var offline bool
	var rangeHours float64
	var outPath, outDir string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise watch time as Markdown",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withQueries(*dataDir, offline, func(q trackingin.Queries, _ string) error {
				now := time.Now()
				report, err := bootstrap.ReportCLI(q).Report(context.Background(), rangeHours, now)
				if err != nil {
					return err
				}
				path := outPath
				if path == "" && outDir != "" {
					path = trackingoutadapter.DefaultReportPath(outDir, report.Status.Name, now)
				}
				if path == "" {
					_, _ = fmt.Fprint(cmd.OutOrStdout(), trackingoutadapter.RenderReport(report))
					return nil
				}
				if err := trackingoutadapter.NewReportNoteWriter().Write(path, report); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "read the stored snapshot instead of the daemon")
	cmd.Flags().Float64Var(&rangeHours, "range-hours", 24, "trailing window for the range total")
	cmd.Flags().StringVar(&outPath, "out", "", "write the report into this Markdown note")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "write a dated report note into this directory")
	return cmd
}

func newDashboardCmd(dataDir *string) *cobra.Command {
	var offline bool
	var rangeHours float64
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Open the live terminal dashboard",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withQueries(*dataDir, offline, func(q trackingin.Queries, source string) error {
				return bootstrap.RunDashboard(q, source, rangeHours)
			})
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "read the stored snapshot instead of the daemon")
	cmd.Flags().Float64Var(&rangeHours, "range-hours", 24, "initial trailing window for the range total")
	return cmd
}

func newFilterCmd(dataDir *string) *cobra.Command {
	filter := &cobra.Command{Use: "filter", Short: "Inspect the tracking filter and detector plugins"}

	withFilter := func(fn func(ctx context.Context, cmd *cobra.Command, cli filterinadapter.CLIHandler) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(*dataDir)
			if err != nil {
				return err
			}
			cli, closeFilter := bootstrap.FilterCLI(cfg, logger)
			defer func() { _ = closeFilter() }()
			return fn(context.Background(), cmd, cli)
		}
	}

	filter.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List detector plugin manifests",
		RunE: withFilter(func(ctx context.Context, cmd *cobra.Command, cli filterinadapter.CLIHandler) error {
			plugins, err := cli.List(ctx)
			if err != nil {
				return err
			}
			if len(plugins) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no plugins configured")
				return nil
			}
			for _, p := range plugins {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s@%s enabled=%t binary=%s\n", p.Name, p.Version, p.Enabled, p.Binary)
			}
			return nil
		}),
	})

	filter.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Validate plugin checksums and lifecycle",
		RunE: withFilter(func(ctx context.Context, cmd *cobra.Command, cli filterinadapter.CLIHandler) error {
			results, err := cli.Doctor(ctx)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no plugins configured")
				return nil
			}
			for _, r := range results {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s binary=%t checksum=%t lifecycle=%t", r.Name, r.BinaryReachable, r.ChecksumValid, r.LifecycleOK)
				if r.Error != "" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), " error=%q", r.Error)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		}),
	})

	var title string
	check := &cobra.Command{
		Use:   "check <url>",
		Short: "Show whether a video would be tracked",
		Args:  cobra.ExactArgs(1),
	}
	check.RunE = func(cmd *cobra.Command, args []string) error {
		return withFilter(func(ctx context.Context, cmd *cobra.Command, cli filterinadapter.CLIHandler) error {
			decision, err := cli.Check(ctx, title, args[0])
			if err != nil {
				return err
			}
			verdict := "skip"
			if decision.Allowed {
				verdict = "track"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s", verdict, decision.Reason)
			if decision.DetectedLanguage != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\tlanguage=%s", decision.DetectedLanguage)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout())
			return nil
		})(cmd, args)
	}
	check.Flags().StringVar(&title, "title", "", "video title")
	filter.AddCommand(check)
	return filter
}

func newConfigCmd(dataDir *string) *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration commands"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(*dataDir)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", cfg.ConfigPath)
			_, _ = cmd.OutOrStdout().Write(data)
			return nil
		},
	})
	return cfgCmd
}
