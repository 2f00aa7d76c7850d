// Package bootstrap wires configuration, storage, the filter and the tracking
// loop into the runnable pieces the CLI needs.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	filterinadapter "watchtime/internal/modules/filter/adapter/in"
	filteroutadapter "watchtime/internal/modules/filter/adapter/out"
	filterdomain "watchtime/internal/modules/filter/domain"
	filterin "watchtime/internal/modules/filter/port/in"
	filterservice "watchtime/internal/modules/filter/service"
	filterusecase "watchtime/internal/modules/filter/usecase"
	trackinginadapter "watchtime/internal/modules/tracking/adapter/in"
	trackingrpc "watchtime/internal/modules/tracking/adapter/in/rpc"
	trackingoutadapter "watchtime/internal/modules/tracking/adapter/out"
	trackingin "watchtime/internal/modules/tracking/port/in"
	trackingout "watchtime/internal/modules/tracking/port/out"
	trackingservice "watchtime/internal/modules/tracking/service"
	trackingusecase "watchtime/internal/modules/tracking/usecase"
	"watchtime/internal/platform/clock"
	"watchtime/internal/platform/config"
	"watchtime/internal/platform/id"
	uiapp "watchtime/internal/ui/app"
)

// Daemon is the long-running tracker: the event loop plus its gRPC surface.
type Daemon struct {
	cfg        config.Config
	logger     hclog.Logger
	interactor *trackingusecase.Interactor
	server     *trackinginadapter.GRPCServer
	closers    []func() error
}

// NewDaemon loads the persisted tracker and wires the loop. Nothing runs
// until Run.
func NewDaemon(ctx context.Context, cfg config.Config, logger hclog.Logger) (*Daemon, error) {
	clk := clock.SystemClock{}
	d := &Daemon{cfg: cfg, logger: logger}

	store, closeStore, err := openStore(cfg, clk)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, closeStore)

	snapshots := trackingservice.NewSnapshotService(store, logger.Named("snapshot"))
	tracker, err := snapshots.Load(ctx, cfg.Settings.Tracker.Name, cfg.Settings.Tracker.Description)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("load tracker: %w", err)
	}
	reconciler := trackingservice.NewReconciler(tracker, logger.Named("reconciler"), cfg.RecentWindow)
	reconciler.SetLocation(cfg.Location)

	filterUC, closeFilter := newFilter(cfg, logger)
	d.closers = append(d.closers, closeFilter)

	d.interactor = trackingusecase.NewInteractor(
		reconciler,
		snapshots,
		trackingoutadapter.NewFilterAdapter(filterUC),
		id.UUID{},
		clk,
		logger.Named("tracking"),
		cfg.FlushInterval,
	)
	d.server = trackinginadapter.NewGRPCServer(d.interactor, logger.Named("rpc"))
	return d, nil
}

// Run listens on the configured address and serves until ctx is cancelled.
// The final snapshot is written before Run returns. Run releases the daemon's
// resources on every path.
func (d *Daemon) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", d.cfg.Settings.Listen)
	if err != nil {
		if closeErr := d.Close(); closeErr != nil {
			d.logger.Warn("close daemon resources", "error", closeErr)
		}
		return fmt.Errorf("listen %s: %w", d.cfg.Settings.Listen, err)
	}
	return d.Serve(ctx, lis)
}

// Serve is Run on a caller-provided listener.
func (d *Daemon) Serve(ctx context.Context, lis net.Listener) error {
	defer func() {
		if err := d.Close(); err != nil {
			d.logger.Warn("close daemon resources", "error", err)
		}
	}()
	d.logger.Info("tracker daemon listening", "addr", lis.Addr().String(), "store", d.cfg.Settings.Store)

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopDone := make(chan error, 1)
	go func() { loopDone <- d.interactor.Run(loopCtx) }()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return d.server.Serve(groupCtx, lis)
	})
	group.Go(func() error {
		select {
		case err := <-loopDone:
			loopDone <- err
			if err != nil {
				return fmt.Errorf("tracking loop: %w", err)
			}
			return errors.New("tracking loop exited")
		case <-groupCtx.Done():
			return nil
		}
	})
	serveErr := group.Wait()

	// The server is down before the loop stops, so no call races the final save.
	stopLoop()
	loopErr := <-loopDone
	if serveErr != nil && ctx.Err() == nil {
		return errors.Join(serveErr, loopErr)
	}
	return loopErr
}

// Usecase exposes the in-process tracking surface.
func (d *Daemon) Usecase() trackingin.Usecase { return d.interactor }

func (d *Daemon) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	d.closers = nil
	return errors.Join(errs...)
}

// Offline answers queries from the persisted snapshot without a daemon.
// Sessions still open in a running daemon are not counted.
type Offline struct {
	Queries trackingin.Queries
	close   func() error
}

func NewOffline(ctx context.Context, cfg config.Config, logger hclog.Logger) (*Offline, error) {
	clk := clock.SystemClock{}
	store, closeStore, err := openStore(cfg, clk)
	if err != nil {
		return nil, err
	}
	tracker, err := trackingservice.NewSnapshotService(store, logger.Named("snapshot")).
		Peek(ctx, cfg.Settings.Tracker.Name, cfg.Settings.Tracker.Description)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("read tracker: %w", err)
	}
	reconciler := trackingservice.NewReconciler(tracker, logger.Named("reconciler"), cfg.RecentWindow)
	reconciler.SetLocation(cfg.Location)
	return &Offline{
		Queries: trackingusecase.NewSnapshotView(reconciler, clk),
		close:   closeStore,
	}, nil
}

func (o *Offline) Close() error { return o.close() }

// DialDaemon connects to a running daemon.
func DialDaemon(cfg config.Config) (*trackingrpc.Remote, error) {
	return trackingrpc.Dial(cfg.Settings.Listen)
}

// TrackingCLI adapts a remote daemon for the signal and report commands.
func TrackingCLI(usecase trackingin.Usecase) trackinginadapter.CLIHandler {
	return trackinginadapter.NewCLIHandler(usecase)
}

// ReportCLI adapts read-only queries for the report command.
func ReportCLI(queries trackingin.Queries) trackinginadapter.CLIHandler {
	return trackinginadapter.NewReportHandler(queries)
}

// FilterCLI wires the filter module for the plugin commands. The returned
// function stops any detector processes.
func FilterCLI(cfg config.Config, logger hclog.Logger) (filterinadapter.CLIHandler, func() error) {
	uc, closeFilter := newFilter(cfg, logger)
	return filterinadapter.NewCLIHandler(uc), closeFilter
}

// RunDashboard opens the terminal dashboard over queries.
func RunDashboard(queries uiapp.QueriesPort, source string, rangeHours float64) error {
	model := uiapp.NewModel(queries, uiapp.Options{Source: source, RangeHours: rangeHours})
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// FilterOptions maps the YAML filter settings onto domain options.
func FilterOptions(c config.FilterConfig) filterdomain.Options {
	domains := make(map[string]bool, len(c.DomainsToTrack))
	for k, v := range c.DomainsToTrack {
		domains[k] = v
	}
	return filterdomain.Options{
		PrefLangEnabled:      c.PrefLangEnabled,
		TargetLanguage:       c.TargetLanguage,
		DomainsToTrack:       domains,
		DomainsToAlwaysTrack: append([]string(nil), c.DomainsToAlwaysTrack...),
		BlacklistedKeywords:  append([]string(nil), c.BlacklistedKeywords...),
	}
}

func newFilter(cfg config.Config, logger hclog.Logger) (filterin.Usecase, func() error) {
	svcLogger := logger.Named("filter")
	store := filteroutadapter.NewFileManifestStore(cfg.PluginDir)
	if !cfg.Settings.Filter.PrefLangEnabled {
		svc := filterservice.NewFilterService(FilterOptions(cfg.Settings.Filter), store, nil, svcLogger)
		return filterusecase.NewInteractor(svc), func() error { return nil }
	}
	host := filteroutadapter.NewGRPCHost(svcLogger.Named("plugin"))
	svc := filterservice.NewFilterService(FilterOptions(cfg.Settings.Filter), store, host, svcLogger)
	return filterusecase.NewInteractor(svc), func() error {
		host.Close()
		return nil
	}
}

func openStore(cfg config.Config, clk clock.Clock) (trackingout.KVStore, func() error, error) {
	switch cfg.Settings.Store {
	case config.StoreFile:
		return trackingoutadapter.NewFileKVStore(cfg.SnapshotDir), func() error { return nil }, nil
	default:
		store, err := trackingoutadapter.NewSQLiteKVStore(cfg.DBPath, clk)
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot store: %w", err)
		}
		return store, store.Close, nil
	}
}

var _ io.Closer = (*Offline)(nil)
