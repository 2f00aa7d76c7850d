package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"watchtime/internal/modules/tracking/dto"
	trackingin "watchtime/internal/modules/tracking/port/in"
	trackingout "watchtime/internal/modules/tracking/port/out"
	"watchtime/internal/modules/tracking/service"
	"watchtime/internal/platform/clock"
	apperrors "watchtime/internal/platform/errors"
	"watchtime/internal/platform/id"
)

const (
	DefaultFlushInterval = 10 * time.Second
	shutdownSaveTimeout  = 5 * time.Second
)

var _ trackingin.Usecase = (*Interactor)(nil)

type request struct {
	eventID string
	fn      func(*service.Reconciler) bool
	done    chan struct{}
}

// Interactor runs the single event loop that owns the Reconciler. Signals,
// queries and flush ticks are serialised on that loop; snapshots are handed to
// a background persister that keeps only the latest pending payload.
type Interactor struct {
	reconciler *service.Reconciler
	snapshots  *service.SnapshotService
	filter     trackingout.SignalFilter
	ids        id.Generator
	clock      clock.Clock
	logger     hclog.Logger
	flushEvery time.Duration

	// signals keeps browser signals in arrival order across the filter call,
	// which runs outside the loop.
	signals sync.Mutex

	requests    chan request
	pending     chan []byte
	started     atomic.Bool
	stopped     chan struct{}
	writeFailed atomic.Bool
}

// NewInteractor wires the loop. filter may be nil, in which case every play
// signal is tracked.
func NewInteractor(
	reconciler *service.Reconciler,
	snapshots *service.SnapshotService,
	filter trackingout.SignalFilter,
	ids id.Generator,
	clk clock.Clock,
	logger hclog.Logger,
	flushEvery time.Duration,
) *Interactor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if flushEvery <= 0 {
		flushEvery = DefaultFlushInterval
	}
	return &Interactor{
		reconciler: reconciler,
		snapshots:  snapshots,
		filter:     filter,
		ids:        ids,
		clock:      clk,
		logger:     logger,
		flushEvery: flushEvery,
		requests:   make(chan request),
		pending:    make(chan []byte, 1),
		stopped:    make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled, then ends every playing
// session and writes a final snapshot synchronously. Run may be called once.
func (i *Interactor) Run(ctx context.Context) error {
	if !i.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: event loop already started", apperrors.ErrInvalidState)
	}
	defer close(i.stopped)

	persistCtx, cancelPersist := context.WithCancel(context.Background())
	persisted := make(chan struct{})
	go func() {
		defer close(persisted)
		i.persist(persistCtx)
	}()

	ticker := time.NewTicker(i.flushEvery)
	defer ticker.Stop()

	i.logger.Info("event loop started", "flush_interval", i.flushEvery.String())
	for {
		select {
		case <-ctx.Done():
			cancelPersist()
			<-persisted
			return i.shutdown()
		case req := <-i.requests:
			changed := req.fn(i.reconciler)
			if changed {
				i.enqueueSnapshot()
			}
			if req.eventID != "" {
				i.logger.Trace("event applied", "event_id", req.eventID, "changed", changed)
			}
			close(req.done)
		case <-ticker.C:
			i.flush()
		}
	}
}

// FlushNow runs a flush on the loop immediately instead of waiting for the
// next tick.
func (i *Interactor) FlushNow(ctx context.Context) error {
	return i.exec(ctx, "", func(r *service.Reconciler) bool {
		return r.Flush(i.clock.Now()) || i.writeFailed.Load()
	})
}

func (i *Interactor) ReportPlayback(ctx context.Context, input dto.PlaybackInput) error {
	at := input.At
	if at.IsZero() {
		at = i.clock.Now()
	}
	eventID := i.ids.New()
	i.signals.Lock()
	defer i.signals.Unlock()
	if input.IsPlaying && i.filter != nil {
		allowed, reason, err := i.filter.Allow(ctx, input.Title, input.URL)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			i.logger.Warn("signal filter failed, tracking anyway", "event_id", eventID, "url", input.URL, "error", err)
		case !allowed:
			i.logger.Debug("play signal filtered", "event_id", eventID, "url", input.URL, "reason", reason)
			return nil
		}
	}
	return i.exec(ctx, eventID, func(r *service.Reconciler) bool {
		return r.HandlePlayback(at, input.Title, input.URL, input.IsPlaying, input.TabID)
	})
}

func (i *Interactor) ReportTab(ctx context.Context, input dto.TabInput) error {
	at := input.At
	if at.IsZero() {
		at = i.clock.Now()
	}
	i.signals.Lock()
	defer i.signals.Unlock()
	return i.exec(ctx, i.ids.New(), func(r *service.Reconciler) bool {
		if input.Closed {
			return r.HandleTabClosed(at, input.TabID)
		}
		return r.HandleTabUpdated(at, input.TabID, input.URL)
	})
}

func (i *Interactor) RecentActivity(ctx context.Context) ([]dto.ActivityOutput, error) {
	var out []dto.ActivityOutput
	err := i.query(ctx, func(r *service.Reconciler) {
		out = activityOutputs(r, i.clock.Now())
	})
	return out, err
}

func (i *Interactor) WatchTime(ctx context.Context, rangeHours float64) (dto.WatchTimeOutput, error) {
	out := dto.WatchTimeOutput{RangeHours: rangeHours}
	err := i.query(ctx, func(r *service.Reconciler) {
		out.Millis = r.WatchTimeMillis(i.clock.Now(), rangeHours)
	})
	return out, err
}

func (i *Interactor) TotalWatchedSeconds(ctx context.Context) (float64, error) {
	var out float64
	err := i.query(ctx, func(r *service.Reconciler) {
		out = r.TotalWatchedSeconds()
	})
	return out, err
}

func (i *Interactor) IsAnyVideoPlaying(ctx context.Context) (bool, error) {
	var out bool
	err := i.query(ctx, func(r *service.Reconciler) {
		out = r.IsAnyVideoPlaying()
	})
	return out, err
}

func (i *Interactor) Status(ctx context.Context) (dto.StatusOutput, error) {
	var out dto.StatusOutput
	err := i.query(ctx, func(r *service.Reconciler) {
		out = statusOutput(r, i.clock.Now())
	})
	return out, err
}

func (i *Interactor) query(ctx context.Context, fn func(*service.Reconciler)) error {
	return i.exec(ctx, "", func(r *service.Reconciler) bool {
		fn(r)
		return false
	})
}

// exec runs fn on the loop and waits for it. fn reports whether tracked state
// changed and a snapshot is due.
func (i *Interactor) exec(ctx context.Context, eventID string, fn func(*service.Reconciler) bool) error {
	if !i.started.Load() {
		return apperrors.ErrNotRunning
	}
	req := request{eventID: eventID, fn: fn, done: make(chan struct{})}
	select {
	case i.requests <- req:
	case <-i.stopped:
		return apperrors.ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	// Accepted requests always complete; fn never blocks the loop.
	<-req.done
	return nil
}

func (i *Interactor) flush() {
	changed := i.reconciler.Flush(i.clock.Now())
	if changed || i.writeFailed.Load() {
		i.enqueueSnapshot()
	}
}

// enqueueSnapshot replaces any payload the persister has not picked up yet.
func (i *Interactor) enqueueSnapshot() {
	payload, err := service.Encode(i.reconciler.Tracker())
	if err != nil {
		i.logger.Error("encode snapshot", "error", err)
		return
	}
	select {
	case i.pending <- payload:
		return
	default:
	}
	select {
	case <-i.pending:
	default:
	}
	select {
	case i.pending <- payload:
	default:
		i.logger.Warn("snapshot slot busy, dropping payload")
	}
}

func (i *Interactor) persist(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-i.pending:
			if err := i.snapshots.SaveEncoded(ctx, payload); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				i.writeFailed.Store(true)
				i.logger.Error("snapshot write failed, keeping in-memory state", "error", err)
				continue
			}
			i.writeFailed.Store(false)
		}
	}
}

func (i *Interactor) shutdown() error {
	now := i.clock.Now()
	if i.reconciler.StopAll(now) {
		i.logger.Info("stopped playing sessions on shutdown")
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownSaveTimeout)
	defer cancel()
	if err := i.snapshots.Save(ctx, i.reconciler.Tracker()); err != nil {
		i.logger.Error("final snapshot failed", "error", err)
		return fmt.Errorf("final snapshot: %w", err)
	}
	i.logger.Info("event loop stopped")
	return nil
}

func activityOutputs(r *service.Reconciler, now time.Time) []dto.ActivityOutput {
	activity := r.RecentActivity(now)
	out := make([]dto.ActivityOutput, 0, len(activity))
	for _, item := range activity {
		out = append(out, dto.ActivityOutput{URL: item.URL, Title: item.Title})
	}
	return out
}

func statusOutput(r *service.Reconciler, now time.Time) dto.StatusOutput {
	playing := r.Playing()
	videos := make([]dto.PlayingOutput, 0, len(playing))
	for _, video := range playing {
		videos = append(videos, dto.PlayingOutput{URL: video.URL, Title: video.Title, TabID: video.TabID})
	}
	return dto.StatusOutput{
		Name:                r.Tracker().Name,
		Playing:             r.IsAnyVideoPlaying(),
		PlayingVideos:       videos,
		TodayMillis:         r.TodayMillis(now),
		TotalWatchedSeconds: r.TotalWatchedSeconds(),
		RecentActivity:      activityOutputs(r, now),
		Records:             len(r.Tracker().Records()),
	}
}
