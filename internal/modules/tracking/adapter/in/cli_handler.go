package in

import (
	"context"
	"fmt"
	"strings"
	"time"

	"watchtime/internal/modules/tracking/dto"
	trackingin "watchtime/internal/modules/tracking/port/in"
	apperrors "watchtime/internal/platform/errors"
)

type CLIHandler struct {
	queries trackingin.Queries
	signals trackingin.Usecase
}

func NewCLIHandler(usecase trackingin.Usecase) CLIHandler {
	return CLIHandler{queries: usecase, signals: usecase}
}

// NewReportHandler serves reports only; signal methods fail.
func NewReportHandler(queries trackingin.Queries) CLIHandler {
	return CLIHandler{queries: queries}
}

func (h CLIHandler) Play(ctx context.Context, title, url string, tabID *int64) error {
	return h.playback(ctx, title, url, true, tabID)
}

func (h CLIHandler) Pause(ctx context.Context, url string, tabID *int64) error {
	return h.playback(ctx, "", url, false, tabID)
}

func (h CLIHandler) TabUpdated(ctx context.Context, tabID int64, url string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("%w: url is required", apperrors.ErrInvalidInput)
	}
	if h.signals == nil {
		return fmt.Errorf("%w: signals need a running daemon", apperrors.ErrInvalidState)
	}
	return h.signals.ReportTab(ctx, dto.TabInput{TabID: tabID, URL: url})
}

func (h CLIHandler) TabClosed(ctx context.Context, tabID int64) error {
	if h.signals == nil {
		return fmt.Errorf("%w: signals need a running daemon", apperrors.ErrInvalidState)
	}
	return h.signals.ReportTab(ctx, dto.TabInput{TabID: tabID, Closed: true})
}

func (h CLIHandler) Status(ctx context.Context) (dto.StatusOutput, error) {
	return h.queries.Status(ctx)
}

// Report collects the status plus watch time over the trailing rangeHours.
func (h CLIHandler) Report(ctx context.Context, rangeHours float64, now time.Time) (dto.ReportOutput, error) {
	if rangeHours < 0 {
		return dto.ReportOutput{}, fmt.Errorf("%w: range hours must not be negative", apperrors.ErrInvalidInput)
	}
	status, err := h.queries.Status(ctx)
	if err != nil {
		return dto.ReportOutput{}, err
	}
	watch, err := h.queries.WatchTime(ctx, rangeHours)
	if err != nil {
		return dto.ReportOutput{}, err
	}
	return dto.ReportOutput{
		GeneratedAt: now,
		Status:      status,
		RangeHours:  watch.RangeHours,
		RangeMillis: watch.Millis,
	}, nil
}

func (h CLIHandler) playback(ctx context.Context, title, url string, playing bool, tabID *int64) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("%w: url is required", apperrors.ErrInvalidInput)
	}
	if h.signals == nil {
		return fmt.Errorf("%w: signals need a running daemon", apperrors.ErrInvalidState)
	}
	return h.signals.ReportPlayback(ctx, dto.PlaybackInput{Title: title, URL: url, IsPlaying: playing, TabID: tabID})
}
