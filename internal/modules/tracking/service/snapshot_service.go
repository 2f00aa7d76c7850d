package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	hclog "github.com/hashicorp/go-hclog"

	"watchtime/internal/modules/tracking/domain"
	trackingout "watchtime/internal/modules/tracking/port/out"
	apperrors "watchtime/internal/platform/errors"
)

const (
	TrackerKey = "tracker"

	corruptSuffix  = ".corrupt"
	maxLoggedBytes = 4096
)

// SnapshotService moves the Tracker aggregate in and out of a key-value store.
type SnapshotService struct {
	store  trackingout.KVStore
	logger hclog.Logger
}

func NewSnapshotService(store trackingout.KVStore, logger hclog.Logger) *SnapshotService {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &SnapshotService{store: store, logger: logger}
}

// Load rehydrates the tracker. A missing snapshot yields an empty tracker that
// is saved right away; a corrupt one is logged, copied aside and replaced the
// same way. Only store failures are returned.
func (s *SnapshotService) Load(ctx context.Context, name, description string) (*domain.Tracker, error) {
	payload, err := s.store.Get(ctx, TrackerKey)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Info("no snapshot found, starting empty tracker")
		return s.fresh(ctx, name, description)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	tracker, err := Decode(payload)
	if err != nil {
		s.logger.Error("discarding corrupt snapshot", "error", err, "payload", truncate(payload, maxLoggedBytes))
		if putErr := s.store.Put(ctx, TrackerKey+corruptSuffix, payload); putErr != nil {
			s.logger.Warn("could not keep corrupt snapshot", "error", putErr)
		}
		return s.fresh(ctx, name, description)
	}

	if tracker.Name == "" {
		tracker.Name = name
	}
	if tracker.Description == "" {
		tracker.Description = description
	}
	if sealed := tracker.SealOpenIntervals(); sealed > 0 {
		s.logger.Info("sealed intervals left open by previous run", "count", sealed)
	}
	if inverted := tracker.InvertedIntervals(); inverted > 0 {
		s.logger.Warn("snapshot contains intervals ending before they start", "count", inverted)
	}
	s.logger.Info("snapshot loaded", "records", len(tracker.Records()))
	return tracker, nil
}

// Peek decodes the stored snapshot without writing anything back. A missing
// snapshot yields an empty tracker.
func (s *SnapshotService) Peek(ctx context.Context, name, description string) (*domain.Tracker, error) {
	payload, err := s.store.Get(ctx, TrackerKey)
	if errors.Is(err, apperrors.ErrNotFound) {
		return domain.NewTracker(name, description), nil
	}
	if err != nil {
		return nil, fmt.Errorf("peek snapshot: %w", err)
	}
	tracker, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	tracker.SealOpenIntervals()
	return tracker, nil
}

func (s *SnapshotService) Save(ctx context.Context, tracker *domain.Tracker) error {
	payload, err := Encode(tracker)
	if err != nil {
		return err
	}
	return s.SaveEncoded(ctx, payload)
}

func (s *SnapshotService) SaveEncoded(ctx context.Context, payload []byte) error {
	if err := s.store.Put(ctx, TrackerKey, payload); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotService) fresh(ctx context.Context, name, description string) (*domain.Tracker, error) {
	tracker := domain.NewTracker(name, description)
	if err := s.Save(ctx, tracker); err != nil {
		s.logger.Warn("could not save initial snapshot", "error", err)
	}
	return tracker, nil
}

func Encode(tracker *domain.Tracker) ([]byte, error) {
	payload, err := json.Marshal(tracker.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return payload, nil
}

func Decode(payload []byte) (*domain.Tracker, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", apperrors.ErrCorruptSnapshot)
	}
	snap := domain.Snapshot{}
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptSnapshot, err)
	}
	return domain.Restore(snap)
}

func truncate(payload []byte, limit int) string {
	if len(payload) <= limit {
		return string(payload)
	}
	return string(payload[:limit]) + "..."
}
