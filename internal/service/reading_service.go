package service

import (
	"context"
	"fmt"

	"SoilMonitorAPI/internal/apperr"
	"SoilMonitorAPI/internal/live"
	"SoilMonitorAPI/internal/models"
	"SoilMonitorAPI/internal/repository"
)

const (
	defaultReadingLimit = 100
	maxReadingLimit     = 1000
)

// IReadingService serves stored readings to the HTTP layer and the live snapshot.
type IReadingService interface {
	GetRecent(ctx context.Context, limit int) ([]models.Reading, error)
	GetBySensor(ctx context.Context, sensorID string, limit int) ([]models.Reading, error)
	GetLatestPerSensor(ctx context.Context) ([]models.Reading, error)
	QueryRange(ctx context.Context, q models.ReadingRangeQuery) ([]models.Reading, error)
}

type ReadingService struct {
	readings     repository.IReadingRepository
	status       *StatusAggregator
	snapshotSize int
}

func NewReadingService(readings repository.IReadingRepository, status *StatusAggregator, snapshotSize int) *ReadingService {
	return &ReadingService{
		readings:     readings,
		status:       status,
		snapshotSize: snapshotSize,
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultReadingLimit
	}
	if limit > maxReadingLimit {
		return maxReadingLimit
	}
	return limit
}

func (s *ReadingService) GetRecent(ctx context.Context, limit int) ([]models.Reading, error) {
	readings, err := s.readings.GetRecent(ctx, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get readings: %w", err)
	}
	return readings, nil
}

func (s *ReadingService) GetBySensor(ctx context.Context, sensorID string, limit int) ([]models.Reading, error) {
	if sensorID == "" {
		return nil, apperr.NewValidation("get readings by sensor", "sensor id is required")
	}
	readings, err := s.readings.GetBySensor(ctx, sensorID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get readings for %s: %w", sensorID, err)
	}
	return readings, nil
}

func (s *ReadingService) GetLatestPerSensor(ctx context.Context) ([]models.Reading, error) {
	readings, err := s.readings.GetLatestPerSensor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest readings: %w", err)
	}
	return readings, nil
}

// QueryRange rejects inverted bounds and caps the result at models.MaxExportRows.
func (s *ReadingService) QueryRange(ctx context.Context, q models.ReadingRangeQuery) ([]models.Reading, error) {
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return nil, apperr.NewValidation("query readings", "end_date is before start_date")
	}
	if q.Limit <= 0 || q.Limit > models.MaxExportRows {
		q.Limit = models.MaxExportRows
	}

	readings, err := s.readings.QueryRange(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	return readings, nil
}

// Snapshot returns the newest readings and the current status for a new subscriber.
func (s *ReadingService) Snapshot(ctx context.Context) (live.Snapshot, error) {
	readings, err := s.readings.GetRecent(ctx, s.snapshotSize)
	if err != nil {
		return live.Snapshot{}, fmt.Errorf("failed to build snapshot: %w", err)
	}

	status, err := s.status.ComputeStatus(ctx)
	if err != nil {
		return live.Snapshot{}, fmt.Errorf("failed to build snapshot: %w", err)
	}

	return live.Snapshot{Readings: readings, Status: status}, nil
}
