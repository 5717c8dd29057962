package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SoilMonitorAPI/internal/apperr"
	"SoilMonitorAPI/internal/models"
)

const maxMemoryReadings = 10000

// MemoryReadingRepository keeps the newest readings in a bounded buffer.
type MemoryReadingRepository struct {
	mu       sync.RWMutex
	buffer   []models.Reading
	capacity int
	nextID   int64
}

func NewMemoryReadingRepository() *MemoryReadingRepository {
	return &MemoryReadingRepository{
		buffer:   make([]models.Reading, 0, 128),
		capacity: maxMemoryReadings,
	}
}

func (s *MemoryReadingRepository) Insert(_ context.Context, reading *models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	reading.ID = s.nextID

	if len(s.buffer) >= s.capacity {
		s.buffer = s.buffer[1:]
	}
	s.buffer = append(s.buffer, *reading)
	return nil
}

// newestFirst copies the buffer matching keep, ordered by timestamp descending.
func (s *MemoryReadingRepository) newestFirst(keep func(models.Reading) bool) []models.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Reading, 0, len(s.buffer))
	for _, r := range s.buffer {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func truncate[T any](items []T, limit int) []T {
	if limit >= 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func (s *MemoryReadingRepository) GetRecent(_ context.Context, limit int) ([]models.Reading, error) {
	all := s.newestFirst(func(models.Reading) bool { return true })
	return truncate(all, limit), nil
}

func (s *MemoryReadingRepository) GetBySensor(_ context.Context, sensorID string, limit int) ([]models.Reading, error) {
	matched := s.newestFirst(func(r models.Reading) bool { return r.SensorID == sensorID })
	return truncate(matched, limit), nil
}

func (s *MemoryReadingRepository) GetLatestPerSensor(_ context.Context) ([]models.Reading, error) {
	seen := make(map[string]bool)
	var out []models.Reading
	for _, r := range s.newestFirst(func(models.Reading) bool { return true }) {
		if seen[r.SensorID] {
			continue
		}
		seen[r.SensorID] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out, nil
}

func (s *MemoryReadingRepository) QueryRange(_ context.Context, q models.ReadingRangeQuery) ([]models.Reading, error) {
	matched := s.newestFirst(func(r models.Reading) bool {
		if q.Start != nil && r.Timestamp.Before(*q.Start) {
			return false
		}
		if q.End != nil && r.Timestamp.After(*q.End) {
			return false
		}
		return q.SensorID == "" || r.SensorID == q.SensorID
	})
	return truncate(matched, clampExportLimit(q.Limit)), nil
}

// MemoryAlertRepository is an unbounded alert store used with DB_DRIVER=memory and in tests.
type MemoryAlertRepository struct {
	mu     sync.RWMutex
	alerts []models.Alert
	nextID int64
}

func NewMemoryAlertRepository() *MemoryAlertRepository {
	return &MemoryAlertRepository{}
}

func (s *MemoryAlertRepository) Insert(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	alert.ID = s.nextID
	s.alerts = append(s.alerts, *alert)
	return nil
}

func (s *MemoryAlertRepository) UnreadCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, a := range s.alerts {
		if !a.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *MemoryAlertRepository) GetRecent(_ context.Context, limit int, includeRead bool) ([]models.Alert, error) {
	s.mu.RLock()
	out := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if includeRead || !a.IsRead {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return truncate(out, limit), nil
}

func (s *MemoryAlertRepository) MarkRead(_ context.Context, id int64, at time.Time) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID != id {
			continue
		}
		if !s.alerts[i].IsRead {
			ack := at
			s.alerts[i].IsRead = true
			s.alerts[i].AcknowledgedAt = &ack
		}
		alert := s.alerts[i]
		return &alert, nil
	}
	return nil, apperr.NewNotFound("mark alert read", fmt.Sprintf("alert %d not found", id))
}

func (s *MemoryAlertRepository) MarkAllRead(_ context.Context, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for i := range s.alerts {
		if s.alerts[i].IsRead {
			continue
		}
		ack := at
		s.alerts[i].IsRead = true
		s.alerts[i].AcknowledgedAt = &ack
		changed++
	}
	return changed, nil
}
