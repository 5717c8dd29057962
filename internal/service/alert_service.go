package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/metrics"
	"SoilMonitorAPI/internal/models"
	"SoilMonitorAPI/internal/repository"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 1000
)

// IAlertService defines the business logic for handling alerts.
type IAlertService interface {
	Persist(ctx context.Context, candidate models.AlertCandidate) (*models.Alert, error)
	PersistAll(ctx context.Context, candidates []models.AlertCandidate) ([]models.Alert, error)
	ListAlerts(ctx context.Context, limit int, includeRead bool) ([]models.Alert, error)
	MarkRead(ctx context.Context, id int64) (*models.Alert, error)
	MarkAllRead(ctx context.Context) (int64, error)
}

type AlertService struct {
	repo repository.IAlertRepository
	log  *logger.Logger
	now  func() time.Time
}

func NewAlertService(repo repository.IAlertRepository, log *logger.Logger) *AlertService {
	return &AlertService{
		repo: repo,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Persist stores one candidate as a new unread alert.
func (s *AlertService) Persist(ctx context.Context, candidate models.AlertCandidate) (*models.Alert, error) {
	alert := &models.Alert{
		AlertCandidate: candidate,
		IsRead:         false,
		CreatedAt:      s.now(),
	}

	if err := s.repo.Insert(ctx, alert); err != nil {
		metrics.AlertPersistFailures.Inc()
		return nil, err
	}

	metrics.AlertsCreatedTotal.WithLabelValues(string(alert.Type)).Inc()
	return alert, nil
}

// PersistAll inserts candidates one at a time in order. A failed insert does not stop
// the remaining ones; the alerts that were stored are returned together with the
// joined insert errors.
func (s *AlertService) PersistAll(ctx context.Context, candidates []models.AlertCandidate) ([]models.Alert, error) {
	var (
		persisted []models.Alert
		errs      []error
	)

	for i, c := range candidates {
		alert, err := s.Persist(ctx, c)
		if err != nil {
			s.log.Error("Failed to persist alert %d/%d for sensor %s: %v", i+1, len(candidates), c.SensorID, err)
			errs = append(errs, err)
			continue
		}
		persisted = append(persisted, *alert)

		if alert.Type == models.AlertCritical {
			s.log.Warn("[CRITICAL ALERT] %s: %s (Sensor: %s)", alert.Title, alert.Message, alert.SensorID)
		}
	}

	return persisted, errors.Join(errs...)
}

// ListAlerts returns alerts newest first, unread only unless includeRead is set.
func (s *AlertService) ListAlerts(ctx context.Context, limit int, includeRead bool) ([]models.Alert, error) {
	if limit <= 0 {
		limit = defaultAlertLimit
	} else if limit > maxAlertLimit {
		limit = maxAlertLimit
	}

	alerts, err := s.repo.GetRecent(ctx, limit, includeRead)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// MarkRead acknowledges a single alert.
func (s *AlertService) MarkRead(ctx context.Context, id int64) (*models.Alert, error) {
	alert, err := s.repo.MarkRead(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to mark alert %d as read: %w", id, err)
	}
	return alert, nil
}

func (s *AlertService) MarkAllRead(ctx context.Context) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to mark all alerts as read: %w", err)
	}
	if count > 0 {
		s.log.Info("Marked %d alerts as read", count)
	}
	return count, nil
}
