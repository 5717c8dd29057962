package service

import (
	"context"
	"fmt"

	"SoilMonitorAPI/internal/models"
	"SoilMonitorAPI/internal/repository"
)

const (
	statusWindow       = 5
	statusRecentAlerts = 3
)

// StatusAggregator derives the system-wide health verdict from recent alert history.
// It only reads, so it is safe to call while ingestion is writing.
type StatusAggregator struct {
	alerts repository.IAlertRepository
}

func NewStatusAggregator(alerts repository.IAlertRepository) *StatusAggregator {
	return &StatusAggregator{alerts: alerts}
}

// ComputeStatus looks at the unread count and the five newest alerts, read or not.
func (a *StatusAggregator) ComputeStatus(ctx context.Context) (models.SystemStatus, error) {
	unread, err := a.alerts.UnreadCount(ctx)
	if err != nil {
		return models.SystemStatus{}, fmt.Errorf("failed to compute status: %w", err)
	}

	recent, err := a.alerts.GetRecent(ctx, statusWindow, true)
	if err != nil {
		return models.SystemStatus{}, fmt.Errorf("failed to compute status: %w", err)
	}

	return models.SystemStatus{
		OverallStatus: overallStatus(unread, recent),
		UnreadCount:   unread,
		RecentAlerts:  firstN(recent, statusRecentAlerts),
	}, nil
}

func overallStatus(unread int, recent []models.Alert) models.OverallStatus {
	if unread == 0 {
		return models.StatusHealthy
	}
	for _, a := range recent {
		if a.Type == models.AlertCritical {
			return models.StatusCritical
		}
	}
	return models.StatusWarning
}

func firstN(alerts []models.Alert, n int) []models.Alert {
	if len(alerts) > n {
		alerts = alerts[:n]
	}
	out := make([]models.Alert, len(alerts))
	copy(out, alerts)
	return out
}
