package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"SoilMonitorAPI/internal/apperr"
	"SoilMonitorAPI/internal/live"
	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/metrics"
	"SoilMonitorAPI/internal/models"
	"SoilMonitorAPI/internal/repository"
)

// Publisher accepts pipeline events for fan-out. *live.Hub implements it.
type Publisher interface {
	Publish(ev live.Event) bool
}

type LoopState int32

const (
	StateIdle LoopState = iota
	StateRunning
)

func (s LoopState) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

var ErrLoopRunning = errors.New("ingestion loop already running")

// CycleResult describes what one ingestion cycle stored. Status is nil when no alert
// was persisted or the status could not be computed.
type CycleResult struct {
	Reading models.Reading       `json:"reading"`
	Alerts  []models.Alert       `json:"alerts"`
	Status  *models.SystemStatus `json:"status,omitempty"`
}

type IngestionLoop struct {
	readings  repository.IReadingRepository
	evaluator *Evaluator
	alerts    *AlertService
	status    *StatusAggregator
	publisher Publisher
	source    ReadingSource
	interval  time.Duration
	log       *logger.Logger
	now       func() time.Time
	state     atomic.Int32
}

func NewIngestionLoop(
	readings repository.IReadingRepository,
	evaluator *Evaluator,
	alerts *AlertService,
	status *StatusAggregator,
	publisher Publisher,
	source ReadingSource,
	interval time.Duration,
	log *logger.Logger,
) *IngestionLoop {
	return &IngestionLoop{
		readings:  readings,
		evaluator: evaluator,
		alerts:    alerts,
		status:    status,
		publisher: publisher,
		source:    source,
		interval:  interval,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (l *IngestionLoop) State() LoopState {
	return LoopState(l.state.Load())
}

// Run pulls a reading from the source every interval and runs a cycle on it until ctx
// is cancelled. A cycle that has started is allowed to finish.
func (l *IngestionLoop) Run(ctx context.Context) error {
	if l.source == nil {
		return errors.New("ingestion loop has no reading source")
	}
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrLoopRunning
	}
	defer l.state.Store(int32(StateIdle))

	l.log.Info("Ingestion loop started (interval %s)", l.interval)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.log.Info("Ingestion loop stopped")
			return nil
		case <-ticker.C:
			reading, err := l.source.Next(ctx)
			if err != nil {
				if ctx.Err() == nil {
					l.log.Warn("Reading source failed: %v", err)
				}
				continue
			}
			// Store writes are not cancelled mid-cycle on shutdown.
			if _, err := l.RunCycle(context.WithoutCancel(ctx), reading); err != nil {
				l.log.Debug("Cycle ended with error: %v", err)
			}
		}
	}
}

// RunCycle validates, stores and evaluates one reading, persists any alerts, and
// publishes the results. A reading that cannot be stored abandons the cycle with
// nothing published. A partial alert batch is published and its error returned.
func (l *IngestionLoop) RunCycle(ctx context.Context, reading models.Reading) (*CycleResult, error) {
	start := time.Now()
	defer func() { metrics.IngestCycleDuration.Observe(time.Since(start).Seconds()) }()

	if reading.Timestamp.IsZero() {
		reading.Timestamp = l.now()
	}
	reading.ID = 0

	if err := reading.Validate(); err != nil {
		metrics.IngestCyclesTotal.WithLabelValues("invalid").Inc()
		l.log.Warn("Rejected reading from %q: %v", reading.SensorID, err)
		return nil, err
	}

	if err := l.readings.Insert(ctx, &reading); err != nil {
		metrics.IngestCyclesTotal.WithLabelValues("store_failed").Inc()
		l.log.Error("Failed to store reading from %s, skipping cycle: %v", reading.SensorID, err)
		if !apperr.IsStoreUnavailable(err) {
			err = apperr.NewStoreUnavailable("insert reading", err)
		}
		return nil, err
	}
	metrics.IngestCyclesTotal.WithLabelValues("stored").Inc()

	result := &CycleResult{Reading: reading}
	var persistErr error

	if candidates := l.evaluator.Evaluate(reading); len(candidates) > 0 {
		result.Alerts, persistErr = l.alerts.PersistAll(ctx, candidates)
		if persistErr != nil {
			l.log.Error("Persisted %d of %d alerts for %s", len(result.Alerts), len(candidates), reading.SensorID)
		}

		if len(result.Alerts) > 0 {
			status, err := l.status.ComputeStatus(ctx)
			if err != nil {
				l.log.Error("Failed to compute status after alerts: %v", err)
			} else {
				result.Status = &status
			}
		}
	}

	l.publish(result)

	l.log.Debug("Cycle complete: sensor=%s alerts=%d", reading.SensorID, len(result.Alerts))
	return result, persistErr
}

func (l *IngestionLoop) publish(result *CycleResult) {
	if l.publisher == nil {
		return
	}
	l.publisher.Publish(live.ReadingCreated{Reading: result.Reading})
	if len(result.Alerts) == 0 {
		return
	}
	l.publisher.Publish(live.AlertsCreated{Alerts: result.Alerts})
	if result.Status != nil {
		l.publisher.Publish(live.StatusChanged{Status: *result.Status})
	}
}
