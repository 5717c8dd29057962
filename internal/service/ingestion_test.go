package service

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"SoilMonitorAPI/internal/apperr"
	"SoilMonitorAPI/internal/live"
	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/models"
	"SoilMonitorAPI/internal/repository"
)

type pipeline struct {
	readings  *failingReadingRepo
	alerts    repository.IAlertRepository
	publisher *recordingPublisher
	loop      *IngestionLoop
}

func newPipeline(alertRepo repository.IAlertRepository, source ReadingSource, interval time.Duration) *pipeline {
	log := logger.Discard()
	readings := &failingReadingRepo{MemoryReadingRepository: repository.NewMemoryReadingRepository()}
	alertSvc := NewAlertService(alertRepo, log)
	status := NewStatusAggregator(alertRepo)
	pub := &recordingPublisher{}

	loop := NewIngestionLoop(readings, NewEvaluator(models.DefaultThresholds), alertSvc, status, pub, source, interval, log)
	return &pipeline{readings: readings, alerts: alertRepo, publisher: pub, loop: loop}
}

func TestRunCycleHealthyReadingPublishesOnlyReading(t *testing.T) {
	p := newPipeline(repository.NewMemoryAlertRepository(), nil, time.Second)

	result, err := p.loop.RunCycle(context.Background(), healthyReading())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if result.Reading.ID == 0 || len(result.Alerts) != 0 || result.Status != nil {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := p.publisher.kinds(); !reflect.DeepEqual(got, []string{live.EventReadingCreated}) {
		t.Fatalf("published %v", got)
	}
}

func TestRunCycleWithAlertsPublishesAllThreeInOrder(t *testing.T) {
	p := newPipeline(repository.NewMemoryAlertRepository(), nil, time.Second)
	r := healthyReading()
	r.SoilMoisture = 50
	r.PHLevel = 8.0
	r.Temperature = 40
	r.BatteryLevel = 10

	result, err := p.loop.RunCycle(context.Background(), r)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(result.Alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(result.Alerts))
	}

	want := []string{live.EventReadingCreated, live.EventAlertsCreated, live.EventStatusChanged}
	if got := p.publisher.kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("published %v, want %v", got, want)
	}

	alertsEv := p.publisher.events[1].(live.AlertsCreated)
	if len(alertsEv.Alerts) != 3 {
		t.Errorf("alerts-created carries %d alerts", len(alertsEv.Alerts))
	}
	statusEv := p.publisher.events[2].(live.StatusChanged)
	if statusEv.Status.UnreadCount != 3 || statusEv.Status.OverallStatus != models.StatusWarning {
		t.Errorf("status not computed after persistence: %+v", statusEv.Status)
	}
}

func TestRunCycleStoreFailureAbandonsCycle(t *testing.T) {
	p := newPipeline(repository.NewMemoryAlertRepository(), nil, time.Second)
	p.readings.setFail(true)

	r := healthyReading()
	r.SoilMoisture = 5

	_, err := p.loop.RunCycle(context.Background(), r)
	if !apperr.IsStoreUnavailable(err) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if n, _ := p.alerts.UnreadCount(context.Background()); n != 0 {
		t.Errorf("alerts evaluated despite store failure: %d", n)
	}
	if got := p.publisher.kinds(); len(got) != 0 {
		t.Errorf("published %v after store failure", got)
	}
}

func TestRunCycleRejectsInvalidReading(t *testing.T) {
	p := newPipeline(repository.NewMemoryAlertRepository(), nil, time.Second)
	r := healthyReading()
	r.SoilMoisture = 140

	if _, err := p.loop.RunCycle(context.Background(), r); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	stored, _ := p.readings.GetRecent(context.Background(), 10)
	if len(stored) != 0 {
		t.Errorf("invalid reading was stored")
	}
}

func TestRunCycleFillsMissingTimestamp(t *testing.T) {
	p := newPipeline(repository.NewMemoryAlertRepository(), nil, time.Second)
	p.loop.now = func() time.Time { return t0 }

	r := healthyReading()
	r.Timestamp = time.Time{}

	result, err := p.loop.RunCycle(context.Background(), r)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !result.Reading.Timestamp.Equal(t0) {
		t.Errorf("timestamp = %s", result.Reading.Timestamp)
	}
}

func TestRunCyclePartialAlertBatch(t *testing.T) {
	p := newPipeline(newFlakyAlertRepo(2), nil, time.Second)
	r := healthyReading()
	r.SoilMoisture = 10
	r.Temperature = 40

	result, err := p.loop.RunCycle(context.Background(), r)
	if !apperr.IsStoreUnavailable(err) {
		t.Fatalf("expected partial failure reported, got %v", err)
	}
	if len(result.Alerts) != 1 || result.Alerts[0].Type != models.AlertCritical {
		t.Fatalf("expected the critical alert persisted, got %+v", result.Alerts)
	}

	want := []string{live.EventReadingCreated, live.EventAlertsCreated, live.EventStatusChanged}
	if got := p.publisher.kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("published %v", got)
	}

	// The next cycle is unaffected.
	p.publisher.reset()
	if _, err := p.loop.RunCycle(context.Background(), healthyReading()); err != nil {
		t.Fatalf("next cycle: %v", err)
	}
}

type countingSource struct {
	calls atomic.Int32
}

func (s *countingSource) Next(ctx context.Context) (models.Reading, error) {
	s.calls.Add(1)
	r := healthyReading()
	r.Timestamp = time.Now().UTC()
	return r, ctx.Err()
}

func TestRunTicksUntilCancelled(t *testing.T) {
	source := &countingSource{}
	p := newPipeline(repository.NewMemoryAlertRepository(), source, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.loop.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for source.calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("loop did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if p.loop.State() != StateRunning {
		t.Errorf("state = %s while running", p.loop.State())
	}
	if err := p.loop.Run(ctx); err != ErrLoopRunning {
		t.Errorf("second Run = %v, want ErrLoopRunning", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	if p.loop.State() != StateIdle {
		t.Errorf("state = %s after stop", p.loop.State())
	}

	stored, _ := p.readings.GetRecent(context.Background(), 100)
	if len(stored) < 3 {
		t.Errorf("expected at least 3 stored readings, got %d", len(stored))
	}
}

func TestRunSurvivesStoreOutage(t *testing.T) {
	source := &countingSource{}
	p := newPipeline(repository.NewMemoryAlertRepository(), source, 5*time.Millisecond)
	p.readings.setFail(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.loop.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for source.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("loop stopped ticking during outage")
		}
		time.Sleep(5 * time.Millisecond)
	}

	p.readings.setFail(false)
	for {
		stored, _ := p.readings.GetRecent(context.Background(), 1)
		if len(stored) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("loop did not recover after outage")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
