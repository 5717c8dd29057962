package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"SoilMonitorAPI/internal/apperr"
	"SoilMonitorAPI/internal/live"
	"SoilMonitorAPI/internal/models"
	"SoilMonitorAPI/internal/repository"
)

var errStoreDown = errors.New("connection refused")

// flakyAlertRepo fails the inserts whose 1-based call number is in failOn.
type flakyAlertRepo struct {
	*repository.MemoryAlertRepository
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
}

func newFlakyAlertRepo(failOn ...int) *flakyAlertRepo {
	r := &flakyAlertRepo{
		MemoryAlertRepository: repository.NewMemoryAlertRepository(),
		failOn:                make(map[int]bool),
	}
	for _, n := range failOn {
		r.failOn[n] = true
	}
	return r
}

func (r *flakyAlertRepo) Insert(ctx context.Context, alert *models.Alert) error {
	r.mu.Lock()
	r.calls++
	fail := r.failOn[r.calls]
	r.mu.Unlock()

	if fail {
		return apperr.NewStoreUnavailable("insert alert", errStoreDown)
	}
	return r.MemoryAlertRepository.Insert(ctx, alert)
}

type failingReadingRepo struct {
	*repository.MemoryReadingRepository
	mu   sync.Mutex
	fail bool
}

func (r *failingReadingRepo) setFail(fail bool) {
	r.mu.Lock()
	r.fail = fail
	r.mu.Unlock()
}

func (r *failingReadingRepo) Insert(ctx context.Context, reading *models.Reading) error {
	r.mu.Lock()
	fail := r.fail
	r.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return r.MemoryReadingRepository.Insert(ctx, reading)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []live.Event
}

func (p *recordingPublisher) Publish(ev live.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return true
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind())
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

// stepClock returns a clock that advances by one second on every call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}
