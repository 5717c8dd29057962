package mqtt

import (
	"context"
	"errors"
	"testing"

	"SoilMonitorAPI/internal/apperr"
	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/models"
	"SoilMonitorAPI/internal/service"
)

func TestMatchTopic(t *testing.T) {
	cases := []struct {
		pattern, topic string
		want           bool
	}{
		{"soil/sensors/+/readings", "soil/sensors/sensor_1/readings", true},
		{"soil/sensors/+/readings", "soil/sensors/sensor_1/status", false},
		{"soil/sensors/+/readings", "soil/sensors/readings", false},
		{"soil/#", "soil/sensors/sensor_1/readings", true},
		{"soil/sensors/sensor_1/readings", "soil/sensors/sensor_1/readings", true},
		{"soil/+", "soil/sensors/x", false},
	}
	for _, c := range cases {
		if got := matchTopic(c.pattern, c.topic); got != c.want {
			t.Errorf("matchTopic(%q, %q) = %v, want %v", c.pattern, c.topic, got, c.want)
		}
	}
}

func TestDecodeReadingTakesSensorFromTopic(t *testing.T) {
	payload := []byte(`{"soil_moisture": 33, "ph_level": 6.1, "battery_level": 70, "location": {"name": "Batac Farm 2"}}`)

	r, err := decodeReading("soil/sensors/sensor_2/readings", payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.SensorID != "sensor_2" || r.SoilMoisture != 33 || r.Location.Name != "Batac Farm 2" {
		t.Fatalf("unexpected reading %+v", r)
	}
}

func TestDecodeReadingRejectsMismatchAndBadJSON(t *testing.T) {
	if _, err := decodeReading("soil/sensors/sensor_2/readings", []byte(`{"sensor_id": "sensor_9"}`)); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for mismatched sensor, got %v", err)
	}
	if _, err := decodeReading("soil/sensors/sensor_2/readings", []byte(`{not json`)); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for bad JSON, got %v", err)
	}
}

type stubIngester struct {
	got  []models.Reading
	ctxs []context.Context
	err  error
}

func (s *stubIngester) RunCycle(ctx context.Context, r models.Reading) (*service.CycleResult, error) {
	s.got = append(s.got, r)
	s.ctxs = append(s.ctxs, ctx)
	if s.err != nil {
		return nil, s.err
	}
	return &service.CycleResult{Reading: r}, nil
}

func TestReadingHandlerRunsCycle(t *testing.T) {
	ingest := &stubIngester{}
	handler := NewReadingHandler(ingest, logger.Discard())

	if err := handler("soil/sensors/sensor_4/readings", []byte(`{"soil_moisture": 50}`)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(ingest.got) != 1 || ingest.got[0].SensorID != "sensor_4" {
		t.Fatalf("unexpected ingested readings %+v", ingest.got)
	}

	ingest.err = apperr.NewStoreUnavailable("insert reading", errors.New("down"))
	if err := handler("soil/sensors/sensor_4/readings", []byte(`{}`)); !apperr.IsStoreUnavailable(err) {
		t.Fatalf("expected store error to surface, got %v", err)
	}
}

func TestReadingHandlerCycleHasNoDeadline(t *testing.T) {
	ingest := &stubIngester{}
	handler := NewReadingHandler(ingest, logger.Discard())

	if err := handler("soil/sensors/sensor_2/readings", []byte(`{"soil_moisture": 45}`)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(ingest.ctxs) != 1 {
		t.Fatalf("RunCycle called %d times", len(ingest.ctxs))
	}
	if _, ok := ingest.ctxs[0].Deadline(); ok {
		t.Error("cycle context carries a deadline")
	}
	if err := ingest.ctxs[0].Err(); err != nil {
		t.Errorf("cycle context already done: %v", err)
	}
}
