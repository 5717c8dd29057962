package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"SoilMonitorAPI/internal/live"
	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/models"
	"SoilMonitorAPI/internal/repository"
	"SoilMonitorAPI/internal/service"

	"github.com/gorilla/mux"
)

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
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind()
	}
	return out
}

type fixture struct {
	router    *mux.Router
	readings  *repository.MemoryReadingRepository
	alerts    *repository.MemoryAlertRepository
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()

	readingRepo := repository.NewMemoryReadingRepository()
	alertRepo := repository.NewMemoryAlertRepository()
	pub := &recordingPublisher{}

	status := service.NewStatusAggregator(alertRepo)
	alertSvc := service.NewAlertService(alertRepo, log)
	readingSvc := service.NewReadingService(readingRepo, status, 10)
	loop := service.NewIngestionLoop(readingRepo, service.NewEvaluator(models.DefaultThresholds),
		alertSvc, status, pub, nil, time.Second, log)

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	readingHandler := NewReadingHandler(readingSvc, loop, log)
	readingHandler.RegisterRoutes(api)
	readingHandler.RegisterIngestRoutes(api)
	NewAlertHandler(alertSvc, status, pub, log).RegisterRoutes(api)
	NewExportHandler(readingSvc, log).RegisterRoutes(api)

	return &fixture{router: r, readings: readingRepo, alerts: alertRepo, publisher: pub}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func dryReading(sensor string, ts time.Time) models.Reading {
	return models.Reading{
		SensorID:     sensor,
		Location:     models.Location{Name: "Batac Farm - North Field", Lat: 18.0553, Lng: 120.5659},
		SoilMoisture: 20,
		Temperature:  30,
		Humidity:     70,
		PHLevel:      6.5,
		Nitrogen:     40,
		Phosphorus:   30,
		Potassium:    50,
		BatteryLevel: 80,
		Timestamp:    ts,
	}
}

func TestIngestRunsCycleAndPublishes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/readings", dryReading("sensor_1", time.Now().UTC()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	result := decode[service.CycleResult](t, rec)
	if result.Reading.ID == 0 {
		t.Error("reading id not assigned")
	}
	if len(result.Alerts) != 1 || result.Alerts[0].Type != models.AlertCritical {
		t.Fatalf("alerts = %+v, want one critical", result.Alerts)
	}
	if result.Status == nil || result.Status.OverallStatus != models.StatusCritical {
		t.Errorf("status = %+v, want critical", result.Status)
	}

	want := []string{live.EventReadingCreated, live.EventAlertsCreated, live.EventStatusChanged}
	if got := f.publisher.kinds(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodPost, "/api/v1/readings", "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}

	bad := dryReading("sensor_1", time.Now().UTC())
	bad.SoilMoisture = 150
	rec := f.do(t, http.MethodPost, "/api/v1/readings", bad)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid reading status = %d", rec.Code)
	}
	if msg := decode[ErrorResponse](t, rec).Error; !strings.Contains(msg, "soil_moisture") {
		t.Errorf("error = %q", msg)
	}
	if len(f.publisher.kinds()) != 0 {
		t.Error("rejected reading was published")
	}
}

type ctxCapturingRunner struct {
	ctx context.Context
}

func (c *ctxCapturingRunner) RunCycle(ctx context.Context, reading models.Reading) (*service.CycleResult, error) {
	c.ctx = ctx
	return &service.CycleResult{Reading: reading}, nil
}

func TestIngestCycleOutlivesRequestContext(t *testing.T) {
	runner := &ctxCapturingRunner{}
	h := NewReadingHandler(nil, runner, logger.Discard())

	body, _ := json.Marshal(dryReading("sensor_1", time.Now().UTC()))
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/readings", bytes.NewReader(body)).WithContext(ctx)
	cancel()

	rec := httptest.NewRecorder()
	h.Ingest(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if runner.ctx == nil {
		t.Fatal("RunCycle not called")
	}
	if err := runner.ctx.Err(); err != nil {
		t.Errorf("cycle context cancelled with the request: %v", err)
	}
}

func TestReadingQueries(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	for i, sensor := range []string{"sensor_1", "sensor_2", "sensor_1"} {
		r := dryReading(sensor, base.Add(time.Duration(i)*time.Minute))
		r.SoilMoisture = 60
		if rec := f.do(t, http.MethodPost, "/api/v1/readings", r); rec.Code != http.StatusCreated {
			t.Fatalf("seed %d: status %d", i, rec.Code)
		}
	}

	all := decode[[]models.Reading](t, f.do(t, http.MethodGet, "/api/v1/readings?limit=2", nil))
	if len(all) != 2 || !all[0].Timestamp.After(all[1].Timestamp) {
		t.Errorf("recent = %+v, want 2 newest first", all)
	}

	latest := decode[[]models.Reading](t, f.do(t, http.MethodGet, "/api/v1/readings/latest", nil))
	if len(latest) != 2 {
		t.Fatalf("latest = %d readings, want 2", len(latest))
	}
	for _, r := range latest {
		if r.SensorID == "sensor_1" && !r.Timestamp.Equal(base.Add(2*time.Minute)) {
			t.Errorf("latest sensor_1 at %v", r.Timestamp)
		}
	}

	bySensor := decode[[]models.Reading](t, f.do(t, http.MethodGet, "/api/v1/readings/sensor/sensor_2", nil))
	if len(bySensor) != 1 || bySensor[0].SensorID != "sensor_2" {
		t.Errorf("by sensor = %+v", bySensor)
	}

	empty := f.do(t, http.MethodGet, "/api/v1/readings/sensor/sensor_9", nil)
	if strings.TrimSpace(empty.Body.String()) != "[]" {
		t.Errorf("unknown sensor body = %s, want []", empty.Body.String())
	}
}

func TestAlertAcknowledgement(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/readings", dryReading("sensor_1", time.Now().UTC()))
	f.do(t, http.MethodPost, "/api/v1/readings", dryReading("sensor_2", time.Now().UTC()))

	unread := decode[[]models.Alert](t, f.do(t, http.MethodGet, "/api/v1/alerts", nil))
	if len(unread) != 2 {
		t.Fatalf("unread = %d, want 2", len(unread))
	}

	rec := f.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/alerts/%d/read", unread[0].ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read status = %d", rec.Code)
	}
	acked := decode[models.Alert](t, rec)
	if !acked.IsRead || acked.AcknowledgedAt == nil {
		t.Errorf("acked = %+v", acked)
	}

	if got := decode[[]models.Alert](t, f.do(t, http.MethodGet, "/api/v1/alerts", nil)); len(got) != 1 {
		t.Errorf("unread after ack = %d, want 1", len(got))
	}
	if got := decode[[]models.Alert](t, f.do(t, http.MethodGet, "/api/v1/alerts?include_read=true", nil)); len(got) != 2 {
		t.Errorf("all after ack = %d, want 2", len(got))
	}

	before := len(f.publisher.kinds())
	if rec := f.do(t, http.MethodPatch, "/api/v1/alerts/read-all", nil); rec.Code != http.StatusOK {
		t.Fatalf("read-all status = %d", rec.Code)
	}
	kinds := f.publisher.kinds()
	if len(kinds) != before+1 || kinds[len(kinds)-1] != live.EventStatusChanged {
		t.Errorf("events after read-all = %v", kinds[before:])
	}

	status := decode[models.SystemStatus](t, f.do(t, http.MethodGet, "/api/v1/alerts/system-status", nil))
	if status.OverallStatus != models.StatusHealthy || status.UnreadCount != 0 {
		t.Errorf("status = %+v, want healthy with 0 unread", status)
	}
	if len(status.RecentAlerts) != 2 {
		t.Errorf("recent alerts = %d, want 2", len(status.RecentAlerts))
	}
}

func TestMarkReadErrors(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodPatch, "/api/v1/alerts/abc/read", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id status = %d", rec.Code)
	}
	rec := f.do(t, http.MethodPatch, "/api/v1/alerts/999/read", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d", rec.Code)
	}
}

func TestExportReadings(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, ts := range []time.Time{day.Add(6 * time.Hour), day.Add(23 * time.Hour), day.Add(30 * time.Hour)} {
		r := dryReading("sensor_1", ts)
		r.SoilMoisture = 60
		f.do(t, http.MethodPost, "/api/v1/readings", r)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/export/readings/json?start_date=2024-06-01&end_date=2024-06-01&sensor_id=all", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, `attachment; filename="soil-data-`) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	var doc struct {
		Metadata struct {
			RecordCount int `json:"recordCount"`
			DateRange   struct {
				Start string `json:"start"`
				End   string `json:"end"`
			} `json:"dateRange"`
			Sensor string `json:"sensor"`
		} `json:"metadata"`
		Data []models.Reading `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Metadata.RecordCount != 2 || len(doc.Data) != 2 {
		t.Errorf("records = %d/%d, want 2 (whole day, next day excluded)", doc.Metadata.RecordCount, len(doc.Data))
	}
	if doc.Metadata.Sensor != "all" || doc.Metadata.DateRange.Start != "2024-06-01" {
		t.Errorf("metadata = %+v", doc.Metadata)
	}

	csvRec := f.do(t, http.MethodGet, "/api/v1/export/readings/csv", nil)
	if csvRec.Code != http.StatusOK || csvRec.Header().Get("Content-Type") != "text/csv" {
		t.Errorf("csv status = %d type = %q", csvRec.Code, csvRec.Header().Get("Content-Type"))
	}
	if lines := strings.Count(strings.TrimSpace(csvRec.Body.String()), "\n"); lines != 3 {
		t.Errorf("csv rows = %d, want 3", lines)
	}
}

func TestExportErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/export/readings/xml", http.StatusBadRequest},
		{"/api/v1/export/readings/csv?start_date=yesterday", http.StatusBadRequest},
		{"/api/v1/export/readings/csv?start_date=2024-06-02&end_date=2024-06-01", http.StatusBadRequest},
		{"/api/v1/export/readings/csv?sensor_id=sensor_9", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := f.do(t, http.MethodGet, tt.path, nil); rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestBuildRangeQueryExtendsBareEndDate(t *testing.T) {
	q, err := buildRangeQuery("", "2024-06-01", "sensor_3")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 6, 1, 23, 59, 59, 999_000_000, time.UTC)
	if q.End == nil || !q.End.Equal(want) {
		t.Errorf("end = %v, want %v", q.End, want)
	}
	if q.Start != nil || q.SensorID != "sensor_3" || q.Limit != models.MaxExportRows {
		t.Errorf("query = %+v", q)
	}

	q, err = buildRangeQuery("", "2024-06-01T12:00:00Z", "")
	if err != nil {
		t.Fatal(err)
	}
	if !q.End.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp end was extended: %v", q.End)
	}
}

type stubStore struct{ err error }

func (s stubStore) Health(context.Context) error { return s.err }

type stubBroker bool

func (b stubBroker) IsConnected() bool { return bool(b) }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		store  StoreChecker
		broker BrokerChecker
		want   int
	}{
		{"memory store, no broker", nil, nil, http.StatusOK},
		{"store down", stubStore{err: errors.New("dial tcp: refused")}, nil, http.StatusServiceUnavailable},
		{"broker disconnected", stubStore{}, stubBroker(false), http.StatusServiceUnavailable},
		{"all up", stubStore{}, stubBroker(true), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mux.NewRouter()
			NewHealthHandler(tt.store, tt.broker, nil, logger.Discard()).RegisterRoutes(r)

			for _, path := range []string{"/health", "/health/ready"} {
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				if rec.Code != tt.want {
					t.Errorf("%s status = %d, want %d", path, rec.Code, tt.want)
				}
			}

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("liveness status = %d", rec.Code)
			}
		})
	}
}
