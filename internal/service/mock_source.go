package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"SoilMonitorAPI/internal/models"
)

// ReadingSource produces the next reading for a ticker-driven ingestion loop.
type ReadingSource interface {
	Next(ctx context.Context) (models.Reading, error)
}

var farmLocations = []models.Location{
	{Name: "Batac Farm 1", Lat: 18.0554, Lng: 120.5649},
	{Name: "Batac Farm 2", Lat: 18.0589, Lng: 120.5612},
	{Name: "Batac Farm 3", Lat: 18.0521, Lng: 120.5687},
	{Name: "Batac Farm 4", Lat: 18.0498, Lng: 120.5573},
	{Name: "Batac Farm 5", Lat: 18.0612, Lng: 120.5714},
}

const mockSensorCount = 5

// MockGenerator simulates field sensors for demos and local development.
type MockGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func NewMockGenerator(seed int64) *MockGenerator {
	return &MockGenerator{
		rnd: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (g *MockGenerator) Next(ctx context.Context) (models.Reading, error) {
	if err := ctx.Err(); err != nil {
		return models.Reading{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return models.Reading{
		SensorID:     fmt.Sprintf("sensor_%d", g.rnd.Intn(mockSensorCount)+1),
		Location:     farmLocations[g.rnd.Intn(len(farmLocations))],
		SoilMoisture: 30 + g.rnd.Intn(50),
		Temperature:  oneDecimal(25 + g.rnd.Float64()*10),
		Humidity:     60 + g.rnd.Intn(25),
		PHLevel:      oneDecimal(5.5 + g.rnd.Float64()*2.5),
		Nitrogen:     20 + g.rnd.Intn(60),
		Phosphorus:   15 + g.rnd.Intn(40),
		Potassium:    30 + g.rnd.Intn(70),
		BatteryLevel: 20 + g.rnd.Intn(80),
		Timestamp:    g.now(),
	}, nil
}

func oneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
