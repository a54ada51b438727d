package providers

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"skycast/weather"
)

// MockProvider generates plausible synthetic observations. It backs local
// development and serves as the lowest-priority fallback.
type MockProvider struct {
	baseTemps map[string]float64
	mu        sync.RWMutex
	rand      *rand.Rand
}

func NewMockProvider() *MockProvider {
	mp := &MockProvider{
		baseTemps: map[string]float64{
			"Delhi":     25.0,
			"Mumbai":    28.0,
			"Bangalore": 22.0,
			"Chennai":   29.0,
			"Kolkata":   27.0,
			"Hyderabad": 26.0,
		},
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	return mp
}

func (mp *MockProvider) Name() string {
	return "mock"
}

func (mp *MockProvider) Priority() int {
	return 0
}

func (mp *MockProvider) FetchCurrent(ctx context.Context, city string) (*weather.Observation, error) {
	obs := mp.generate(city, time.Now().UTC())
	return &obs, nil
}

func (mp *MockProvider) FetchHistory(ctx context.Context, city string, days int) ([]weather.Observation, error) {
	if days <= 0 {
		days = 7
	}
	now := time.Now().UTC().Truncate(time.Hour)
	history := make([]weather.Observation, 0, days*24)
	for i := days * 24; i > 0; i-- {
		history = append(history, mp.generate(city, now.Add(-time.Duration(i)*time.Hour)))
	}
	return history, nil
}

func (mp *MockProvider) HealthCheck() error {
	return nil
}

// generate produces an observation with a daily temperature cycle plus noise.
func (mp *MockProvider) generate(city string, at time.Time) weather.Observation {
	mp.mu.RLock()
	base, exists := mp.baseTemps[city]
	mp.mu.RUnlock()

	if !exists {
		mp.mu.Lock()
		base = 15.0 + mp.rand.Float64()*15.0
		mp.baseTemps[city] = base
		mp.mu.Unlock()
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	hour := float64(at.Hour())
	// Peak around 14:00, trough around 02:00.
	diurnal := 5.0 * math.Sin((hour-8.0)/24.0*2*math.Pi)
	temp := base + diurnal + (mp.rand.Float64()-0.5)*2.0

	humidity := 50 + mp.rand.Intn(40)
	clouds := mp.rand.Intn(100)
	condition := "Clear"
	description := "clear sky"
	if clouds > 70 {
		condition = "Clouds"
		description = "overcast clouds"
	} else if clouds > 40 {
		condition = "Clouds"
		description = "scattered clouds"
	}

	aqi := 1 + mp.rand.Intn(5)
	pm25 := float64(aqi)*18.0 + mp.rand.Float64()*10.0

	return weather.Observation{
		City:        city,
		Timestamp:   at,
		Temperature: round1(temp),
		FeelsLike:   round1(temp + float64(humidity-50)/25.0),
		Humidity:    humidity,
		Pressure:    1000 + mp.rand.Intn(25),
		WindSpeed:   round1(mp.rand.Float64() * 8.0),
		Clouds:      clouds,
		Condition:   condition,
		Description: description,
		AQI:         aqi,
		PM25:        round1(pm25),
		PM10:        round1(pm25 * 1.6),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
