package weather

import "time"

// Observation is one historical weather record for a city.
type Observation struct {
	City        string    `json:"city"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    int       `json:"humidity"`
	Pressure    int       `json:"pressure"`
	WindSpeed   float64   `json:"wind_speed"`
	Clouds      int       `json:"clouds"`
	Condition   string    `json:"weather"`
	Description string    `json:"description"`
	AQI         int       `json:"aqi"`
	PM25        float64   `json:"pm2_5"`
	PM10        float64   `json:"pm10"`
}

// Current is the wire shape for live conditions responses.
type Current struct {
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    int     `json:"humidity"`
	Pressure    int     `json:"pressure"`
	WindSpeed   float64 `json:"wind_speed"`
	Clouds      int     `json:"clouds"`
	Condition   string  `json:"weather"`
	Description string  `json:"description"`
	AQI         int     `json:"aqi"`
	AQICategory string  `json:"aqi_category"`
	PM25        float64 `json:"pm2_5"`
	PM10        float64 `json:"pm10"`
}

// Report bundles current conditions with forecast output for one city.
type Report struct {
	City         string          `json:"city"`
	Timestamp    time.Time       `json:"timestamp"`
	Current      Current         `json:"current"`
	Forecast     []ForecastPoint `json:"forecast,omitempty"`
	HealthAdvice string          `json:"health_advice,omitempty"`
	Source       string          `json:"source,omitempty"`
}

// ForecastPoint is a predicted temperature at a future time.
type ForecastPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
}

// CurrentFrom converts a stored or fetched observation into response form.
func CurrentFrom(obs Observation) Current {
	return Current{
		Temperature: obs.Temperature,
		FeelsLike:   obs.FeelsLike,
		Humidity:    obs.Humidity,
		Pressure:    obs.Pressure,
		WindSpeed:   obs.WindSpeed,
		Clouds:      obs.Clouds,
		Condition:   obs.Condition,
		Description: obs.Description,
		AQI:         obs.AQI,
		AQICategory: AQICategory(obs.AQI),
		PM25:        obs.PM25,
		PM10:        obs.PM10,
	}
}
