package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"skycast/weather"
)

const openWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherProvider fetches live conditions and air quality from
// OpenWeatherMap. Calls go through a circuit breaker so a flapping upstream
// fails fast instead of tying up poll cycles.
type OpenWeatherProvider struct {
	apiKey  string
	client  *http.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker[*weather.Observation]
}

// NewOpenWeatherProvider creates the provider. timeout bounds each HTTP call.
func NewOpenWeatherProvider(apiKey string, timeout time.Duration) *OpenWeatherProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[*weather.Observation](gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &OpenWeatherProvider{
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		baseURL: openWeatherBaseURL,
		breaker: breaker,
	}
}

func (p *OpenWeatherProvider) Name() string {
	return "openweather"
}

func (p *OpenWeatherProvider) Priority() int {
	return 10
}

// FetchCurrent retrieves current weather plus air pollution for a city.
func (p *OpenWeatherProvider) FetchCurrent(ctx context.Context, city string) (*weather.Observation, error) {
	if p.apiKey == "" {
		return nil, errors.New("openweather api key not configured")
	}

	return p.breaker.Execute(func() (*weather.Observation, error) {
		current, err := p.fetchWeather(ctx, city)
		if err != nil {
			return nil, err
		}

		obs := &weather.Observation{
			City:        city,
			Timestamp:   time.Unix(current.Dt, 0).UTC(),
			Temperature: current.Main.Temp,
			FeelsLike:   current.Main.FeelsLike,
			Humidity:    current.Main.Humidity,
			Pressure:    current.Main.Pressure,
			WindSpeed:   current.Wind.Speed,
			Clouds:      current.Clouds.All,
		}
		if len(current.Weather) > 0 {
			obs.Condition = current.Weather[0].Main
			obs.Description = current.Weather[0].Description
		}

		// Air quality is best effort: a missing pollution reading should not
		// discard the weather observation.
		if air, err := p.fetchAirPollution(ctx, current.Coord.Lat, current.Coord.Lon); err == nil {
			obs.AQI = air.AQI
			obs.PM25 = air.PM25
			obs.PM10 = air.PM10
		}

		return obs, nil
	})
}

// FetchHistory is not available on the free OpenWeatherMap tier.
func (p *OpenWeatherProvider) FetchHistory(ctx context.Context, city string, days int) ([]weather.Observation, error) {
	return nil, errors.New("openweather history requires a paid plan")
}

// HealthCheck verifies the API answers for a known city.
func (p *OpenWeatherProvider) HealthCheck() error {
	if p.apiKey == "" {
		return errors.New("api key not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := p.fetchWeather(ctx, "London")
	return err
}

type owmCurrentResponse struct {
	Dt    int64 `json:"dt"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

type owmAirQuality struct {
	AQI  int
	PM25 float64
	PM10 float64
}

func (p *OpenWeatherProvider) fetchWeather(ctx context.Context, city string) (*owmCurrentResponse, error) {
	endpoint := fmt.Sprintf("%s/weather?q=%s&appid=%s&units=metric",
		p.baseURL, url.QueryEscape(city), p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrCityNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openweather returned status %d", resp.StatusCode)
	}

	var current owmCurrentResponse
	if err := json.NewDecoder(resp.Body).Decode(&current); err != nil {
		return nil, err
	}
	return &current, nil
}

func (p *OpenWeatherProvider) fetchAirPollution(ctx context.Context, lat, lon float64) (*owmAirQuality, error) {
	endpoint := fmt.Sprintf("%s/air_pollution?lat=%f&lon=%f&appid=%s",
		p.baseURL, lat, lon, p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("air pollution api returned status %d", resp.StatusCode)
	}

	var payload struct {
		List []struct {
			Main struct {
				AQI int `json:"aqi"`
			} `json:"main"`
			Components struct {
				PM25 float64 `json:"pm2_5"`
				PM10 float64 `json:"pm10"`
			} `json:"components"`
		} `json:"list"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload.List) == 0 {
		return nil, errors.New("air pollution api returned empty list")
	}

	return &owmAirQuality{
		AQI:  payload.List[0].Main.AQI,
		PM25: payload.List[0].Components.PM25,
		PM10: payload.List[0].Components.PM10,
	}, nil
}
