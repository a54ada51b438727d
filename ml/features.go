package ml

import (
	"errors"
	"math"
	"time"

	"skycast/weather"
)

// maxLookbackHours is the longest rolling window used by feature extraction.
// Observations before this offset produce no feature row.
const maxLookbackHours = 24

// WeatherFeatures is the model input derived from one point in an hourly
// observation series.
type WeatherFeatures struct {
	City string

	Temp       float64
	TempMean3  float64
	TempMean6  float64
	TempMean24 float64
	TempLag1   float64
	TempLag3   float64

	Humidity      float64
	HumidityMean6 float64

	Pressure       float64
	PressureTrend3 float64

	WindSpeed float64
	Clouds    float64

	HourSin float64
	HourCos float64
	DaySin  float64
	DayCos  float64

	Timestamp time.Time
}

// ExtractFeatures builds feature rows from a time-ordered observation series.
// The first maxLookbackHours observations only seed the rolling windows.
func ExtractFeatures(series []weather.Observation) ([]WeatherFeatures, error) {
	if len(series) == 0 {
		return nil, errors.New("observation series is empty")
	}
	if len(series) <= maxLookbackHours {
		return nil, errors.New("observation series shorter than lookback window")
	}

	features := make([]WeatherFeatures, 0, len(series)-maxLookbackHours)
	temps := make([]float64, len(series))
	hums := make([]float64, len(series))
	for i, obs := range series {
		temps[i] = obs.Temperature
		hums[i] = float64(obs.Humidity)
	}

	for i := range series {
		if i < maxLookbackHours {
			continue
		}
		obs := series[i]

		hour := float64(obs.Timestamp.Hour())
		day := float64(obs.Timestamp.YearDay())

		features = append(features, WeatherFeatures{
			City:           obs.City,
			Temp:           obs.Temperature,
			TempMean3:      rollingMean(temps[:i+1], 3),
			TempMean6:      rollingMean(temps[:i+1], 6),
			TempMean24:     rollingMean(temps[:i+1], 24),
			TempLag1:       temps[i-1],
			TempLag3:       temps[i-3],
			Humidity:       float64(obs.Humidity),
			HumidityMean6:  rollingMean(hums[:i+1], 6),
			Pressure:       float64(obs.Pressure),
			PressureTrend3: float64(obs.Pressure - series[i-3].Pressure),
			WindSpeed:      obs.WindSpeed,
			Clouds:         float64(obs.Clouds),
			HourSin:        math.Sin(2 * math.Pi * hour / 24),
			HourCos:        math.Cos(2 * math.Pi * hour / 24),
			DaySin:         math.Sin(2 * math.Pi * day / 365),
			DayCos:         math.Cos(2 * math.Pi * day / 365),
			Timestamp:      obs.Timestamp,
		})
	}

	return features, nil
}

// rollingMean averages the last period values of the window.
func rollingMean(window []float64, period int) float64 {
	if len(window) == 0 {
		return 0
	}
	if period > len(window) {
		period = len(window)
	}
	sum := 0.0
	for _, v := range window[len(window)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// FeatureVector flattens a feature row into model input order.
func FeatureVector(f WeatherFeatures) []float64 {
	return []float64{
		f.Temp,
		f.TempMean3,
		f.TempMean6,
		f.TempMean24,
		f.TempLag1,
		f.TempLag3,
		f.Humidity,
		f.HumidityMean6,
		f.Pressure,
		f.PressureTrend3,
		f.WindSpeed,
		f.Clouds,
		f.HourSin,
		f.HourCos,
		f.DaySin,
		f.DayCos,
	}
}

// FeatureNames lists features in FeatureVector order.
func FeatureNames() []string {
	return []string{
		"Temp",
		"TempMean3",
		"TempMean6",
		"TempMean24",
		"TempLag1",
		"TempLag3",
		"Humidity",
		"HumidityMean6",
		"Pressure",
		"PressureTrend3",
		"WindSpeed",
		"Clouds",
		"HourSin",
		"HourCos",
		"DaySin",
		"DayCos",
	}
}

// computeFeatureStats returns per-feature [min, max] over the set.
func computeFeatureStats(features []WeatherFeatures) map[string][2]float64 {
	stats := make(map[string][2]float64)
	names := FeatureNames()

	for i, f := range features {
		vector := FeatureVector(f)
		for j, name := range names {
			value := vector[j]
			if i == 0 {
				stats[name] = [2]float64{value, value}
				continue
			}
			current := stats[name]
			if value < current[0] {
				current[0] = value
			}
			if value > current[1] {
				current[1] = value
			}
			stats[name] = current
		}
	}

	return stats
}
