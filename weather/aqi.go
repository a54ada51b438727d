package weather

import "fmt"

// AQI index values reported by the air pollution API (1 best, 5 worst).
const (
	AQIGood     = 1
	AQIFair     = 2
	AQIModerate = 3
	AQIPoor     = 4
	AQIVeryPoor = 5
)

var aqiCategories = map[int]string{
	AQIGood:     "Good",
	AQIFair:     "Fair",
	AQIModerate: "Moderate",
	AQIPoor:     "Poor",
	AQIVeryPoor: "Very Poor",
}

// AQICategory maps an AQI index to its display category.
func AQICategory(aqi int) string {
	if name, ok := aqiCategories[aqi]; ok {
		return name
	}
	return "Unknown"
}

// HealthAdvice returns a short recommendation based on AQI and PM2.5 levels.
// PM2.5 thresholds follow the WHO 24-hour guideline bands.
func HealthAdvice(aqi int, pm25 float64) string {
	switch {
	case aqi >= AQIVeryPoor || pm25 > 110:
		return "Air quality is very poor. Avoid outdoor activity and keep windows closed."
	case aqi == AQIPoor || pm25 > 55:
		return "Air quality is poor. Sensitive groups should stay indoors; others should limit prolonged exertion outside."
	case aqi == AQIModerate || pm25 > 35:
		return "Air quality is moderate. Sensitive groups should reduce extended outdoor exertion."
	case aqi == AQIFair || pm25 > 15:
		return "Air quality is acceptable. Unusually sensitive people should consider limiting outdoor exertion."
	case aqi == AQIGood:
		return "Air quality is good. Enjoy your outdoor activities."
	default:
		return fmt.Sprintf("Air quality index %d is outside the expected range.", aqi)
	}
}
