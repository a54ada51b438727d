package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"skycast/db"
	"skycast/weather"
	"skycast/weather/providers"
)

var (
	providerManager *providers.ProviderManager
	trackedCities   []string
	serviceStart    = time.Now()
)

// SetProviderManager injects the provider manager used by weather lookups.
func SetProviderManager(pm *providers.ProviderManager) {
	providerManager = pm
}

// SetCities sets the configured city list returned by /api/cities.
func SetCities(cities []string) {
	trackedCities = cities
}

func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/cities", handleCities)
	mux.HandleFunc("GET /api/weather/{city}", handleWeather)
	mux.HandleFunc("GET /api/observations/{city}", handleObservations)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := db.CountObservations("")
	if err != nil {
		count = 0
	}
	respondJSON(w, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(serviceStart).Seconds()),
		"data_available": count > 0,
		"observations":   count,
	})
}

func handleCities(w http.ResponseWriter, r *http.Request) {
	cities := trackedCities
	if len(cities) == 0 {
		stored, err := db.ListCities()
		if err != nil {
			http.Error(w, `{"error":"failed to list cities"}`, http.StatusInternalServerError)
			return
		}
		cities = stored
	}
	respondJSON(w, map[string]interface{}{"cities": cities})
}

func handleWeather(w http.ResponseWriter, r *http.Request) {
	city := r.PathValue("city")
	if city == "" {
		http.Error(w, `{"error":"city is required"}`, http.StatusBadRequest)
		return
	}

	if providerManager == nil {
		http.Error(w, `{"error":"weather provider not configured"}`, http.StatusServiceUnavailable)
		return
	}

	obs, err := providerManager.FetchCurrent(r.Context(), city)
	if err != nil {
		if errors.Is(err, providers.ErrCityNotFound) {
			http.Error(w, `{"error":"city not found"}`, http.StatusNotFound)
			return
		}
		// Serve the latest stored reading on provider failure.
		stored, dbErr := db.LatestObservation(city)
		if dbErr != nil || stored == nil {
			zap.L().Warn("weather lookup failed", zap.String("city", city), zap.Error(err))
			http.Error(w, `{"error":"weather data unavailable"}`, http.StatusBadGateway)
			return
		}
		respondJSON(w, map[string]interface{}{
			"city":          city,
			"timestamp":     stored.Timestamp,
			"current":       weather.CurrentFrom(*stored),
			"health_advice": weather.HealthAdvice(stored.AQI, stored.PM25),
			"source":        "sample",
		})
		return
	}

	respondJSON(w, map[string]interface{}{
		"city":          city,
		"timestamp":     obs.Timestamp,
		"current":       weather.CurrentFrom(*obs),
		"health_advice": weather.HealthAdvice(obs.AQI, obs.PM25),
		"source":        "live",
	})
}

func handleObservations(w http.ResponseWriter, r *http.Request) {
	city := r.PathValue("city")
	if city == "" {
		http.Error(w, `{"error":"city is required"}`, http.StatusBadRequest)
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	points, err := db.QueryObservations(city, limit)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"city":  city,
		"count": len(points),
		"data":  points,
	})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}
