package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"skycast/db"
	"skycast/ml"
	"skycast/weather"
)

// Forecaster produces per-city weather reports.
type Forecaster interface {
	PredictForCity(ctx context.Context, city string) (*weather.Report, error)
}

var predictor Forecaster

// SetPredictor injects the forecaster used by the predict endpoints.
func SetPredictor(p Forecaster) {
	predictor = p
}

func RegisterPredictHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/predict/{city}", handlePredictCity)
	mux.HandleFunc("POST /api/predict", handlePredict)
}

func handlePredictCity(w http.ResponseWriter, r *http.Request) {
	city := r.PathValue("city")
	if city == "" {
		http.Error(w, `{"error":"city is required"}`, http.StatusBadRequest)
		return
	}
	servePrediction(w, r, city)
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	var req struct {
		City string `json:"city"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.City == "" {
		http.Error(w, `{"error":"city is required"}`, http.StatusBadRequest)
		return
	}
	servePrediction(w, r, req.City)
}

func servePrediction(w http.ResponseWriter, r *http.Request, city string) {
	if predictor == nil {
		http.Error(w, `{"error":"predictor not initialized"}`, http.StatusServiceUnavailable)
		return
	}

	report, err := predictor.PredictForCity(r.Context(), city)
	if err != nil {
		if errors.Is(err, ml.ErrNoData) {
			http.Error(w, `{"error":"no data available for city"}`, http.StatusNotFound)
			return
		}
		zap.L().Warn("prediction failed", zap.String("city", city), zap.Error(err))
		http.Error(w, `{"error":"prediction failed"}`, http.StatusInternalServerError)
		return
	}

	for _, point := range report.Forecast {
		if err := db.SavePrediction(city, point, report.Source); err != nil {
			zap.L().Warn("failed to record prediction", zap.String("city", city), zap.Error(err))
		}
		if wsHub != nil {
			wsHub.BroadcastPrediction(city, point)
		}
	}

	respondJSON(w, report)
}
