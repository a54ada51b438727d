package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"skycast/weather"
)

// ChatAnalyzer generates a conversational answer from a weather report.
type ChatAnalyzer interface {
	Analyze(ctx context.Context, message string, report *weather.Report) (string, error)
}

var (
	chatAnalyzer ChatAnalyzer
	defaultCity  = "Delhi"
)

// SetChatAnalyzer enables LLM-backed chat replies. Keyword replies remain
// the fallback when the analyzer fails.
func SetChatAnalyzer(analyzer ChatAnalyzer) {
	chatAnalyzer = analyzer
}

// SetDefaultCity sets the city used when a chat request names none.
func SetDefaultCity(city string) {
	if city != "" {
		defaultCity = city
	}
}

func RegisterChatHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", handleChat)
}

type chatRequest struct {
	Message string `json:"message"`
	City    string `json:"city"`
}

type chatResponse struct {
	Success bool            `json:"success"`
	Reply   string          `json:"reply"`
	Data    *weather.Report `json:"data,omitempty"`
}

func handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	city := req.City
	if city == "" {
		city = defaultCity
	}

	if predictor == nil {
		http.Error(w, `{"error":"predictor not initialized"}`, http.StatusServiceUnavailable)
		return
	}

	report, err := predictor.PredictForCity(r.Context(), city)
	if err != nil {
		respondJSON(w, chatResponse{
			Success: false,
			Reply:   fmt.Sprintf("No data available for %s.", city),
		})
		return
	}

	if chatAnalyzer != nil {
		reply, err := chatAnalyzer.Analyze(r.Context(), req.Message, report)
		if err == nil {
			respondJSON(w, chatResponse{Success: true, Reply: reply, Data: report})
			return
		}
		zap.L().Warn("chat analyzer failed, using keyword reply", zap.Error(err))
	}

	respondJSON(w, keywordReply(req.Message, city, report))
}

func keywordReply(message, city string, report *weather.Report) chatResponse {
	message = strings.ToLower(message)
	current := report.Current

	if containsAny(message, "weather", "temperature", "forecast") {
		reply := fmt.Sprintf(
			"Weather in %s\n\nTemp: %.1f°C (Feels %.1f°C)\n%s - %s\nHumidity: %d%%\nWind: %.1f m/s\n\nAQI: %s (%d)\n\n%s",
			city, current.Temperature, current.FeelsLike,
			current.Condition, current.Description,
			current.Humidity, current.WindSpeed,
			current.AQICategory, current.AQI,
			report.HealthAdvice)
		return chatResponse{Success: true, Reply: reply, Data: report}
	}

	if containsAny(message, "aqi", "air", "pollution") {
		reply := fmt.Sprintf(
			"Air Quality in %s\n\nAQI: %s (%d)\nPM2.5: %.1f µg/m³\nPM10: %.1f µg/m³\n\n%s",
			city, current.AQICategory, current.AQI,
			current.PM25, current.PM10,
			report.HealthAdvice)
		return chatResponse{Success: true, Reply: reply, Data: report}
	}

	return chatResponse{
		Success: true,
		Reply:   "Ask me about weather, temperature, or air quality for any city.",
	}
}

func containsAny(message string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	return false
}
