package http

import (
	"net/http"
	"strconv"
	"time"

	"skycast/monitoring"
	"skycast/pipeline"
)

var (
	ingester         *pipeline.DataIngester
	cleaner          *pipeline.DataCleaner
	wsHub            *monitoring.WebSocketHub
	metricsCollector *monitoring.MetricsCollector
	alertManager     *monitoring.AlertManager
)

func SetIngester(di *pipeline.DataIngester) {
	ingester = di
}

func SetCleaner(dc *pipeline.DataCleaner) {
	cleaner = dc
}

func SetWebSocketHub(hub *monitoring.WebSocketHub) {
	wsHub = hub
}

func SetMetricsCollector(mc *monitoring.MetricsCollector) {
	metricsCollector = mc
}

func SetAlertManager(am *monitoring.AlertManager) {
	alertManager = am
}

func RegisterAPIHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/pipeline/stats", handlePipelineStats)
	mux.HandleFunc("GET /api/pipeline/quality", handlePipelineQuality)
	mux.HandleFunc("GET /api/providers/status", handleProvidersStatus)
	mux.HandleFunc("GET /api/alerts", handleAlerts)
	mux.HandleFunc("GET /api/metrics", handleMetrics)
	mux.HandleFunc("/api/ws/dashboard", handleDashboardWS)
}

func handlePipelineStats(w http.ResponseWriter, r *http.Request) {
	if ingester == nil {
		http.Error(w, `{"error":"pipeline not running"}`, http.StatusServiceUnavailable)
		return
	}

	respondJSON(w, map[string]interface{}{
		"ingestion": ingester.GetStats(),
		"timestamp": time.Now().UTC(),
	})
}

func handlePipelineQuality(w http.ResponseWriter, r *http.Request) {
	if cleaner == nil {
		http.Error(w, `{"error":"pipeline not running"}`, http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	respondJSON(w, map[string]interface{}{
		"stats":  cleaner.GetStats(),
		"issues": cleaner.GetIssues(limit),
	})
}

func handleProvidersStatus(w http.ResponseWriter, r *http.Request) {
	if providerManager == nil {
		http.Error(w, `{"error":"providers not configured"}`, http.StatusServiceUnavailable)
		return
	}

	respondJSON(w, map[string]interface{}{
		"primary":   providerManager.GetPrimaryProvider(),
		"providers": providerManager.GetProvidersStatus(),
		"timestamp": time.Now().UTC(),
	})
}

func handleAlerts(w http.ResponseWriter, r *http.Request) {
	if alertManager == nil {
		http.Error(w, `{"error":"alerts not enabled"}`, http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	alerts := alertManager.RecentAlerts(limit)
	respondJSON(w, map[string]interface{}{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	if metricsCollector == nil {
		http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metricsCollector.WritePrometheus(w)
}

func handleDashboardWS(w http.ResponseWriter, r *http.Request) {
	if wsHub == nil {
		http.Error(w, `{"error":"websocket hub not running"}`, http.StatusServiceUnavailable)
		return
	}
	wsHub.HandleWebSocket(w, r)
}
