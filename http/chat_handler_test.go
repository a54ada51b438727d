package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func postChat(t *testing.T, mux *http.ServeMux, body string) chatResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func TestHandleChatWeatherQuestion(t *testing.T) {
	mux := http.NewServeMux()
	RegisterChatHandlers(mux)
	SetPredictor(&fakeForecaster{report: testReport()})
	defer SetPredictor(nil)

	resp := postChat(t, mux, `{"message":"what is the weather like","city":"Delhi"}`)
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if !strings.Contains(resp.Reply, "Weather in Delhi") {
		t.Fatalf("unexpected reply: %s", resp.Reply)
	}
	if !strings.Contains(resp.Reply, "31.5") {
		t.Fatalf("reply missing temperature: %s", resp.Reply)
	}
	if resp.Data == nil {
		t.Fatal("expected report data with reply")
	}
}

func TestHandleChatAirQuality(t *testing.T) {
	mux := http.NewServeMux()
	RegisterChatHandlers(mux)
	SetPredictor(&fakeForecaster{report: testReport()})
	defer SetPredictor(nil)

	resp := postChat(t, mux, `{"message":"how is the air pollution","city":"Mumbai"}`)
	if !strings.Contains(resp.Reply, "Air Quality in Mumbai") {
		t.Fatalf("unexpected reply: %s", resp.Reply)
	}
	if !strings.Contains(resp.Reply, "PM2.5") {
		t.Fatalf("reply missing PM2.5: %s", resp.Reply)
	}
}

func TestHandleChatUnknownTopic(t *testing.T) {
	mux := http.NewServeMux()
	RegisterChatHandlers(mux)
	SetPredictor(&fakeForecaster{report: testReport()})
	defer SetPredictor(nil)

	resp := postChat(t, mux, `{"message":"tell me a joke"}`)
	if !strings.Contains(resp.Reply, "Ask me about") {
		t.Fatalf("unexpected reply: %s", resp.Reply)
	}
	if resp.Data != nil {
		t.Fatal("expected no report data for unknown topic")
	}
}

func TestHandleChatDefaultCity(t *testing.T) {
	mux := http.NewServeMux()
	RegisterChatHandlers(mux)
	SetPredictor(&fakeForecaster{report: testReport()})
	SetDefaultCity("Kolkata")
	defer func() {
		SetPredictor(nil)
		SetDefaultCity("Delhi")
	}()

	resp := postChat(t, mux, `{"message":"temperature please"}`)
	if !strings.Contains(resp.Reply, "Kolkata") {
		t.Fatalf("expected default city in reply: %s", resp.Reply)
	}
}
