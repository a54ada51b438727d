// Package llm answers weather questions with a DeepSeek chat model.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"skycast/weather"
)

type DeepSeekAnalyzer struct {
	apiKey    string
	model     string
	client    *http.Client
	baseURL   string
	maxTokens int
}

func NewDeepSeekAnalyzer(apiKey, model string, timeout time.Duration, maxTokens int) *DeepSeekAnalyzer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if model == "" {
		model = "deepseek-chat"
	}
	return &DeepSeekAnalyzer{
		apiKey:    apiKey,
		model:     model,
		client:    &http.Client{Timeout: timeout},
		baseURL:   "https://api.deepseek.com/chat/completions",
		maxTokens: maxTokens,
	}
}

// Analyze answers a user question grounded in the city's weather report.
func (d *DeepSeekAnalyzer) Analyze(ctx context.Context, message string, report *weather.Report) (string, error) {
	if d == nil || d.client == nil {
		return "", errors.New("deepseek analyzer not configured")
	}
	if d.apiKey == "" {
		return "", errors.New("deepseek api key is required")
	}
	if report == nil {
		return "", errors.New("weather report is required")
	}

	prompt := buildPrompt(message, report)

	requestBody := deepSeekRequest{
		Model: d.model,
		Messages: []deepSeekMessage{{
			Role:    "user",
			Content: prompt,
		}},
		MaxTokens:   d.maxTokens,
		Temperature: 0.3,
	}
	payload, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", d.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr deepSeekErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("deepseek api error: %s", apiErr.Error.Message)
		}
		return "", fmt.Errorf("deepseek api returned status %d", resp.StatusCode)
	}

	var apiResp deepSeekResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", err
	}
	if len(apiResp.Choices) == 0 {
		return "", errors.New("deepseek api returned empty response")
	}

	answer := strings.TrimSpace(apiResp.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("deepseek api returned empty answer")
	}
	return answer, nil
}

func buildPrompt(message string, report *weather.Report) string {
	current := report.Current

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a weather assistant. Answer the user's question using only the data below, in 3 sentences or fewer.\n\n")
	fmt.Fprintf(&sb, "City: %s\n", report.City)
	fmt.Fprintf(&sb, "Temperature: %.1f C (feels like %.1f C)\n", current.Temperature, current.FeelsLike)
	fmt.Fprintf(&sb, "Conditions: %s - %s\n", current.Condition, current.Description)
	fmt.Fprintf(&sb, "Humidity: %d%%, Wind: %.1f m/s, Clouds: %d%%\n", current.Humidity, current.WindSpeed, current.Clouds)
	fmt.Fprintf(&sb, "AQI: %s (%d), PM2.5: %.1f, PM10: %.1f\n", current.AQICategory, current.AQI, current.PM25, current.PM10)
	if report.HealthAdvice != "" {
		fmt.Fprintf(&sb, "Health advice: %s\n", report.HealthAdvice)
	}
	for _, point := range report.Forecast {
		fmt.Fprintf(&sb, "Forecast for %s: %.1f C\n", point.Timestamp.Format(time.RFC3339), point.Temperature)
	}
	fmt.Fprintf(&sb, "\nQuestion: %s\n", message)
	return sb.String()
}

type deepSeekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepSeekRequest struct {
	Model       string            `json:"model"`
	Messages    []deepSeekMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

type deepSeekResponse struct {
	Choices []struct {
		Message deepSeekMessage `json:"message"`
	} `json:"choices"`
}

type deepSeekErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
