package weather

import (
	"strings"
	"testing"
)

func TestAQICategory(t *testing.T) {
	tests := []struct {
		aqi  int
		want string
	}{
		{AQIGood, "Good"},
		{AQIFair, "Fair"},
		{AQIModerate, "Moderate"},
		{AQIPoor, "Poor"},
		{AQIVeryPoor, "Very Poor"},
		{0, "Unknown"},
		{6, "Unknown"},
	}
	for _, tt := range tests {
		if got := AQICategory(tt.aqi); got != tt.want {
			t.Errorf("AQICategory(%d) = %q, want %q", tt.aqi, got, tt.want)
		}
	}
}

func TestHealthAdvice(t *testing.T) {
	tests := []struct {
		name string
		aqi  int
		pm25 float64
		want string
	}{
		{"good", AQIGood, 8, "good"},
		{"fair", AQIFair, 12, "acceptable"},
		{"moderate", AQIModerate, 40, "moderate"},
		{"poor", AQIPoor, 70, "poor"},
		{"very poor", AQIVeryPoor, 150, "very poor"},
		{"pm overrides index", AQIGood, 120, "very poor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HealthAdvice(tt.aqi, tt.pm25)
			if !strings.Contains(strings.ToLower(got), tt.want) {
				t.Fatalf("HealthAdvice(%d, %f) = %q, want substring %q", tt.aqi, tt.pm25, got, tt.want)
			}
		})
	}
}

func TestCurrentFrom(t *testing.T) {
	obs := Observation{
		City:        "Delhi",
		Temperature: 31.5,
		Humidity:    48,
		Condition:   "Haze",
		AQI:         AQIPoor,
		PM25:        88,
		PM10:        140,
	}
	cur := CurrentFrom(obs)
	if cur.Temperature != 31.5 || cur.Humidity != 48 || cur.Condition != "Haze" {
		t.Fatalf("unexpected current: %+v", cur)
	}
	if cur.AQICategory != "Poor" {
		t.Fatalf("expected Poor category, got %q", cur.AQICategory)
	}
}
