package monitoring

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skycast/weather"
)

type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert is a triggered weather condition for one city.
type Alert struct {
	ID        string     `json:"id"`
	City      string     `json:"city"`
	Rule      string     `json:"rule"`
	Level     AlertLevel `json:"level"`
	Message   string     `json:"message"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
}

// AlertRule triggers on an observation. Returning nil means no alert.
type AlertRule interface {
	Name() string
	Check(obs *weather.Observation) *Alert
}

// AlertManager evaluates rules against observations and broadcasts hits,
// with a per city and rule cooldown to avoid repeats.
type AlertManager struct {
	mu       sync.Mutex
	rules    []AlertRule
	lastSent map[string]time.Time
	cooldown time.Duration
	hub      *WebSocketHub
	history  []Alert
	maxKeep  int
}

func NewAlertManager(hub *WebSocketHub, cooldown time.Duration) *AlertManager {
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	am := &AlertManager{
		lastSent: make(map[string]time.Time),
		cooldown: cooldown,
		hub:      hub,
		maxKeep:  200,
	}
	am.rules = []AlertRule{
		HeatAlertRule{Threshold: 42},
		ColdAlertRule{Threshold: 2},
		AirQualityAlertRule{},
		WindAlertRule{Threshold: 20},
	}
	return am
}

// AddRule appends a custom rule.
func (am *AlertManager) AddRule(rule AlertRule) {
	am.mu.Lock()
	am.rules = append(am.rules, rule)
	am.mu.Unlock()
}

// Evaluate runs all rules on an observation and broadcasts new alerts.
func (am *AlertManager) Evaluate(obs *weather.Observation) []Alert {
	if obs == nil {
		return nil
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	var fired []Alert
	now := time.Now()
	for _, rule := range am.rules {
		alert := rule.Check(obs)
		if alert == nil {
			continue
		}

		key := obs.City + "|" + rule.Name()
		if last, ok := am.lastSent[key]; ok && now.Sub(last) < am.cooldown {
			continue
		}
		am.lastSent[key] = now

		alert.ID = uuid.NewString()
		alert.Timestamp = now.UTC()
		fired = append(fired, *alert)

		am.history = append(am.history, *alert)
		if len(am.history) > am.maxKeep {
			am.history = am.history[len(am.history)-am.maxKeep:]
		}

		zap.L().Warn("weather alert",
			zap.String("city", alert.City),
			zap.String("rule", alert.Rule),
			zap.String("level", string(alert.Level)),
			zap.String("message", alert.Message))

		if am.hub != nil {
			am.hub.broadcastEvent(SystemStatusEvent, alert)
		}
	}
	return fired
}

// RecentAlerts returns up to limit alerts, newest last.
func (am *AlertManager) RecentAlerts(limit int) []Alert {
	am.mu.Lock()
	defer am.mu.Unlock()

	if limit <= 0 || limit > len(am.history) {
		limit = len(am.history)
	}
	out := make([]Alert, limit)
	copy(out, am.history[len(am.history)-limit:])
	return out
}

// HeatAlertRule fires when temperature crosses the threshold.
type HeatAlertRule struct {
	Threshold float64
}

func (r HeatAlertRule) Name() string { return "extreme_heat" }

func (r HeatAlertRule) Check(obs *weather.Observation) *Alert {
	if obs.Temperature < r.Threshold {
		return nil
	}
	return &Alert{
		City:    obs.City,
		Rule:    r.Name(),
		Level:   AlertCritical,
		Message: "Extreme heat: stay hydrated and avoid outdoor activity",
		Value:   obs.Temperature,
	}
}

// ColdAlertRule fires when temperature drops below the threshold.
type ColdAlertRule struct {
	Threshold float64
}

func (r ColdAlertRule) Name() string { return "extreme_cold" }

func (r ColdAlertRule) Check(obs *weather.Observation) *Alert {
	if obs.Temperature > r.Threshold {
		return nil
	}
	return &Alert{
		City:    obs.City,
		Rule:    r.Name(),
		Level:   AlertWarning,
		Message: "Very low temperature expected",
		Value:   obs.Temperature,
	}
}

// AirQualityAlertRule fires on Poor or worse AQI.
type AirQualityAlertRule struct{}

func (r AirQualityAlertRule) Name() string { return "poor_air_quality" }

func (r AirQualityAlertRule) Check(obs *weather.Observation) *Alert {
	if obs.AQI < weather.AQIPoor {
		return nil
	}
	level := AlertWarning
	if obs.AQI >= weather.AQIVeryPoor {
		level = AlertCritical
	}
	return &Alert{
		City:    obs.City,
		Rule:    r.Name(),
		Level:   level,
		Message: weather.HealthAdvice(obs.AQI, obs.PM25),
		Value:   float64(obs.AQI),
	}
}

// WindAlertRule fires on high wind speed in m/s.
type WindAlertRule struct {
	Threshold float64
}

func (r WindAlertRule) Name() string { return "high_wind" }

func (r WindAlertRule) Check(obs *weather.Observation) *Alert {
	if obs.WindSpeed < r.Threshold {
		return nil
	}
	return &Alert{
		City:    obs.City,
		Rule:    r.Name(),
		Level:   AlertWarning,
		Message: "High winds: secure loose objects",
		Value:   obs.WindSpeed,
	}
}
