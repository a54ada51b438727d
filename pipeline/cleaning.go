package pipeline

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"skycast/weather"
)

// CleaningRule validates or corrects one observation.
type CleaningRule interface {
	Apply(*weather.Observation) (*weather.Observation, error)
	Name() string
}

// QualityIssue records a rejected or suspicious observation.
type QualityIssue struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"` // low, medium, high
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	City      string    `json:"city"`
}

// CleaningStats counts cleaner outcomes.
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// DataCleaner applies rules to incoming observations.
type DataCleaner struct {
	rules      []CleaningRule
	issues     []QualityIssue
	issuesLock sync.RWMutex

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewDataCleaner builds a cleaner with the default rule set.
func NewDataCleaner() *DataCleaner {
	cleaner := &DataCleaner{
		rules:  make([]CleaningRule, 0),
		issues: make([]QualityIssue, 0),
		stats: CleaningStats{
			Issues: make(map[string]int64),
		},
	}

	cleaner.AddRule(NewTemperatureRangeRule())
	cleaner.AddRule(NewHumidityPressureRule())
	cleaner.AddRule(NewWindValidationRule())
	cleaner.AddRule(NewAirQualityRule())
	cleaner.AddRule(NewTimestampValidationRule())
	cleaner.AddRule(NewDuplicateDetectionRule())

	return cleaner
}

// AddRule appends a rule to the chain.
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	zap.L().Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean runs every rule over every point. Rejected points are dropped from
// the output; corrected points pass through with the correction applied.
func (dc *DataCleaner) Clean(points []*weather.Observation) ([]*weather.Observation, []QualityIssue) {
	var cleaned []*weather.Observation
	var issues []QualityIssue

	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	for _, point := range points {
		dc.stats.TotalProcessed++

		originalPoint := *point
		var pointIssues []QualityIssue

		for _, rule := range dc.rules {
			cleanedPoint, err := rule.Apply(point)
			if err != nil {
				issue := QualityIssue{
					Type:      rule.Name(),
					Severity:  "high",
					Message:   err.Error(),
					Timestamp: time.Now(),
					City:      point.City,
				}
				pointIssues = append(pointIssues, issue)
				dc.stats.Issues[rule.Name()]++
				continue
			}
			if cleanedPoint != nil {
				point = cleanedPoint
			}
		}

		if len(pointIssues) > 0 {
			dc.stats.Rejected++
			issues = append(issues, pointIssues...)
			dc.issuesLock.Lock()
			dc.issues = append(dc.issues, pointIssues...)
			dc.issuesLock.Unlock()
		} else {
			if !observationsEqual(&originalPoint, point) {
				dc.stats.Corrected++
			}
			dc.stats.Passed++
			cleaned = append(cleaned, point)
		}
	}

	dc.stats.LastClean = time.Now()

	return cleaned, issues
}

func observationsEqual(a, b *weather.Observation) bool {
	return a.City == b.City &&
		a.Timestamp.Equal(b.Timestamp) &&
		a.Temperature == b.Temperature &&
		a.FeelsLike == b.FeelsLike &&
		a.Humidity == b.Humidity &&
		a.Pressure == b.Pressure &&
		a.WindSpeed == b.WindSpeed
}

// GetStats reports cleaning counters.
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	snapshot := dc.stats
	snapshot.Issues = make(map[string]int64, len(dc.stats.Issues))
	for name, count := range dc.stats.Issues {
		snapshot.Issues[name] = count
	}
	return snapshot
}

// GetIssues returns up to limit of the most recent issues.
func (dc *DataCleaner) GetIssues(limit int) []QualityIssue {
	dc.issuesLock.RLock()
	defer dc.issuesLock.RUnlock()

	if limit <= 0 || limit > len(dc.issues) {
		limit = len(dc.issues)
	}

	issues := make([]QualityIssue, limit)
	copy(issues, dc.issues[len(dc.issues)-limit:])
	return issues
}

// ClearIssues drops the accumulated issue list.
func (dc *DataCleaner) ClearIssues() {
	dc.issuesLock.Lock()
	defer dc.issuesLock.Unlock()

	dc.issues = make([]QualityIssue, 0)
}

// ============ rules ============

// TemperatureRangeRule rejects physically implausible temperatures and
// feels-like values that disagree wildly with the measured temperature.
type TemperatureRangeRule struct {
	MinTemp       float64
	MaxTemp       float64
	MaxFeelsDelta float64
}

func NewTemperatureRangeRule() *TemperatureRangeRule {
	return &TemperatureRangeRule{
		MinTemp:       -90.0, // Vostok record
		MaxTemp:       60.0,
		MaxFeelsDelta: 25.0,
	}
}

func (r *TemperatureRangeRule) Name() string {
	return "temperature_range"
}

func (r *TemperatureRangeRule) Apply(point *weather.Observation) (*weather.Observation, error) {
	if point.Temperature < r.MinTemp || point.Temperature > r.MaxTemp {
		return nil, fmt.Errorf("temperature %.1f out of range [%.1f, %.1f]", point.Temperature, r.MinTemp, r.MaxTemp)
	}
	if math.Abs(point.FeelsLike-point.Temperature) > r.MaxFeelsDelta {
		// Correct rather than reject: feels-like is derived, not measured.
		corrected := *point
		corrected.FeelsLike = point.Temperature
		return &corrected, nil
	}
	return point, nil
}

// HumidityPressureRule bounds relative humidity and sea-level pressure.
type HumidityPressureRule struct {
	MinPressure int
	MaxPressure int
}

func NewHumidityPressureRule() *HumidityPressureRule {
	return &HumidityPressureRule{
		MinPressure: 870,
		MaxPressure: 1085,
	}
}

func (r *HumidityPressureRule) Name() string {
	return "humidity_pressure"
}

func (r *HumidityPressureRule) Apply(point *weather.Observation) (*weather.Observation, error) {
	if point.Humidity < 0 || point.Humidity > 100 {
		return nil, fmt.Errorf("humidity %d out of range [0, 100]", point.Humidity)
	}
	if point.Pressure != 0 && (point.Pressure < r.MinPressure || point.Pressure > r.MaxPressure) {
		return nil, fmt.Errorf("pressure %d out of range [%d, %d]", point.Pressure, r.MinPressure, r.MaxPressure)
	}
	return point, nil
}

// WindValidationRule rejects negative or hurricane-implausible wind speeds.
type WindValidationRule struct {
	MaxWindSpeed float64
}

func NewWindValidationRule() *WindValidationRule {
	return &WindValidationRule{
		MaxWindSpeed: 115.0, // m/s, above strongest recorded gust
	}
}

func (r *WindValidationRule) Name() string {
	return "wind_validation"
}

func (r *WindValidationRule) Apply(point *weather.Observation) (*weather.Observation, error) {
	if point.WindSpeed < 0 || point.WindSpeed > r.MaxWindSpeed {
		return nil, fmt.Errorf("wind speed %.1f out of range [0, %.1f]", point.WindSpeed, r.MaxWindSpeed)
	}
	if point.Clouds < 0 || point.Clouds > 100 {
		return nil, fmt.Errorf("cloud cover %d out of range [0, 100]", point.Clouds)
	}
	return point, nil
}

// AirQualityRule validates the AQI index and particulate readings.
type AirQualityRule struct{}

func NewAirQualityRule() *AirQualityRule {
	return &AirQualityRule{}
}

func (r *AirQualityRule) Name() string {
	return "air_quality"
}

func (r *AirQualityRule) Apply(point *weather.Observation) (*weather.Observation, error) {
	// AQI 0 means the pollution reading was unavailable; that is allowed.
	if point.AQI < 0 || point.AQI > weather.AQIVeryPoor {
		return nil, fmt.Errorf("aqi %d out of range [0, %d]", point.AQI, weather.AQIVeryPoor)
	}
	if point.PM25 < 0 || point.PM10 < 0 {
		return nil, fmt.Errorf("negative particulate reading pm2.5=%.1f pm10=%.1f", point.PM25, point.PM10)
	}
	return point, nil
}

// TimestampValidationRule rejects readings from the far future.
type TimestampValidationRule struct {
	MaxFutureSeconds int64
}

func NewTimestampValidationRule() *TimestampValidationRule {
	return &TimestampValidationRule{
		MaxFutureSeconds: 300, // clock skew allowance
	}
}

func (r *TimestampValidationRule) Name() string {
	return "timestamp_validation"
}

func (r *TimestampValidationRule) Apply(point *weather.Observation) (*weather.Observation, error) {
	if point.Timestamp.IsZero() {
		return nil, fmt.Errorf("timestamp is zero")
	}
	if point.Timestamp.After(time.Now().Add(time.Duration(r.MaxFutureSeconds) * time.Second)) {
		return nil, fmt.Errorf("timestamp %s is too far in the future", point.Timestamp.Format(time.RFC3339))
	}
	return point, nil
}

// DuplicateDetectionRule drops repeated (city, timestamp) pairs within a run.
type DuplicateDetectionRule struct {
	seenMap map[string]struct{}
	mu      sync.Mutex
}

func NewDuplicateDetectionRule() *DuplicateDetectionRule {
	return &DuplicateDetectionRule{
		seenMap: make(map[string]struct{}),
	}
}

func (r *DuplicateDetectionRule) Name() string {
	return "duplicate_detection"
}

func (r *DuplicateDetectionRule) Apply(point *weather.Observation) (*weather.Observation, error) {
	key := fmt.Sprintf("%s_%d", point.City, point.Timestamp.Unix())

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.seenMap[key]; exists {
		return nil, fmt.Errorf("duplicate observation: %s at %s", point.City, point.Timestamp.Format(time.RFC3339))
	}

	r.seenMap[key] = struct{}{}
	return point, nil
}

// StatisticalCorrector replaces extreme temperature outliers with the median
// of the surrounding window.
type StatisticalCorrector struct {
	windowSize int
	threshold  float64
}

func NewStatisticalCorrector(windowSize int) *StatisticalCorrector {
	if windowSize == 0 {
		windowSize = 24
	}
	return &StatisticalCorrector{
		windowSize: windowSize,
		threshold:  3.0,
	}
}

// CorrectOutliers rewrites temperatures more than threshold standard
// deviations from their surrounding window's mean, replacing them with the
// window median. Decisions are made against the original values.
func (sc *StatisticalCorrector) CorrectOutliers(points []*weather.Observation) []*weather.Observation {
	if len(points) == 0 {
		return points
	}

	temps := make([]float64, len(points))
	for i, p := range points {
		temps[i] = p.Temperature
	}

	half := sc.windowSize / 2
	for i, p := range points {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(temps) {
			hi = len(temps)
		}
		window := temps[lo:hi]

		mean, stdDev := meanStdDev(window)
		if stdDev == 0 {
			continue
		}
		if math.Abs((temps[i]-mean)/stdDev) > sc.threshold {
			p.Temperature = medianOf(window)
		}
	}

	return points
}

func meanStdDev(values []float64) (float64, float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(n)

	return mean, math.Sqrt(variance)
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2.0
	}
	return sorted[n/2]
}

// FillMissing forward-fills zero-valued fields from the previous reading.
// Points must be in ascending time order.
func (dc *DataCleaner) FillMissing(points []*weather.Observation) []*weather.Observation {
	if len(points) == 0 {
		return points
	}

	for i := 1; i < len(points); i++ {
		prev := points[i-1]
		curr := points[i]

		if curr.Humidity == 0 && prev.Humidity > 0 {
			curr.Humidity = prev.Humidity
		}
		if curr.Pressure == 0 && prev.Pressure > 0 {
			curr.Pressure = prev.Pressure
		}
		if curr.AQI == 0 && prev.AQI > 0 {
			curr.AQI = prev.AQI
			curr.PM25 = prev.PM25
			curr.PM10 = prev.PM10
		}
		if curr.Condition == "" {
			curr.Condition = prev.Condition
			curr.Description = prev.Description
		}
	}

	return points
}
