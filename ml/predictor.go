package ml

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"skycast/weather"
)

// ErrNoData means neither live conditions nor stored history exist for a city.
var ErrNoData = errors.New("no data available")

// ObservationSource supplies stored history, oldest first.
type ObservationSource interface {
	RecentObservations(city string, limit int) ([]weather.Observation, error)
}

// LiveSource supplies live conditions.
type LiveSource interface {
	FetchCurrent(ctx context.Context, city string) (*weather.Observation, error)
}

// PredictorConfig tunes forecasting and result caching.
type PredictorConfig struct {
	LookaheadHours int
	HistoryHours   int
	CacheSize      int
	CacheTTL       time.Duration
}

// Predictor produces per-city weather reports: live (or latest stored)
// conditions, a temperature forecast from the active model, and health
// advice from air quality.
type Predictor struct {
	config PredictorConfig

	model   Regressor
	pre     *DataPreprocessor
	modelMu sync.RWMutex

	live  LiveSource
	store ObservationSource

	cache *expirable.LRU[string, *weather.Report]
}

// NewPredictor wires a predictor. model may be nil; reports then carry no
// forecast until SetModel is called.
func NewPredictor(config PredictorConfig, model Regressor, live LiveSource, store ObservationSource) *Predictor {
	if config.LookaheadHours <= 0 {
		config.LookaheadHours = 3
	}
	if config.HistoryHours <= 0 {
		config.HistoryHours = 72
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 64
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}

	return &Predictor{
		config: config,
		model:  model,
		live:   live,
		store:  store,
		cache:  expirable.NewLRU[string, *weather.Report](config.CacheSize, nil, config.CacheTTL),
	}
}

// SetModel swaps the active model. Safe to call while serving.
func (p *Predictor) SetModel(model Regressor) {
	p.modelMu.Lock()
	p.model = model
	p.modelMu.Unlock()
}

// SetPreprocessor swaps the feature scaler. The model must have been trained
// on vectors scaled with the same stats.
func (p *Predictor) SetPreprocessor(pre *DataPreprocessor) {
	p.modelMu.Lock()
	p.pre = pre
	p.modelMu.Unlock()
}

// PredictForCity builds a report for one city. Falls back to the latest
// stored observation when the live source fails.
func (p *Predictor) PredictForCity(ctx context.Context, city string) (*weather.Report, error) {
	if cached, ok := p.cache.Get(city); ok {
		return cached, nil
	}

	var history []weather.Observation
	if p.store != nil {
		if recent, err := p.store.RecentObservations(city, p.config.HistoryHours); err == nil {
			history = recent
		}
	}

	current, source, err := p.currentConditions(ctx, city, history)
	if err != nil {
		return nil, err
	}

	report := &weather.Report{
		City:         city,
		Timestamp:    current.Timestamp,
		Current:      weather.CurrentFrom(*current),
		HealthAdvice: weather.HealthAdvice(current.AQI, current.PM25),
		Source:       source,
	}

	if forecast := p.forecast(city, history, current); len(forecast) > 0 {
		report.Forecast = forecast
	}

	p.cache.Add(city, report)
	return report, nil
}

func (p *Predictor) currentConditions(ctx context.Context, city string, history []weather.Observation) (*weather.Observation, string, error) {
	if p.live != nil {
		current, err := p.live.FetchCurrent(ctx, city)
		if err == nil {
			return current, "live", nil
		}
		zap.L().Warn("live conditions unavailable, falling back to stored data",
			zap.String("city", city), zap.Error(err))
	}

	if len(history) > 0 {
		latest := history[len(history)-1]
		return &latest, "sample", nil
	}

	return nil, "", ErrNoData
}

// forecast predicts the temperature LookaheadHours ahead of the newest
// reading. Errors here degrade the report, they never fail it.
func (p *Predictor) forecast(city string, history []weather.Observation, current *weather.Observation) []weather.ForecastPoint {
	p.modelMu.RLock()
	model := p.model
	pre := p.pre
	p.modelMu.RUnlock()

	if model == nil {
		return nil
	}

	series := history
	if len(series) == 0 || series[len(series)-1].Timestamp.Before(current.Timestamp) {
		series = append(append([]weather.Observation{}, history...), *current)
	}

	features, err := ExtractFeatures(series)
	if err != nil {
		zap.L().Debug("not enough history to forecast", zap.String("city", city), zap.Error(err))
		return nil
	}

	latest := features[len(features)-1]
	vector := FeatureVector(latest)
	if pre != nil {
		scaled, err := pre.NormalizeRow(vector)
		if err != nil {
			zap.L().Warn("feature scaling failed", zap.String("city", city), zap.Error(err))
			return nil
		}
		vector = scaled
	}
	predicted, err := model.Predict(vector)
	if err != nil {
		zap.L().Warn("model predict failed", zap.String("city", city), zap.Error(err))
		return nil
	}

	return []weather.ForecastPoint{{
		Timestamp:   latest.Timestamp.Add(time.Duration(p.config.LookaheadHours) * time.Hour),
		Temperature: predicted,
	}}
}
