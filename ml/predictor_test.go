package ml

import (
	"context"
	"errors"
	"testing"
	"time"

	"skycast/weather"
)

type fakeLive struct {
	obs *weather.Observation
	err error
}

func (f *fakeLive) FetchCurrent(_ context.Context, _ string) (*weather.Observation, error) {
	return f.obs, f.err
}

type fakeStore struct {
	history []weather.Observation
	err     error
}

func (f *fakeStore) RecentObservations(_ string, _ int) ([]weather.Observation, error) {
	return f.history, f.err
}

type fixedModel struct {
	value float64
	err   error
}

func (m *fixedModel) Train([][]float64, []float64) error { return nil }
func (m *fixedModel) Predict([]float64) (float64, error) { return m.value, m.err }
func (m *fixedModel) Save(string) error                  { return nil }
func (m *fixedModel) Load(string) error                  { return nil }

func TestPredictForCityLive(t *testing.T) {
	live := &fakeLive{obs: &weather.Observation{
		City:        "Delhi",
		Timestamp:   time.Now().UTC(),
		Temperature: 31.5,
		AQI:         2,
	}}

	p := NewPredictor(PredictorConfig{}, nil, live, &fakeStore{})
	report, err := p.PredictForCity(context.Background(), "Delhi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Source != "live" {
		t.Fatalf("expected live source, got %s", report.Source)
	}
	if report.Current.Temperature != 31.5 {
		t.Fatalf("expected temperature 31.5, got %f", report.Current.Temperature)
	}
	if report.Forecast != nil {
		t.Fatal("expected no forecast without a model")
	}
}

func TestPredictForCityFallsBackToStored(t *testing.T) {
	history := hourlySeries("Mumbai", 5, func(i int) float64 { return 27 + float64(i) })
	live := &fakeLive{err: errors.New("provider down")}

	p := NewPredictor(PredictorConfig{}, nil, live, &fakeStore{history: history})
	report, err := p.PredictForCity(context.Background(), "Mumbai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Source != "sample" {
		t.Fatalf("expected sample source, got %s", report.Source)
	}
	if report.Current.Temperature != 31 {
		t.Fatalf("expected latest stored temperature 31, got %f", report.Current.Temperature)
	}
}

func TestPredictForCityNoData(t *testing.T) {
	live := &fakeLive{err: errors.New("provider down")}
	p := NewPredictor(PredictorConfig{}, nil, live, &fakeStore{})

	if _, err := p.PredictForCity(context.Background(), "Atlantis"); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestPredictForCityForecast(t *testing.T) {
	history := hourlySeries("Bangalore", 48, func(i int) float64 { return 22 + float64(i%5) })
	live := &fakeLive{obs: &weather.Observation{
		City:        "Bangalore",
		Timestamp:   history[len(history)-1].Timestamp.Add(time.Hour),
		Temperature: 24,
	}}

	p := NewPredictor(PredictorConfig{LookaheadHours: 3}, &fixedModel{value: 25.5}, live, &fakeStore{history: history})
	report, err := p.PredictForCity(context.Background(), "Bangalore")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Forecast) != 1 {
		t.Fatalf("expected one forecast point, got %d", len(report.Forecast))
	}
	point := report.Forecast[0]
	if point.Temperature != 25.5 {
		t.Fatalf("expected forecast 25.5, got %f", point.Temperature)
	}
	want := live.obs.Timestamp.Add(3 * time.Hour)
	if !point.Timestamp.Equal(want) {
		t.Fatalf("expected forecast at %v, got %v", want, point.Timestamp)
	}
}

type recordingModel struct {
	seen []float64
}

func (m *recordingModel) Train([][]float64, []float64) error { return nil }
func (m *recordingModel) Save(string) error                  { return nil }
func (m *recordingModel) Load(string) error                  { return nil }

func (m *recordingModel) Predict(features []float64) (float64, error) {
	m.seen = append([]float64(nil), features...)
	return 25, nil
}

func TestPredictForCityScalesFeatures(t *testing.T) {
	history := hourlySeries("Hyderabad", 48, func(i int) float64 { return 22 + float64(i%5) })
	live := &fakeLive{obs: &weather.Observation{
		City:        "Hyderabad",
		Timestamp:   history[len(history)-1].Timestamp.Add(time.Hour),
		Temperature: 24,
		Humidity:    60,
		Pressure:    1010,
	}}

	features, err := ExtractFeatures(history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := make([][]float64, len(features))
	for i, f := range features {
		rows[i] = FeatureVector(f)
	}
	pre := &DataPreprocessor{}
	if err := pre.FitRows(rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	model := &recordingModel{}
	p := NewPredictor(PredictorConfig{}, model, live, &fakeStore{history: history})
	p.SetPreprocessor(pre)

	report, err := p.PredictForCity(context.Background(), "Hyderabad")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Forecast) != 1 {
		t.Fatalf("expected one forecast point, got %d", len(report.Forecast))
	}
	if len(model.seen) == 0 {
		t.Fatal("model was never called")
	}
	// Raw vectors carry pressure around 1010; scaled ones stay near unit
	// range even where the live point extrapolates slightly.
	for j, v := range model.seen {
		if v < -10 || v > 10 {
			t.Fatalf("feature %d not scaled: %f", j, v)
		}
	}
}

func TestPredictForCityCaches(t *testing.T) {
	live := &fakeLive{obs: &weather.Observation{
		City:        "Chennai",
		Timestamp:   time.Now().UTC(),
		Temperature: 33,
	}}

	p := NewPredictor(PredictorConfig{}, nil, live, &fakeStore{})
	first, err := p.PredictForCity(context.Background(), "Chennai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	live.obs = nil
	live.err = errors.New("provider down")

	second, err := p.PredictForCity(context.Background(), "Chennai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != first {
		t.Fatal("expected cached report on second call")
	}
}

func TestPredictorModelSwap(t *testing.T) {
	history := hourlySeries("Kolkata", 48, func(i int) float64 { return 26 })
	live := &fakeLive{obs: &weather.Observation{
		City:        "Kolkata",
		Timestamp:   history[len(history)-1].Timestamp.Add(time.Hour),
		Temperature: 26,
	}}

	p := NewPredictor(PredictorConfig{CacheTTL: time.Nanosecond}, nil, live, &fakeStore{history: history})
	report, err := p.PredictForCity(context.Background(), "Kolkata")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Forecast != nil {
		t.Fatal("expected no forecast before SetModel")
	}

	p.SetModel(&fixedModel{value: 27.2})
	time.Sleep(time.Millisecond)

	report, err = p.PredictForCity(context.Background(), "Kolkata")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Forecast) != 1 || report.Forecast[0].Temperature != 27.2 {
		t.Fatalf("expected forecast 27.2 after model swap, got %+v", report.Forecast)
	}
}
