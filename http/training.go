package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"skycast/db"
	"skycast/ml"
	"skycast/weather"
)

type TrainingConfig struct {
	City           string  `json:"city"`
	ModelType      string  `json:"model_type"`
	ModelPath      string  `json:"model_path"`
	MaxTreeDepth   int     `json:"max_tree_depth"`
	LookaheadHours int     `json:"lookahead_hours"`
	TestRatio      float64 `json:"test_ratio"`
	MinDataPoints  int     `json:"min_data_points"`
	HistoryLimit   int     `json:"history_limit"`
}

var trainingDefaults = TrainingConfig{
	ModelType:      "regression_tree",
	ModelPath:      "./models/temperature.model",
	MaxTreeDepth:   8,
	LookaheadHours: 3,
	TestRatio:      0.2,
	MinDataPoints:  200,
	HistoryLimit:   5000,
}

// SetTrainingDefaults sets the fallback values for /api/train requests.
func SetTrainingDefaults(config TrainingConfig) {
	trainingDefaults = config
}

// Swappable for tests.
var loadTrainingObservations = func(city string, limit int) ([]weather.Observation, error) {
	return db.QueryObservations(city, limit)
}

// trainModel fits a model on stored observations and logs the evaluation.
func trainModel(config TrainingConfig) (*db.TrainingRun, error) {
	if config.City == "" {
		return nil, errors.New("city is required")
	}
	if config.ModelPath == "" {
		return nil, errors.New("model path is required")
	}

	series, err := loadTrainingObservations(config.City, config.HistoryLimit)
	if err != nil {
		return nil, err
	}
	if len(series) < config.MinDataPoints {
		return nil, fmt.Errorf("not enough data: %d points, need %d", len(series), config.MinDataPoints)
	}

	features, targets, err := ml.BuildTrainingSet(series, config.LookaheadHours)
	if err != nil {
		return nil, err
	}

	trainX, trainY, testX, testY := ml.ChronologicalSplit(features, targets, config.TestRatio)
	if len(trainX) == 0 || len(testX) == 0 {
		return nil, errors.New("dataset too small to split")
	}

	// Scale against the training rows only; serving reuses the same stats.
	pre := &ml.DataPreprocessor{}
	if err := pre.FitRows(trainX); err != nil {
		return nil, err
	}
	trainX, err = pre.NormalizeRows(trainX)
	if err != nil {
		return nil, err
	}
	testX, err = pre.NormalizeRows(testX)
	if err != nil {
		return nil, err
	}

	model, err := ml.NewModel(config.ModelType, config.MaxTreeDepth)
	if err != nil {
		return nil, err
	}
	if err := model.Train(trainX, trainY); err != nil {
		return nil, err
	}

	predictions := make([]float64, len(testX))
	for i, row := range testX {
		pred, err := model.Predict(row)
		if err != nil {
			return nil, err
		}
		predictions[i] = pred
	}

	eval, err := ml.Evaluate(testY, predictions)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(config.ModelPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	// Stats land before the model so a reload on the model write sees them.
	if err := pre.Save(ml.StatsPath(config.ModelPath)); err != nil {
		return nil, err
	}
	if err := model.Save(config.ModelPath); err != nil {
		return nil, err
	}

	run := db.TrainingRun{
		ModelName:  config.ModelType,
		MAE:        eval.MAE,
		RMSE:       eval.RMSE,
		R2:         eval.R2,
		TrainedAt:  time.Now().UTC(),
		DataPoints: len(features),
	}
	if err := db.LogTraining(run); err != nil {
		zap.L().Warn("failed to log training run", zap.Error(err))
	}

	zap.L().Info("model trained",
		zap.String("city", config.City),
		zap.String("model", config.ModelType),
		zap.Float64("mae", eval.MAE),
		zap.Float64("rmse", eval.RMSE),
		zap.Float64("r2", eval.R2),
		zap.Int("data_points", len(features)))

	return &run, nil
}

func RegisterTrainingHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/train", handleTrain)
	mux.HandleFunc("GET /api/training/log", handleTrainingLog)
}

func handleTrain(w http.ResponseWriter, r *http.Request) {
	config := trainingDefaults
	if r.Body != nil {
		// Body is optional; absent fields keep the defaults.
		var req TrainingConfig
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			if req.City != "" {
				config.City = req.City
			}
			if req.ModelType != "" {
				config.ModelType = req.ModelType
			}
			if req.ModelPath != "" {
				config.ModelPath = req.ModelPath
			}
			if req.MaxTreeDepth > 0 {
				config.MaxTreeDepth = req.MaxTreeDepth
			}
			if req.LookaheadHours > 0 {
				config.LookaheadHours = req.LookaheadHours
			}
			if req.TestRatio > 0 {
				config.TestRatio = req.TestRatio
			}
			if req.MinDataPoints > 0 {
				config.MinDataPoints = req.MinDataPoints
			}
			if req.HistoryLimit > 0 {
				config.HistoryLimit = req.HistoryLimit
			}
		}
	}

	run, err := trainModel(config)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	respondJSON(w, map[string]interface{}{
		"status": "trained",
		"run":    run,
	})
}

func handleTrainingLog(w http.ResponseWriter, r *http.Request) {
	runs, err := db.LoadTrainingLog()
	if err != nil {
		http.Error(w, `{"error":"failed to load training log"}`, http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}
