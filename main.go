package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"skycast/db"
	qhttp "skycast/http"
	"skycast/llm"
	"skycast/logging"
	"skycast/ml"
	"skycast/monitoring"
	"skycast/pipeline"
	"skycast/weather/providers"
)

type Config struct {
	Cities   []string `yaml:"cities"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	Log      logging.Config `yaml:"log"`
	Provider struct {
		Primary string        `yaml:"primary"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"provider"`
	Ingestion struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
		Incremental  bool          `yaml:"incremental"`
	} `yaml:"ingestion"`
	ML struct {
		ModelType      string `yaml:"model_type"`
		ModelPath      string `yaml:"model_path"`
		MaxTreeDepth   int    `yaml:"max_tree_depth"`
		LookaheadHours int    `yaml:"lookahead_hours"`
		Training       struct {
			MinDataPoints int     `yaml:"min_data_points"`
			TestRatio     float64 `yaml:"test_ratio"`
		} `yaml:"training"`
		Cache struct {
			Size int           `yaml:"size"`
			TTL  time.Duration `yaml:"ttl"`
		} `yaml:"cache"`
	} `yaml:"ml"`
	Chat struct {
		LLMAPIKey    string        `yaml:"llm_api_key"`
		LLMModel     string        `yaml:"llm_model"`
		LLMTimeout   time.Duration `yaml:"llm_timeout"`
		LLMMaxTokens int           `yaml:"llm_max_tokens"`
	} `yaml:"chat"`
}

func main() {
	// .env is optional, environment wins over config.yaml for secrets.
	_ = godotenv.Load()

	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.Init(config.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Sync()

	if err := db.InitDB(config.Database.Path); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("database initialized", zap.String("path", config.Database.Path))

	manager := buildProviders(config)
	manager.StartHealthChecks()
	defer manager.StopHealthChecks()

	hub := monitoring.NewWebSocketHub()
	go hub.Start()
	defer hub.Stop()

	metrics := monitoring.NewMetricsCollector()
	alerts := monitoring.NewAlertManager(hub, 30*time.Minute)

	cleaner := pipeline.NewDataCleaner()
	ingester := pipeline.NewDataIngester(pipeline.IngestionConfig{
		BatchSize:         config.Ingestion.BatchSize,
		BatchTimeout:      config.Ingestion.BatchTimeout,
		PollInterval:      config.Ingestion.PollInterval,
		EnableIncremental: config.Ingestion.Incremental,
	}, manager, cleaner, db.Store{})
	ingester.SetQualityAlertSink(hub)
	ingester.SetMetricsSink(metrics)
	if err := ingester.Start(config.Cities); err != nil {
		logger.Fatal("failed to start ingestion", zap.Error(err))
	}
	defer ingester.Stop()

	predictor := buildPredictor(config, manager, logger)

	qhttp.SetProviderManager(manager)
	qhttp.SetCities(config.Cities)
	qhttp.SetIngester(ingester)
	qhttp.SetCleaner(cleaner)
	qhttp.SetPredictor(predictor)
	qhttp.SetWebSocketHub(hub)
	qhttp.SetMetricsCollector(metrics)
	qhttp.SetAlertManager(alerts)
	if len(config.Cities) > 0 {
		qhttp.SetDefaultCity(config.Cities[0])
	}
	qhttp.SetTrainingDefaults(qhttp.TrainingConfig{
		City:           firstCity(config.Cities),
		ModelType:      config.ML.ModelType,
		ModelPath:      config.ML.ModelPath,
		MaxTreeDepth:   config.ML.MaxTreeDepth,
		LookaheadHours: config.ML.LookaheadHours,
		TestRatio:      config.ML.Training.TestRatio,
		MinDataPoints:  config.ML.Training.MinDataPoints,
		HistoryLimit:   5000,
	})

	if config.Chat.LLMAPIKey != "" {
		analyzer := llm.NewDeepSeekAnalyzer(config.Chat.LLMAPIKey, config.Chat.LLMModel,
			config.Chat.LLMTimeout, config.Chat.LLMMaxTokens)
		qhttp.SetChatAnalyzer(analyzer)
		logger.Info("chat analyzer enabled", zap.String("model", config.Chat.LLMModel))
	}

	watcher := watchModel(config, predictor, logger)
	if watcher != nil {
		defer watcher.Close()
	}

	go publishStatus(hub, metrics, ingester)
	go runAlertLoop(config.Cities, alerts, hub)

	serverConfig := qhttp.DefaultServerConfig()
	serverConfig.Port = config.Http.Port
	server := qhttp.NewServer(serverConfig)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}

	if key := os.Getenv("SKYCAST_API_KEY"); key != "" {
		config.Provider.APIKey = key
	} else if key := os.Getenv("OPENWEATHER_API_KEY"); key != "" {
		config.Provider.APIKey = key
	}
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		config.Chat.LLMAPIKey = key
	}

	return &config, nil
}

func buildProviders(config *Config) *providers.ProviderManager {
	manager := providers.NewProviderManager()

	if config.Provider.APIKey != "" {
		manager.AddProvider(providers.NewOpenWeatherProvider(config.Provider.APIKey, config.Provider.Timeout))
	} else {
		zap.L().Warn("no provider API key configured, serving mock data")
	}
	manager.AddProvider(providers.NewMockProvider())

	if config.Provider.Primary != "" {
		if err := manager.SetPrimaryProvider(config.Provider.Primary); err != nil {
			zap.L().Warn("primary provider not available",
				zap.String("provider", config.Provider.Primary), zap.Error(err))
		}
	}
	return manager
}

func buildPredictor(config *Config, manager *providers.ProviderManager, logger *zap.Logger) *ml.Predictor {
	var model ml.Regressor
	var pre *ml.DataPreprocessor
	if config.ML.ModelType != "" && config.ML.ModelPath != "" {
		loaded, err := ml.LoadModel(config.ML.ModelType, config.ML.ModelPath)
		if err != nil {
			logger.Warn("no trained model loaded, forecasts disabled until training",
				zap.String("path", config.ML.ModelPath), zap.Error(err))
		} else {
			model = loaded
			pre = loadFeatureStats(config.ML.ModelPath, logger)
			logger.Info("model loaded", zap.String("path", config.ML.ModelPath))
		}
	}

	predictor := ml.NewPredictor(ml.PredictorConfig{
		LookaheadHours: config.ML.LookaheadHours,
		CacheSize:      config.ML.Cache.Size,
		CacheTTL:       config.ML.Cache.TTL,
	}, model, manager, db.Store{})
	predictor.SetPreprocessor(pre)
	return predictor
}

// watchModel hot-swaps the model when the file on disk changes. A failed
// reload keeps the previous model.
func watchModel(config *Config, predictor *ml.Predictor, logger *zap.Logger) *fsnotify.Watcher {
	if config.ML.ModelPath == "" {
		return nil
	}

	dir := filepath.Dir(config.ML.ModelPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("cannot create model directory", zap.String("dir", dir), zap.Error(err))
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("model watcher unavailable", zap.Error(err))
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		logger.Warn("cannot watch model directory", zap.String("dir", dir), zap.Error(err))
		watcher.Close()
		return nil
	}

	modelPath := filepath.Clean(config.ML.ModelPath)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != modelPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				model, err := ml.LoadModel(config.ML.ModelType, config.ML.ModelPath)
				if err != nil {
					logger.Warn("model reload failed, keeping previous model", zap.Error(err))
					continue
				}
				predictor.SetPreprocessor(loadFeatureStats(config.ML.ModelPath, logger))
				predictor.SetModel(model)
				logger.Info("model reloaded", zap.String("path", config.ML.ModelPath))

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("model watcher error", zap.Error(err))
			}
		}
	}()

	return watcher
}

// loadFeatureStats reads the scaling stats saved next to the model. Nil when
// the sidecar is missing; the predictor then feeds raw vectors.
func loadFeatureStats(modelPath string, logger *zap.Logger) *ml.DataPreprocessor {
	pre := &ml.DataPreprocessor{}
	if err := pre.Load(ml.StatsPath(modelPath)); err != nil {
		logger.Warn("feature stats not loaded, serving unscaled features",
			zap.String("path", ml.StatsPath(modelPath)), zap.Error(err))
		return nil
	}
	return pre
}

// publishStatus pushes periodic system status to dashboard clients.
func publishStatus(hub *monitoring.WebSocketHub, metrics *monitoring.MetricsCollector, ingester *pipeline.DataIngester) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		stats := ingester.GetStats()
		metrics.SetGauge("skycast_ws_clients", float64(hub.ClientCount()))

		hub.BroadcastSystemStatus(map[string]interface{}{
			"ingestion":      stats,
			"ws_clients":     hub.ClientCount(),
			"uptime_seconds": metrics.Uptime().Seconds(),
		})
	}
}

// runAlertLoop checks the newest stored reading per city against the alert
// rules and streams it to dashboard clients.
func runAlertLoop(cities []string, alerts *monitoring.AlertManager, hub *monitoring.WebSocketHub) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	seen := make(map[string]time.Time)
	for range ticker.C {
		for _, city := range cities {
			obs, err := db.LatestObservation(city)
			if err != nil || obs == nil {
				continue
			}
			if last, ok := seen[city]; ok && !obs.Timestamp.After(last) {
				continue
			}
			seen[city] = obs.Timestamp

			hub.BroadcastObservation(obs)
			alerts.Evaluate(obs)
		}
	}
}

func firstCity(cities []string) string {
	if len(cities) == 0 {
		return ""
	}
	return cities[0]
}
