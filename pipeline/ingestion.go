// Package pipeline ingests, cleans and imports weather observations.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"skycast/weather"
	"skycast/weather/providers"
)

// IngestionConfig tunes polling and batch flushing.
type IngestionConfig struct {
	BatchSize         int           `json:"batch_size"`
	BatchTimeout      time.Duration `json:"batch_timeout"`
	PollInterval      time.Duration `json:"poll_interval"`
	EnableIncremental bool          `json:"enable_incremental"`
	MaxRetries        int           `json:"max_retries"`
}

// DataStorage persists cleaned observations and cleaning findings.
type DataStorage interface {
	SaveBatch(ctx context.Context, points []*weather.Observation) error
	GetLastTimestamp(ctx context.Context, city string) (time.Time, error)
	SaveQualityIssues(issues []QualityIssue) error
}

// QualityAlertSink receives cleaning findings as they happen.
type QualityAlertSink interface {
	BroadcastQualityAlert(issue QualityIssue)
}

// MetricsSink counts ingester throughput.
type MetricsSink interface {
	IncCounter(name string, delta int64)
}

// IngestionStats tracks ingester throughput.
type IngestionStats struct {
	TotalPoints      int64            `json:"total_points"`
	FailedPoints     int64            `json:"failed_points"`
	RejectedPoints   int64            `json:"rejected_points"`
	BatchesProcessed int64            `json:"batches_processed"`
	LastIngestion    time.Time        `json:"last_ingestion"`
	Cities           map[string]int64 `json:"cities"`
}

// DataIngester polls providers for each configured city, cleans the results
// and flushes them to storage in batches.
type DataIngester struct {
	config    IngestionConfig
	source    *providers.ProviderManager
	cleaner   *DataCleaner
	storage   DataStorage
	alertSink QualityAlertSink
	metrics   MetricsSink

	batchBuffer map[string][]*weather.Observation
	bufferLock  sync.RWMutex

	progress     map[string]time.Time
	progressLock sync.RWMutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	stats     IngestionStats
	statsLock sync.RWMutex
}

// NewDataIngester creates an ingester with defaults filled in.
func NewDataIngester(config IngestionConfig, source *providers.ProviderManager, cleaner *DataCleaner, storage DataStorage) *DataIngester {
	if config.BatchSize == 0 {
		config.BatchSize = 200
	}
	if config.BatchTimeout == 0 {
		config.BatchTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 10 * time.Minute
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	return &DataIngester{
		config:      config,
		source:      source,
		cleaner:     cleaner,
		storage:     storage,
		batchBuffer: make(map[string][]*weather.Observation),
		progress:    make(map[string]time.Time),
		stopChan:    make(chan struct{}),
		stats: IngestionStats{
			Cities: make(map[string]int64),
		},
	}
}

// SetQualityAlertSink streams cleaning findings to a sink (e.g. the
// dashboard hub). Call before Start.
func (di *DataIngester) SetQualityAlertSink(sink QualityAlertSink) {
	di.alertSink = sink
}

// SetMetricsSink counts ingested and rejected points. Call before Start.
func (di *DataIngester) SetMetricsSink(metrics MetricsSink) {
	di.metrics = metrics
}

// Start begins polling for the given cities.
func (di *DataIngester) Start(cities []string) error {
	zap.L().Info("starting ingestion", zap.Int("cities", len(cities)))

	for _, city := range cities {
		if di.config.EnableIncremental {
			if last, err := di.storage.GetLastTimestamp(context.Background(), city); err == nil {
				di.progressLock.Lock()
				di.progress[city] = last
				di.progressLock.Unlock()
			}
		}
		di.batchBuffer[city] = make([]*weather.Observation, 0, di.config.BatchSize)
	}

	di.wg.Add(1)
	go di.runPollLoop(cities)

	return nil
}

// Stop halts polling and flushes outstanding buffers.
func (di *DataIngester) Stop() {
	zap.L().Info("stopping ingestion")
	di.stopOnce.Do(func() { close(di.stopChan) })

	di.flushAllBatches(context.Background())

	di.wg.Wait()
	zap.L().Info("ingestion stopped")
}

func (di *DataIngester) runPollLoop(cities []string) {
	defer di.wg.Done()

	ticker := time.NewTicker(di.config.PollInterval)
	defer ticker.Stop()

	flushTicker := time.NewTicker(di.config.BatchTimeout)
	defer flushTicker.Stop()

	for {
		select {
		case <-di.stopChan:
			return
		case <-ticker.C:
			di.pollCycle(context.Background(), cities)
		case <-flushTicker.C:
			di.flushAllBatches(context.Background())
		}
	}
}

// pollCycle fetches all cities concurrently; one failing city does not block
// the rest of the cycle.
func (di *DataIngester) pollCycle(ctx context.Context, cities []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, city := range cities {
		city := city
		g.Go(func() error {
			if err := di.ingestCity(gctx, city); err != nil {
				zap.L().Warn("city ingest failed", zap.String("city", city), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (di *DataIngester) ingestCity(ctx context.Context, city string) error {
	obs, err := di.source.FetchCurrent(ctx, city)
	if err != nil {
		return fmt.Errorf("fetch current failed: %w", err)
	}

	// Incremental mode skips readings we already stored.
	if di.config.EnableIncremental {
		di.progressLock.RLock()
		last := di.progress[city]
		di.progressLock.RUnlock()
		if !obs.Timestamp.After(last) {
			return nil
		}
	}

	points := []*weather.Observation{obs}
	if di.cleaner != nil {
		cleaned, issues := di.cleaner.Clean(points)
		di.recordIssues(issues, len(points)-len(cleaned))
		points = cleaned
	}
	if len(points) == 0 {
		return nil
	}

	di.addToBuffer(city, points)

	if di.shouldFlush(city) {
		if err := di.flushBuffer(ctx, city); err != nil {
			return fmt.Errorf("flush buffer failed: %w", err)
		}
	}

	return nil
}

// IngestBatch feeds externally loaded observations (e.g. a CSV import)
// through cleaning and into storage.
func (di *DataIngester) IngestBatch(ctx context.Context, points []*weather.Observation) error {
	if len(points) == 0 {
		return nil
	}

	if di.cleaner != nil {
		cleaned, issues := di.cleaner.Clean(points)
		di.recordIssues(issues, len(points)-len(cleaned))
		points = cleaned
	}

	batches := make(map[string][]*weather.Observation)
	for _, point := range points {
		batches[point.City] = append(batches[point.City], point)
	}

	for city, batch := range batches {
		di.addToBuffer(city, batch)
		if err := di.flushBuffer(ctx, city); err != nil {
			return fmt.Errorf("failed to save batch for %s: %w", city, err)
		}
	}

	return nil
}

// recordIssues persists and streams cleaning findings and counts rejects.
func (di *DataIngester) recordIssues(issues []QualityIssue, rejected int) {
	if rejected > 0 {
		di.statsLock.Lock()
		di.stats.RejectedPoints += int64(rejected)
		di.statsLock.Unlock()
		if di.metrics != nil {
			di.metrics.IncCounter("skycast_points_rejected_total", int64(rejected))
		}
	}
	if len(issues) == 0 {
		return
	}
	if err := di.storage.SaveQualityIssues(issues); err != nil {
		zap.L().Warn("failed to persist quality issues", zap.Error(err))
	}
	if di.alertSink != nil {
		for _, issue := range issues {
			di.alertSink.BroadcastQualityAlert(issue)
		}
	}
}

func (di *DataIngester) addToBuffer(city string, points []*weather.Observation) {
	di.bufferLock.Lock()
	di.batchBuffer[city] = append(di.batchBuffer[city], points...)
	di.bufferLock.Unlock()

	di.statsLock.Lock()
	di.stats.TotalPoints += int64(len(points))
	di.stats.Cities[city] += int64(len(points))
	di.statsLock.Unlock()

	if di.metrics != nil {
		di.metrics.IncCounter("skycast_points_ingested_total", int64(len(points)))
	}
}

func (di *DataIngester) shouldFlush(city string) bool {
	di.bufferLock.RLock()
	defer di.bufferLock.RUnlock()

	return len(di.batchBuffer[city]) >= di.config.BatchSize
}

func (di *DataIngester) flushBuffer(ctx context.Context, city string) error {
	di.bufferLock.Lock()
	buffer := di.batchBuffer[city]
	di.batchBuffer[city] = make([]*weather.Observation, 0, di.config.BatchSize)
	di.bufferLock.Unlock()

	if len(buffer) == 0 {
		return nil
	}

	for retry := 0; retry < di.config.MaxRetries; retry++ {
		if err := di.storage.SaveBatch(ctx, buffer); err != nil {
			if retry == di.config.MaxRetries-1 {
				di.statsLock.Lock()
				di.stats.FailedPoints += int64(len(buffer))
				di.statsLock.Unlock()
				return err
			}
			time.Sleep(time.Duration(retry+1) * time.Second)
			continue
		}
		break
	}

	if di.config.EnableIncremental {
		lastPoint := buffer[len(buffer)-1]
		di.progressLock.Lock()
		if lastPoint.Timestamp.After(di.progress[city]) {
			di.progress[city] = lastPoint.Timestamp
		}
		di.progressLock.Unlock()
	}

	di.statsLock.Lock()
	di.stats.BatchesProcessed++
	di.stats.LastIngestion = time.Now()
	di.statsLock.Unlock()

	zap.L().Debug("flushed observations", zap.String("city", city), zap.Int("count", len(buffer)))

	return nil
}

func (di *DataIngester) flushAllBatches(ctx context.Context) {
	di.bufferLock.RLock()
	cities := make([]string, 0, len(di.batchBuffer))
	for city := range di.batchBuffer {
		cities = append(cities, city)
	}
	di.bufferLock.RUnlock()

	for _, city := range cities {
		if err := di.flushBuffer(ctx, city); err != nil {
			zap.L().Warn("flush failed", zap.String("city", city), zap.Error(err))
		}
	}
}

// GetStats returns a snapshot of ingestion counters.
func (di *DataIngester) GetStats() IngestionStats {
	di.statsLock.RLock()
	defer di.statsLock.RUnlock()

	snapshot := di.stats
	snapshot.Cities = make(map[string]int64, len(di.stats.Cities))
	for city, count := range di.stats.Cities {
		snapshot.Cities[city] = count
	}
	return snapshot
}

// GetProgress returns the last stored timestamp for a city.
func (di *DataIngester) GetProgress(city string) (time.Time, error) {
	di.progressLock.RLock()
	defer di.progressLock.RUnlock()

	last, ok := di.progress[city]
	if !ok {
		return time.Time{}, fmt.Errorf("progress not found for %s", city)
	}
	return last, nil
}
