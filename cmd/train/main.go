// Command train fits a temperature model from a CSV export of historical
// observations and writes it to disk.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"skycast/ml"
	"skycast/pipeline"
	"skycast/weather"
)

func main() {
	csvPath := flag.String("csv", "", "historical observations CSV")
	city := flag.String("city", "", "city to train on (default: first city in the file)")
	defaultCity := flag.String("default_city", "", "city for files without a city column")
	latin1 := flag.Bool("latin1", false, "decode the CSV as ISO 8859-1")
	modelType := flag.String("model_type", "regression_tree", "regression_tree or linear")
	modelPath := flag.String("model_path", "./models/temperature.model", "model output path")
	maxDepth := flag.Int("max_depth", 8, "max tree depth")
	lookahead := flag.Int("lookahead", 3, "forecast horizon in hours")
	testRatio := flag.Float64("test_ratio", 0.2, "test ratio")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("csv is required")
	}

	points, err := pipeline.ImportCSV(*csvPath, pipeline.CSVImportOptions{
		Latin1:      *latin1,
		DefaultCity: *defaultCity,
	})
	if err != nil {
		log.Fatalf("failed to import CSV: %v", err)
	}

	cleaner := pipeline.NewDataCleaner()
	cleaned, issues := cleaner.Clean(points)
	cleaned = pipeline.NewStatisticalCorrector(0).CorrectOutliers(cleaned)
	cleaned = cleaner.FillMissing(cleaned)
	log.Printf("imported %d points, %d kept after cleaning, %d issues",
		len(points), len(cleaned), len(issues))

	series := citySeries(cleaned, *city)
	if len(series) == 0 {
		log.Fatal("no observations for the selected city")
	}
	log.Printf("training on %d observations for %s", len(series), series[0].City)

	features, targets, err := ml.BuildTrainingSet(series, *lookahead)
	if err != nil {
		log.Fatalf("failed to build training set: %v", err)
	}

	trainX, trainY, testX, testY := ml.ChronologicalSplit(features, targets, *testRatio)
	if len(trainX) == 0 || len(testX) == 0 {
		log.Fatal("dataset too small to split")
	}

	pre := &ml.DataPreprocessor{}
	if err := pre.FitRows(trainX); err != nil {
		log.Fatalf("failed to fit feature stats: %v", err)
	}
	if trainX, err = pre.NormalizeRows(trainX); err != nil {
		log.Fatalf("failed to scale training rows: %v", err)
	}
	if testX, err = pre.NormalizeRows(testX); err != nil {
		log.Fatalf("failed to scale test rows: %v", err)
	}

	model, err := ml.NewModel(*modelType, *maxDepth)
	if err != nil {
		log.Fatalf("failed to create model: %v", err)
	}
	if err := model.Train(trainX, trainY); err != nil {
		log.Fatalf("failed to train model: %v", err)
	}

	predictions := make([]float64, len(testX))
	for i, row := range testX {
		pred, err := model.Predict(row)
		if err != nil {
			log.Fatalf("prediction failed on test row %d: %v", i, err)
		}
		predictions[i] = pred
	}

	eval, err := ml.Evaluate(testY, predictions)
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}
	log.Printf("MAE=%.3f RMSE=%.3f R2=%.3f (test points: %d)",
		eval.MAE, eval.RMSE, eval.R2, eval.DataPoints)

	if err := os.MkdirAll(filepath.Dir(*modelPath), 0o755); err != nil {
		log.Fatalf("failed to create model dir: %v", err)
	}
	if err := pre.Save(ml.StatsPath(*modelPath)); err != nil {
		log.Fatalf("failed to save feature stats: %v", err)
	}
	if err := model.Save(*modelPath); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}

	fmt.Printf("model saved to %s\n", *modelPath)
}

// citySeries filters one city's points and sorts them chronologically.
// An empty city selects the first city seen in the file.
func citySeries(points []*weather.Observation, city string) []weather.Observation {
	if city == "" && len(points) > 0 {
		city = points[0].City
	}

	var series []weather.Observation
	for _, obs := range points {
		if obs.City == city {
			series = append(series, *obs)
		}
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	return series
}
