package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"skycast/pipeline"
	"skycast/weather"
)

var database *sql.DB

// InitDB opens the SQLite database and creates the schema.
func InitDB(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	var err error
	database, err = sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS observations (
        id INTEGER PRIMARY KEY,
        city VARCHAR(50),
        timestamp DATETIME,
        temperature REAL,
        feels_like REAL,
        humidity INTEGER,
        pressure INTEGER,
        wind_speed REAL,
        clouds INTEGER,
        weather_main VARCHAR(50),
        weather_description VARCHAR(100),
        aqi INTEGER,
        pm2_5 REAL,
        pm10 REAL,
        UNIQUE(city, timestamp)
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY,
        city VARCHAR(50),
        predicted_temp REAL,
        target_time DATETIME,
        source VARCHAR(20),
        created_at DATETIME,
        UNIQUE(city, target_time)
    );
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY,
        model_name VARCHAR(50),
        mae REAL,
        rmse REAL,
        r2 REAL,
        trained_at DATETIME,
        data_points INTEGER
    );
    CREATE TABLE IF NOT EXISTS data_quality (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        city VARCHAR(50),
        issue_type VARCHAR(50),
        severity VARCHAR(20),
        message TEXT,
        detected_at DATETIME
    );
    CREATE INDEX IF NOT EXISTS idx_observations_city_ts ON observations(city, timestamp);
    `

	_, err = database.Exec(query)
	return err
}

// Close releases the database handle.
func Close() error {
	if database == nil {
		return nil
	}
	return database.Close()
}

// SaveObservations writes a batch in one transaction. Re-ingested points
// replace the stored row for the same (city, timestamp).
func SaveObservations(ctx context.Context, points []*weather.Observation) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	if len(points) == 0 {
		return nil
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT OR REPLACE INTO observations (
            city, timestamp, temperature, feels_like, humidity, pressure,
            wind_speed, clouds, weather_main, weather_description, aqi, pm2_5, pm10
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, obs := range points {
		_, err := stmt.ExecContext(ctx,
			obs.City, obs.Timestamp.UTC(), obs.Temperature, obs.FeelsLike,
			obs.Humidity, obs.Pressure, obs.WindSpeed, obs.Clouds,
			obs.Condition, obs.Description, obs.AQI, obs.PM25, obs.PM10)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// QueryObservations returns the newest limit rows for a city, oldest first.
func QueryObservations(city string, limit int) ([]weather.Observation, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := database.Query(`
        SELECT city, timestamp, temperature, feels_like, humidity, pressure,
               wind_speed, clouds, weather_main, weather_description, aqi, pm2_5, pm10
        FROM observations
        WHERE city = ?
        ORDER BY timestamp DESC
        LIMIT ?`, city, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []weather.Observation
	for rows.Next() {
		var obs weather.Observation
		err := rows.Scan(&obs.City, &obs.Timestamp, &obs.Temperature, &obs.FeelsLike,
			&obs.Humidity, &obs.Pressure, &obs.WindSpeed, &obs.Clouds,
			&obs.Condition, &obs.Description, &obs.AQI, &obs.PM25, &obs.PM10)
		if err != nil {
			return nil, err
		}
		points = append(points, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order for feature extraction.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// LatestObservation returns the newest stored row for a city, or nil when
// the city has no data.
func LatestObservation(city string) (*weather.Observation, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	var obs weather.Observation
	err := database.QueryRow(`
        SELECT city, timestamp, temperature, feels_like, humidity, pressure,
               wind_speed, clouds, weather_main, weather_description, aqi, pm2_5, pm10
        FROM observations
        WHERE city = ?
        ORDER BY timestamp DESC
        LIMIT 1`, city).Scan(&obs.City, &obs.Timestamp, &obs.Temperature, &obs.FeelsLike,
		&obs.Humidity, &obs.Pressure, &obs.WindSpeed, &obs.Clouds,
		&obs.Condition, &obs.Description, &obs.AQI, &obs.PM25, &obs.PM10)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

// LastTimestamp returns the newest stored timestamp for a city. A city with
// no rows returns the zero time.
func LastTimestamp(ctx context.Context, city string) (time.Time, error) {
	if database == nil {
		return time.Time{}, errors.New("database not initialized")
	}
	var ts time.Time
	err := database.QueryRowContext(ctx, `
        SELECT timestamp FROM observations
        WHERE city = ?
        ORDER BY timestamp DESC
        LIMIT 1`, city).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return ts, nil
}

// ListCities returns every city with stored observations.
func ListCities() ([]string, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := database.Query(`SELECT DISTINCT city FROM observations ORDER BY city`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cities []string
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, err
		}
		cities = append(cities, city)
	}
	return cities, rows.Err()
}

// CountObservations returns the stored row count, optionally for one city.
func CountObservations(city string) (int, error) {
	if database == nil {
		return 0, errors.New("database not initialized")
	}
	var count int
	var err error
	if city == "" {
		err = database.QueryRow(`SELECT COUNT(*) FROM observations`).Scan(&count)
	} else {
		err = database.QueryRow(`SELECT COUNT(*) FROM observations WHERE city = ?`, city).Scan(&count)
	}
	return count, err
}

// SavePrediction records a served forecast for later accuracy checks.
func SavePrediction(city string, point weather.ForecastPoint, source string) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT OR REPLACE INTO predictions (city, predicted_temp, target_time, source, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		city, point.Temperature, point.Timestamp.UTC(), source, time.Now().UTC())
	return err
}

// SaveQualityIssues persists cleaning findings for the quality dashboard.
func SaveQualityIssues(issues []pipeline.QualityIssue) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	if len(issues) == 0 {
		return nil
	}

	stmt, err := database.Prepare(`
        INSERT INTO data_quality (city, issue_type, severity, message, detected_at)
        VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, issue := range issues {
		if _, err := stmt.Exec(issue.City, issue.Type, issue.Severity, issue.Message, issue.Timestamp.UTC()); err != nil {
			return err
		}
	}
	return nil
}

// TrainingRun is one row of the training log.
type TrainingRun struct {
	ModelName  string    `json:"model_name"`
	MAE        float64   `json:"mae"`
	RMSE       float64   `json:"rmse"`
	R2         float64   `json:"r2"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
}

// LogTraining appends a run to the training log.
func LogTraining(run TrainingRun) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT INTO training_log (model_name, mae, rmse, r2, trained_at, data_points)
        VALUES (?, ?, ?, ?, ?, ?)`,
		run.ModelName, run.MAE, run.RMSE, run.R2, run.TrainedAt.UTC(), run.DataPoints)
	return err
}

// LoadTrainingLog returns all runs, newest first.
func LoadTrainingLog() ([]TrainingRun, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := database.Query(`
        SELECT model_name, mae, rmse, r2, trained_at, data_points
        FROM training_log
        ORDER BY trained_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var run TrainingRun
		if err := rows.Scan(&run.ModelName, &run.MAE, &run.RMSE, &run.R2, &run.TrainedAt, &run.DataPoints); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
