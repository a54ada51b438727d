package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"skycast/weather"
)

// CSVImportOptions controls historical dataset imports.
type CSVImportOptions struct {
	// Latin1 decodes the file as ISO 8859-1. Some legacy station exports
	// are not UTF-8.
	Latin1 bool
	// DefaultCity is used when the file has no city column.
	DefaultCity string
}

// Expected header names, case-insensitive. weather_main/weather_description
// follow the OpenWeatherMap export convention.
var csvColumns = map[string]int{
	"city":                -1,
	"timestamp":           -1,
	"temperature":         -1,
	"feels_like":          -1,
	"humidity":            -1,
	"pressure":            -1,
	"wind_speed":          -1,
	"clouds":              -1,
	"weather_main":        -1,
	"weather_description": -1,
	"aqi":                 -1,
	"pm2_5":               -1,
	"pm10":                -1,
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ImportCSV reads a historical observation dataset. Rows with unparsable
// required fields are skipped and counted, not fatal.
func ImportCSV(path string, opts CSVImportOptions) ([]*weather.Observation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var reader io.Reader = file
	if opts.Latin1 {
		reader = transform.NewReader(file, charmap.ISO8859_1.NewDecoder())
	}

	return parseCSV(reader, opts)
}

func parseCSV(r io.Reader, opts CSVImportOptions) ([]*weather.Observation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header failed: %w", err)
	}

	columns := make(map[string]int, len(csvColumns))
	for name := range csvColumns {
		columns[name] = -1
	}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, ok := columns[key]; ok {
			columns[key] = i
		}
	}
	if columns["timestamp"] == -1 || columns["temperature"] == -1 {
		return nil, fmt.Errorf("csv missing required columns timestamp/temperature")
	}
	if columns["city"] == -1 && opts.DefaultCity == "" {
		return nil, fmt.Errorf("csv has no city column and no default city given")
	}

	var points []*weather.Observation
	skipped := 0
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			skipped++
			continue
		}

		obs, err := parseRecord(record, columns, opts.DefaultCity)
		if err != nil {
			skipped++
			continue
		}
		points = append(points, obs)
	}

	if skipped > 0 {
		zap.L().Warn("csv import skipped rows", zap.Int("skipped", skipped), zap.Int("imported", len(points)))
	}

	return points, nil
}

func parseRecord(record []string, columns map[string]int, defaultCity string) (*weather.Observation, error) {
	field := func(name string) string {
		idx := columns[name]
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	ts, err := parseTimestamp(field("timestamp"))
	if err != nil {
		return nil, err
	}

	temp, err := strconv.ParseFloat(field("temperature"), 64)
	if err != nil {
		return nil, fmt.Errorf("bad temperature: %w", err)
	}

	city := field("city")
	if city == "" {
		city = defaultCity
	}

	obs := &weather.Observation{
		City:        city,
		Timestamp:   ts,
		Temperature: temp,
		FeelsLike:   parseFloatOr(field("feels_like"), temp),
		Humidity:    parseIntOr(field("humidity"), 0),
		Pressure:    parseIntOr(field("pressure"), 0),
		WindSpeed:   parseFloatOr(field("wind_speed"), 0),
		Clouds:      parseIntOr(field("clouds"), 0),
		Condition:   field("weather_main"),
		Description: field("weather_description"),
		AQI:         parseIntOr(field("aqi"), 0),
		PM25:        parseFloatOr(field("pm2_5"), 0),
		PM10:        parseFloatOr(field("pm10"), 0),
	}
	return obs, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	// Unix seconds are also accepted.
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func parseFloatOr(value string, fallback float64) float64 {
	if value == "" || isMissing(value) {
		return fallback
	}
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		return v
	}
	return fallback
}

func parseIntOr(value string, fallback int) int {
	if value == "" || isMissing(value) {
		return fallback
	}
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f)
	}
	return fallback
}

func isMissing(value string) bool {
	switch strings.ToUpper(value) {
	case "NA", "NAN", "NULL", "-":
		return true
	}
	return false
}
