package pipeline

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestImportCSV(t *testing.T) {
	points, err := ImportCSV(filepath.Join("testdata", "observations.csv"), CSVImportOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One row has an unparsable temperature and must be skipped.
	if len(points) != 7 {
		t.Fatalf("expected 7 points, got %d", len(points))
	}

	first := points[0]
	if first.City != "Delhi" {
		t.Fatalf("expected Delhi, got %q", first.City)
	}
	if first.Temperature != 14.2 {
		t.Fatalf("expected temperature 14.2, got %.1f", first.Temperature)
	}
	if first.AQI != 4 || first.PM25 != 96.5 {
		t.Fatalf("expected air quality parsed, got %+v", first)
	}

	// The NA humidity row parses with humidity 0.
	for _, p := range points {
		if p.City == "Mumbai" && p.Humidity == 0 {
			return
		}
	}
	t.Fatal("expected NA humidity row to import with zero humidity")
}

func TestParseCSVHeaderValidation(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		opts CSVImportOptions
		ok   bool
	}{
		{
			name: "missing temperature column",
			csv:  "city,timestamp\nDelhi,2024-01-01",
			ok:   false,
		},
		{
			name: "no city column without default",
			csv:  "timestamp,temperature\n2024-01-01,20.0",
			ok:   false,
		},
		{
			name: "no city column with default",
			csv:  "timestamp,temperature\n2024-01-01,20.0",
			opts: CSVImportOptions{DefaultCity: "Pune"},
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := parseCSV(strings.NewReader(tt.csv), tt.opts)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected error")
			}
			if tt.ok && len(points) == 1 && points[0].City != "Pune" {
				t.Fatalf("expected default city applied, got %q", points[0].City)
			}
		})
	}
}

func TestParseTimestampFormats(t *testing.T) {
	for _, value := range []string{
		"2024-03-05T12:30:00Z",
		"2024-03-05 12:30:00",
		"2024-03-05",
		"1709640600",
	} {
		if _, err := parseTimestamp(value); err != nil {
			t.Errorf("parseTimestamp(%q) failed: %v", value, err)
		}
	}

	if _, err := parseTimestamp("yesterday"); err == nil {
		t.Error("expected error for unrecognized timestamp")
	}
}
