package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds everything the pipeline and the HTTP surface need.
type AppConfig struct {
	// Dataset locations. Each may be a local file path or an http(s) URL.
	TripsSource       string
	ZonesSource       string // GeoJSON FeatureCollection of ZIP polygons
	ZipMetadataSource string
	WeatherSource     string

	// WeatherStationID selects the single station whose daily observations
	// are joined against trips. All other stations are dropped at load time.
	WeatherStationID string

	// Inclusive year range applied to trip start times.
	YearMin int
	YearMax int

	// BucketMinutes is the duration-rounding granularity in minutes.
	BucketMinutes int

	// Partitions controls how many goroutines the aggregator fans out to.
	Partitions int

	// RefreshInterval re-runs the pipeline on a schedule. Zero disables it.
	RefreshInterval time.Duration

	// Optional export targets written after each successful run.
	ExportCSVPath  string
	ExportXLSXPath string

	// GeocoderAPIKey enables address lookups on the zones/locate endpoint.
	GeocoderAPIKey string

	// StoreMaxHistory caps how many pipeline runs are retained in memory.
	StoreMaxHistory int

	HTTPTimeout time.Duration
	Port        string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.TripsSource = getenvDefault("TRIPS_SOURCE", "data/trips.csv")
	cfg.ZonesSource = getenvDefault("ZONES_SOURCE", "data/zip_zones.geojson")
	cfg.ZipMetadataSource = getenvDefault("ZIP_METADATA_SOURCE", "data/zip_metadata.csv")
	cfg.WeatherSource = getenvDefault("WEATHER_SOURCE", "data/weather_daily.csv")

	// Default is the LaGuardia GSOD station used by the NYC daily series.
	cfg.WeatherStationID = getenvDefault("WEATHER_STATION_ID", "725030")

	cfg.YearMin = getenvInt("YEAR_MIN", 2014)
	cfg.YearMax = getenvInt("YEAR_MAX", 2015)
	if cfg.YearMin > cfg.YearMax {
		return nil, fmt.Errorf("YEAR_MIN (%d) must not exceed YEAR_MAX (%d)", cfg.YearMin, cfg.YearMax)
	}

	cfg.BucketMinutes = getenvInt("BUCKET_MINUTES", 10)
	if cfg.BucketMinutes <= 0 {
		return nil, fmt.Errorf("BUCKET_MINUTES must be positive, got %d", cfg.BucketMinutes)
	}

	cfg.Partitions = getenvInt("PARTITIONS", 4)
	if cfg.Partitions <= 0 {
		cfg.Partitions = 1
	}

	refreshStr := getenvDefault("REFRESH_INTERVAL", "0")
	refresh, err := time.ParseDuration(refreshStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = refresh

	cfg.ExportCSVPath = os.Getenv("EXPORT_CSV_PATH")
	cfg.ExportXLSXPath = os.Getenv("EXPORT_XLSX_PATH")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 10)

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
