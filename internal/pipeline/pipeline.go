// Package pipeline orchestrates one batch pass: load the four datasets, run
// the aggregation, persist the result, and write configured exports.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i292847/bike-trip-aggregation/internal/aggregate"
	"github.com/i292847/bike-trip-aggregation/internal/config"
	"github.com/i292847/bike-trip-aggregation/internal/export"
	"github.com/i292847/bike-trip-aggregation/internal/fetch"
	"github.com/i292847/bike-trip-aggregation/internal/geo"
	"github.com/i292847/bike-trip-aggregation/internal/store"
	"github.com/i292847/bike-trip-aggregation/internal/trips"
	"github.com/i292847/bike-trip-aggregation/internal/weather"
	"github.com/i292847/bike-trip-aggregation/internal/zips"
)

// Zone is a resolved ZIP zone with its metadata labels.
type Zone struct {
	Zip          string `json:"zip"`
	Borough      string `json:"borough"`
	Neighborhood string `json:"neighborhood"`
}

// Pipeline loads datasets, runs the aggregator and records runs in the store.
type Pipeline struct {
	cfg     *config.AppConfig
	fetcher *fetch.Client
	store   *store.MemoryStore

	// Reference data from the most recent successful run, kept for the
	// zone-locate endpoint.
	mu       sync.RWMutex
	resolver *geo.Resolver
	metadata *zips.MetadataTable
}

// New creates a Pipeline. The fetcher is only used for http(s) sources.
func New(cfg *config.AppConfig, fetcher *fetch.Client, st *store.MemoryStore) *Pipeline {
	return &Pipeline{cfg: cfg, fetcher: fetcher, store: st}
}

// Store exposes the run store backing this pipeline.
func (p *Pipeline) Store() *store.MemoryStore {
	return p.store
}

// Run executes one full batch pass. The whole batch either succeeds and is
// saved as a run, or fails with an error and leaves the store untouched.
func (p *Pipeline) Run(ctx context.Context) (store.Run, error) {
	startedAt := time.Now().UTC()
	runID := uuid.NewString()

	log.Printf("pipeline: run %s starting", runID)

	zoneData, err := p.readSource(ctx, p.cfg.ZonesSource)
	if err != nil {
		return store.Run{}, fmt.Errorf("loading zones: %w", err)
	}
	resolver, err := geo.LoadGeoJSON(zoneData)
	if err != nil {
		return store.Run{}, err
	}

	metaData, err := p.readSource(ctx, p.cfg.ZipMetadataSource)
	if err != nil {
		return store.Run{}, fmt.Errorf("loading zip metadata: %w", err)
	}
	metadata, err := zips.LoadMetadata(bytes.NewReader(metaData))
	if err != nil {
		return store.Run{}, err
	}

	weatherData, err := p.readSource(ctx, p.cfg.WeatherSource)
	if err != nil {
		return store.Run{}, fmt.Errorf("loading weather: %w", err)
	}
	observations, skippedWeather, err := weather.LoadDaily(bytes.NewReader(weatherData), p.cfg.WeatherStationID)
	if err != nil {
		return store.Run{}, err
	}

	tripData, err := p.readSource(ctx, p.cfg.TripsSource)
	if err != nil {
		return store.Run{}, fmt.Errorf("loading trips: %w", err)
	}
	tripRecords, skippedTrips, err := trips.ReadCSV(bytes.NewReader(tripData))
	if err != nil {
		return store.Run{}, err
	}

	log.Printf("pipeline: run %s loaded %d trips, %d zones, %d zip rows, %d weather days",
		runID, len(tripRecords), resolver.Zones(), metadata.Len(), observations.Len())

	agg := aggregate.New(resolver, metadata, observations, aggregate.Params{
		YearMin:       p.cfg.YearMin,
		YearMax:       p.cfg.YearMax,
		BucketMinutes: p.cfg.BucketMinutes,
		Partitions:    p.cfg.Partitions,
	})
	result := agg.Run(tripRecords)

	run := store.Run{
		ID:                 runID,
		StartedAt:          startedAt,
		FinishedAt:         time.Now().UTC(),
		SkippedTripRows:    skippedTrips,
		SkippedWeatherRows: skippedWeather,
		Stats:              result.Stats,
		Rows:               result.Rows,
	}
	p.store.SaveRun(run)

	p.mu.Lock()
	p.resolver = resolver
	p.metadata = metadata
	p.mu.Unlock()

	p.writeExports(result.Rows)

	log.Printf("pipeline: run %s finished, %d rows from %d matched trips (of %d)",
		runID, len(result.Rows), result.Stats.MatchedTrips, result.Stats.InputTrips)

	return run, nil
}

// Locate resolves a point to its ZIP zone and metadata using the reference
// data of the latest successful run.
func (p *Pipeline) Locate(lon, lat float64) (Zone, bool) {
	p.mu.RLock()
	resolver, metadata := p.resolver, p.metadata
	p.mu.RUnlock()

	if resolver == nil || metadata == nil {
		return Zone{}, false
	}

	zip, ok := resolver.Resolve(lon, lat)
	if !ok {
		return Zone{}, false
	}

	zone := Zone{Zip: zip}
	if meta, ok := metadata.Lookup(zip); ok {
		zone.Borough = meta.Borough
		zone.Neighborhood = meta.Neighborhood
	}
	return zone, true
}

// readSource loads a dataset from a local path or, for http(s) sources,
// through the resilient fetcher.
func (p *Pipeline) readSource(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if p.fetcher == nil {
			return nil, fmt.Errorf("no fetcher configured for remote source %s", source)
		}
		return p.fetcher.Fetch(ctx, source)
	}
	return os.ReadFile(source)
}

// writeExports is best-effort: a failed export is logged but does not fail
// the run, which is already stored.
func (p *Pipeline) writeExports(rows []aggregate.Row) {
	if p.cfg.ExportCSVPath != "" {
		if err := export.WriteCSV(rows, p.cfg.ExportCSVPath); err != nil {
			log.Printf("pipeline: CSV export failed: %v", err)
		}
	}
	if p.cfg.ExportXLSXPath != "" {
		if err := export.WriteXLSX(rows, p.cfg.ExportXLSXPath); err != nil {
			log.Printf("pipeline: XLSX export failed: %v", err)
		}
	}
}
