// Package aggregate joins trips against zones, metadata and weather, then
// counts trips per contextual group.
package aggregate

import (
	"math"
	"sort"
	"sync"

	"github.com/i292847/bike-trip-aggregation/internal/trips"
	"github.com/i292847/bike-trip-aggregation/internal/weather"
	"github.com/i292847/bike-trip-aggregation/internal/zips"
)

// GeometryResolver maps a point to its enclosing ZIP code.
type GeometryResolver interface {
	Resolve(lon, lat float64) (string, bool)
}

// MetadataSource maps a canonical zip string to borough/neighborhood labels.
type MetadataSource interface {
	Lookup(zip string) (zips.Metadata, bool)
}

// WeatherSource maps a canonical day string to that day's observation.
type WeatherSource interface {
	Lookup(day string) (weather.Observation, bool)
}

// GroupKey is the full non-aggregated field tuple trips are grouped by.
type GroupKey struct {
	UserType           string
	ZipStart           string
	BoroughStart       string
	NeighborhoodStart  string
	ZipEnd             string
	BoroughEnd         string
	NeighborhoodEnd    string
	StartDay           string
	StopDay            string
	MeanTemperature    float64
	MeanWindSpeed      float64
	TotalPrecipitation float64
	DurationBucket     int
}

// Row is one output row of the aggregation.
type Row struct {
	UserType           string  `json:"usertype" dataframe:"usertype"`
	ZipStart           string  `json:"zip_start" dataframe:"zip_start"`
	BoroughStart       string  `json:"borough_start" dataframe:"borough_start"`
	NeighborhoodStart  string  `json:"neighborhood_start" dataframe:"neighborhood_start"`
	ZipEnd             string  `json:"zip_end" dataframe:"zip_end"`
	BoroughEnd         string  `json:"borough_end" dataframe:"borough_end"`
	NeighborhoodEnd    string  `json:"neighborhood_end" dataframe:"neighborhood_end"`
	StartDay           string  `json:"start_day" dataframe:"start_day"`
	StopDay            string  `json:"stop_day" dataframe:"stop_day"`
	MeanTemperature    float64 `json:"mean_temperature" dataframe:"mean_temperature"`
	MeanWindSpeed      float64 `json:"mean_wind_speed" dataframe:"mean_wind_speed"`
	TotalPrecipitation float64 `json:"total_precipitation" dataframe:"total_precipitation"`
	DurationBucket     int     `json:"trip_minutes_bucket" dataframe:"trip_minutes_bucket"`
	TripCount          int     `json:"trip_count" dataframe:"trip_count"`
}

// Params configures one aggregation pass.
type Params struct {
	// Inclusive year bounds applied to trip start times.
	YearMin int
	YearMax int

	// BucketMinutes is the duration-rounding granularity.
	BucketMinutes int

	// Partitions is the number of goroutines trips are fanned out to.
	// Values below 1 are treated as 1.
	Partitions int
}

// Stats counts how the input was consumed by one pass.
type Stats struct {
	InputTrips       int `json:"input_trips"`
	MatchedTrips     int `json:"matched_trips"`
	ExcludedGeometry int `json:"excluded_geometry"`
	ExcludedMetadata int `json:"excluded_metadata"`
	ExcludedWeather  int `json:"excluded_weather"`
	ExcludedYear     int `json:"excluded_year"`
}

// Result is the output of one aggregation pass.
type Result struct {
	Rows  []Row
	Stats Stats
}

// Aggregator performs the join-and-count over a fixed set of lookups.
type Aggregator struct {
	geo     GeometryResolver
	meta    MetadataSource
	weather WeatherSource
	params  Params
}

// New creates an Aggregator.
func New(geo GeometryResolver, meta MetadataSource, wx WeatherSource, params Params) *Aggregator {
	if params.Partitions < 1 {
		params.Partitions = 1
	}
	return &Aggregator{geo: geo, meta: meta, weather: wx, params: params}
}

// Bucket rounds a trip duration to the nearest multiple of granularity
// minutes using round-half-away-from-zero, so 15 minutes buckets to 20 and
// -15 to -20. Zero and negative durations pass through the same rule.
func Bucket(durationSeconds, granularityMinutes int) int {
	minutes := float64(durationSeconds) / 60.0
	return int(math.Round(minutes/float64(granularityMinutes))) * granularityMinutes
}

// Run aggregates the given trips. Trips are partitioned across goroutines,
// each producing partial group counts that are merged by summing counts for
// identical keys, so the result is independent of the partition count.
func (a *Aggregator) Run(input []trips.Trip) Result {
	parts := a.params.Partitions
	if parts > len(input) {
		parts = len(input)
	}
	if parts < 1 {
		parts = 1
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		groups  = make(map[GroupKey]int)
		stats   Stats
		chunkSz = (len(input) + parts - 1) / parts
	)
	stats.InputTrips = len(input)

	for start := 0; start < len(input); start += chunkSz {
		end := start + chunkSz
		if end > len(input) {
			end = len(input)
		}
		chunk := input[start:end]

		wg.Add(1)
		go func() {
			defer wg.Done()

			local := make(map[GroupKey]int)
			var localStats Stats

			for _, t := range chunk {
				key, ok := a.classify(t, &localStats)
				if !ok {
					continue
				}
				local[key]++
				localStats.MatchedTrips++
			}

			mu.Lock()
			for k, n := range local {
				groups[k] += n
			}
			stats.MatchedTrips += localStats.MatchedTrips
			stats.ExcludedGeometry += localStats.ExcludedGeometry
			stats.ExcludedMetadata += localStats.ExcludedMetadata
			stats.ExcludedWeather += localStats.ExcludedWeather
			stats.ExcludedYear += localStats.ExcludedYear
			mu.Unlock()
		}()
	}
	wg.Wait()

	rows := make([]Row, 0, len(groups))
	for k, n := range groups {
		rows = append(rows, Row{
			UserType:           k.UserType,
			ZipStart:           k.ZipStart,
			BoroughStart:       k.BoroughStart,
			NeighborhoodStart:  k.NeighborhoodStart,
			ZipEnd:             k.ZipEnd,
			BoroughEnd:         k.BoroughEnd,
			NeighborhoodEnd:    k.NeighborhoodEnd,
			StartDay:           k.StartDay,
			StopDay:            k.StopDay,
			MeanTemperature:    k.MeanTemperature,
			MeanWindSpeed:      k.MeanWindSpeed,
			TotalPrecipitation: k.TotalPrecipitation,
			DurationBucket:     k.DurationBucket,
			TripCount:          n,
		})
	}

	sortRows(rows)

	return Result{Rows: rows, Stats: stats}
}

// classify resolves every join for one trip, or reports which stage dropped it.
// Failures never surface as errors; a miss at any stage excludes the trip,
// matching inner-join semantics.
func (a *Aggregator) classify(t trips.Trip, stats *Stats) (GroupKey, bool) {
	zipStart, ok := a.geo.Resolve(t.StartLongitude, t.StartLatitude)
	if !ok {
		stats.ExcludedGeometry++
		return GroupKey{}, false
	}
	zipEnd, ok := a.geo.Resolve(t.EndLongitude, t.EndLatitude)
	if !ok {
		stats.ExcludedGeometry++
		return GroupKey{}, false
	}

	metaStart, ok := a.meta.Lookup(zipStart)
	if !ok {
		stats.ExcludedMetadata++
		return GroupKey{}, false
	}
	metaEnd, ok := a.meta.Lookup(zipEnd)
	if !ok {
		stats.ExcludedMetadata++
		return GroupKey{}, false
	}

	startDay := weather.DayKey(t.StartTime)
	obs, ok := a.weather.Lookup(startDay)
	if !ok {
		stats.ExcludedWeather++
		return GroupKey{}, false
	}

	year := t.StartTime.Year()
	if year < a.params.YearMin || year > a.params.YearMax {
		stats.ExcludedYear++
		return GroupKey{}, false
	}

	return GroupKey{
		UserType:           t.UserType,
		ZipStart:           zipStart,
		BoroughStart:       metaStart.Borough,
		NeighborhoodStart:  metaStart.Neighborhood,
		ZipEnd:             zipEnd,
		BoroughEnd:         metaEnd.Borough,
		NeighborhoodEnd:    metaEnd.Neighborhood,
		StartDay:           startDay,
		StopDay:            weather.DayKey(t.StopTime),
		MeanTemperature:    obs.MeanTemperatureF,
		MeanWindSpeed:      obs.MeanWindSpeedKnots,
		TotalPrecipitation: obs.TotalPrecipitationInches,
		DurationBucket:     Bucket(t.DurationSeconds, a.params.BucketMinutes),
	}, true
}

// sortRows orders by start_day descending, then by the remaining key fields
// ascending so rows sharing a day keep a stable, reproducible order.
func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.StartDay != b.StartDay {
			return a.StartDay > b.StartDay
		}
		if a.UserType != b.UserType {
			return a.UserType < b.UserType
		}
		if a.ZipStart != b.ZipStart {
			return a.ZipStart < b.ZipStart
		}
		if a.ZipEnd != b.ZipEnd {
			return a.ZipEnd < b.ZipEnd
		}
		if a.StopDay != b.StopDay {
			return a.StopDay < b.StopDay
		}
		return a.DurationBucket < b.DurationBucket
	})
}
