package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/i292847/bike-trip-aggregation/internal/config"
	"github.com/i292847/bike-trip-aggregation/internal/store"
)

// Two disjoint squares roughly over Chelsea and Downtown Brooklyn, plus one
// zone that has no metadata row.
const testZones = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"postalCode": "10001"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-74.01, 40.74], [-73.99, 40.74], [-73.99, 40.76], [-74.01, 40.76], [-74.01, 40.74]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"postalCode": "11201"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-74.00, 40.68], [-73.98, 40.68], [-73.98, 40.70], [-74.00, 40.70], [-74.00, 40.68]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"postalCode": "11215"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-73.99, 40.66], [-73.97, 40.66], [-73.97, 40.675], [-73.99, 40.675], [-73.99, 40.66]]]
      }
    }
  ]
}`

const testMetadata = `zip,borough,neighborhood
10001,Manhattan,Chelsea
11201,Brooklyn,Downtown
`

const testWeather = `station,year,month,day,mean_temp,mean_wind_speed,precipitation
725030,2014,6,1,70,5,0
725030,2014,6,3,68,6,0.05
725030,2015,6,1,60,8,0.1
725053,2014,6,1,71,4,0
725030,2014,13,1,66,5,0
`

const tripsHeader = "tripduration,starttime,stoptime," +
	"start station id,start station name,start station latitude,start station longitude," +
	"end station id,end station name,end station latitude,end station longitude," +
	"bikeid,usertype,birth year,gender"

var testTrips = strings.Join([]string{
	tripsHeader,
	// The canonical scenario: Chelsea to Downtown Brooklyn, 10.5 minutes.
	`630,2014-06-01 08:00:00,2014-06-01 08:10:30,72,"S1",40.75,-74.00,79,"S2",40.69,-73.99,17222,Subscriber,1985,1`,
	// Outside the configured year range (weather exists for the day).
	`630,2015-06-01 08:00:00,2015-06-01 08:10:30,72,"S1",40.75,-74.00,79,"S2",40.69,-73.99,17223,Subscriber,1985,1`,
	// Start point not in any zone.
	`630,2014-06-01 09:00:00,2014-06-01 09:10:30,90,"S3",40.90,-74.50,79,"S2",40.69,-73.99,17224,Customer,,0`,
	// Ends in zone 11215 which has no metadata row.
	`630,2014-06-01 10:00:00,2014-06-01 10:10:30,72,"S1",40.75,-74.00,95,"S4",40.67,-73.98,17225,Subscriber,1990,1`,
	// No weather observation on 2014-06-02.
	`630,2014-06-02 08:00:00,2014-06-02 08:10:30,72,"S1",40.75,-74.00,79,"S2",40.69,-73.99,17226,Subscriber,1985,1`,
	// Unparseable duration.
	`abc,2014-06-01 08:00:00,2014-06-01 08:10:30,72,"S1",40.75,-74.00,79,"S2",40.69,-73.99,17227,Subscriber,1985,1`,
}, "\n")

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.AppConfig{
		TripsSource:       writeFile(t, dir, "trips.csv", testTrips),
		ZonesSource:       writeFile(t, dir, "zones.geojson", testZones),
		ZipMetadataSource: writeFile(t, dir, "metadata.csv", testMetadata),
		WeatherSource:     writeFile(t, dir, "weather.csv", testWeather),
		WeatherStationID:  "725030",
		YearMin:           2014,
		YearMax:           2014,
		BucketMinutes:     10,
		Partitions:        2,
		StoreMaxHistory:   5,
	}
}

func TestPipelineRun(t *testing.T) {
	cfg := testConfig(t)
	st := store.NewMemoryStore(cfg.StoreMaxHistory)
	pipe := New(cfg, nil, st)

	run, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.ID == "" {
		t.Error("expected a run ID")
	}
	if run.SkippedTripRows != 1 {
		t.Errorf("expected 1 skipped trip row, got %d", run.SkippedTripRows)
	}
	if run.SkippedWeatherRows != 1 {
		t.Errorf("expected 1 skipped weather row, got %d", run.SkippedWeatherRows)
	}

	stats := run.Stats
	if stats.InputTrips != 5 {
		t.Errorf("expected 5 parsed trips, got %d", stats.InputTrips)
	}
	if stats.MatchedTrips != 1 {
		t.Errorf("expected 1 matched trip, got %d", stats.MatchedTrips)
	}
	if stats.ExcludedGeometry != 1 {
		t.Errorf("expected 1 geometry exclusion, got %d", stats.ExcludedGeometry)
	}
	if stats.ExcludedMetadata != 1 {
		t.Errorf("expected 1 metadata exclusion, got %d", stats.ExcludedMetadata)
	}
	if stats.ExcludedWeather != 1 {
		t.Errorf("expected 1 weather exclusion, got %d", stats.ExcludedWeather)
	}
	if stats.ExcludedYear != 1 {
		t.Errorf("expected 1 year exclusion, got %d", stats.ExcludedYear)
	}

	if len(run.Rows) != 1 {
		t.Fatalf("expected 1 output row, got %d", len(run.Rows))
	}

	row := run.Rows[0]
	if row.UserType != "Subscriber" ||
		row.ZipStart != "10001" || row.BoroughStart != "Manhattan" || row.NeighborhoodStart != "Chelsea" ||
		row.ZipEnd != "11201" || row.BoroughEnd != "Brooklyn" || row.NeighborhoodEnd != "Downtown" {
		t.Errorf("unexpected join labels: %+v", row)
	}
	if row.StartDay != "2014-06-01" || row.StopDay != "2014-06-01" {
		t.Errorf("unexpected days: %+v", row)
	}
	if row.MeanTemperature != 70 || row.MeanWindSpeed != 5 || row.TotalPrecipitation != 0 {
		t.Errorf("unexpected weather context: %+v", row)
	}
	if row.DurationBucket != 10 {
		t.Errorf("expected bucket 10, got %d", row.DurationBucket)
	}
	if row.TripCount != 1 {
		t.Errorf("expected trip_count 1, got %d", row.TripCount)
	}

	// The run is retrievable from the store.
	latest, err := st.Latest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.ID != run.ID {
		t.Fatalf("store latest %q != run %q", latest.ID, run.ID)
	}
}

func TestPipelineLocate(t *testing.T) {
	cfg := testConfig(t)
	pipe := New(cfg, nil, store.NewMemoryStore(5))

	// Before any run there is no reference data.
	if _, ok := pipe.Locate(-74.0, 40.75); ok {
		t.Fatal("expected locate to miss before the first run")
	}

	if _, err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zone, ok := pipe.Locate(-74.0, 40.75)
	if !ok {
		t.Fatal("expected locate hit inside 10001")
	}
	if zone.Zip != "10001" || zone.Borough != "Manhattan" || zone.Neighborhood != "Chelsea" {
		t.Fatalf("unexpected zone: %+v", zone)
	}

	// A zone without metadata still resolves, just unlabeled.
	zone, ok = pipe.Locate(-73.98, 40.67)
	if !ok {
		t.Fatal("expected locate hit inside 11215")
	}
	if zone.Zip != "11215" || zone.Borough != "" {
		t.Fatalf("unexpected zone: %+v", zone)
	}

	if _, ok := pipe.Locate(0, 0); ok {
		t.Fatal("expected locate miss far from every zone")
	}
}

func TestPipelineMissingSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.TripsSource = filepath.Join(t.TempDir(), "absent.csv")

	pipe := New(cfg, nil, store.NewMemoryStore(5))
	if _, err := pipe.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing trips source")
	}

	// A failed run leaves the store untouched.
	if pipe.Store().Len() != 0 {
		t.Fatal("failed run must not be stored")
	}
}
