package weather

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDaily(t *testing.T) {
	src := strings.Join([]string{
		"station,year,month,day,mean_temp,mean_wind_speed,precipitation",
		"725030,2014,6,1,70,5,0",
		"725030,2014,6,2,65.3,8.1,0.12",
		"725053,2014,6,1,71,4,0",     // other station, dropped
		"725030,2014,13,1,60,5,0",    // malformed month, skipped
		"725030,2014,6,,60,5,0",      // missing day component, skipped
		"725030,2014,6,3,abc,5,0",    // malformed temperature, skipped
	}, "\n")

	table, skipped, err := LoadDaily(strings.NewReader(src), "725030")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if skipped != 3 {
		t.Errorf("expected 3 skipped rows, got %d", skipped)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 observation days, got %d", table.Len())
	}
	if table.Station() != "725030" {
		t.Errorf("unexpected station %q", table.Station())
	}

	obs, ok := table.Lookup("2014-06-01")
	if !ok {
		t.Fatal("expected observation for 2014-06-01")
	}
	if obs.MeanTemperatureF != 70 || obs.MeanWindSpeedKnots != 5 || obs.TotalPrecipitationInches != 0 {
		t.Fatalf("unexpected observation: %+v", obs)
	}

	// Unpadded components still land on the canonical day key.
	if obs.Day != "2014-06-01" {
		t.Fatalf("expected canonical day key, got %q", obs.Day)
	}

	if _, ok := table.Lookup("2014-06-03"); ok {
		t.Fatal("malformed row should not be loadable")
	}
	if _, ok := table.Lookup("2014-07-01"); ok {
		t.Fatal("expected miss for absent day")
	}
}

func TestDayKey(t *testing.T) {
	ts := time.Date(2014, 6, 1, 23, 59, 59, 0, time.UTC)
	if got := DayKey(ts); got != "2014-06-01" {
		t.Fatalf("DayKey = %q, want 2014-06-01", got)
	}
}
