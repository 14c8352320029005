// Package weather loads daily station observations for the trip join.
package weather

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Observation is one station's aggregate reading for a single calendar day.
type Observation struct {
	StationID                string  `json:"station_id"`
	Day                      string  `json:"day"` // canonical YYYY-MM-DD
	MeanTemperatureF         float64 `json:"mean_temperature_f"`
	MeanWindSpeedKnots       float64 `json:"mean_wind_speed_knots"`
	TotalPrecipitationInches float64 `json:"total_precipitation_inches"`
}

// Table is an immutable day -> observation lookup for a single station.
type Table struct {
	station string
	byDay   map[string]Observation
}

// The source stores year, month and day as separate columns; the date is
// rebuilt by concatenation and parsed against this layout, so unpadded
// components ("2014-6-1") are accepted.
const dateLayout = "2006-1-2"

// DayKey renders a timestamp as the canonical day string used for lookups.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// LoadDaily reads GSOD-style rows "station,year,month,day,mean_temp,
// mean_wind_speed,precipitation" from r, keeping only rows for station.
// Rows with malformed date components or numbers are skipped and counted;
// trips on those days simply find no match downstream.
func LoadDaily(r io.Reader, station string) (*Table, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	byDay := make(map[string]Observation)
	skipped := 0

	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("reading weather rows: %w", err)
		}

		if first {
			first = false
			if looksLikeHeader(record) {
				continue
			}
		}

		if len(record) < 7 {
			skipped++
			continue
		}

		if strings.TrimSpace(record[0]) != station {
			continue
		}

		obs, ok := parseObservation(record)
		if !ok {
			skipped++
			continue
		}
		byDay[obs.Day] = obs
	}

	return &Table{station: station, byDay: byDay}, skipped, nil
}

// Lookup returns the observation for a canonical day string.
func (t *Table) Lookup(day string) (Observation, bool) {
	obs, ok := t.byDay[day]
	return obs, ok
}

// Station returns the station this table was filtered to.
func (t *Table) Station() string {
	return t.station
}

// Len returns the number of loaded observation days.
func (t *Table) Len() int {
	return len(t.byDay)
}

func parseObservation(record []string) (Observation, bool) {
	year := strings.TrimSpace(record[1])
	month := strings.TrimSpace(record[2])
	day := strings.TrimSpace(record[3])

	date, err := time.Parse(dateLayout, year+"-"+month+"-"+day)
	if err != nil {
		return Observation{}, false
	}

	temp, err1 := strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
	wind, err2 := strconv.ParseFloat(strings.TrimSpace(record[5]), 64)
	precip, err3 := strconv.ParseFloat(strings.TrimSpace(record[6]), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return Observation{}, false
	}

	return Observation{
		StationID:                strings.TrimSpace(record[0]),
		Day:                      DayKey(date),
		MeanTemperatureF:         temp,
		MeanWindSpeedKnots:       wind,
		TotalPrecipitationInches: precip,
	}, true
}

func looksLikeHeader(record []string) bool {
	if len(record) < 2 {
		return true
	}
	_, err := strconv.Atoi(strings.TrimSpace(record[1]))
	return err != nil
}
