package trips

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Time layouts seen across yearly Citi Bike exports.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	time.RFC3339,
}

// ReadCSV parses trip records from r. Rows that cannot be parsed are skipped
// and counted rather than failing the whole batch.
func ReadCSV(r io.Reader) ([]Trip, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("reading trips header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, 0, err
	}

	var trips []Trip
	skipped := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		trip, ok := cols.parse(record)
		if !ok {
			skipped++
			continue
		}
		trips = append(trips, trip)
	}

	return trips, skipped, nil
}

// columns holds the resolved index of every field we need.
type columns struct {
	duration  int
	startTime int
	stopTime  int
	startLat  int
	startLon  int
	endLat    int
	endLon    int
	bikeID    int
	userType  int
}

// mapColumns resolves header names to indexes, tolerating the naming drift
// between export vintages ("starttime" vs "start_time" etc).
func mapColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.ReplaceAll(key, "_", " ")
		index[key] = i
	}

	find := func(names ...string) (int, error) {
		for _, n := range names {
			if i, ok := index[n]; ok {
				return i, nil
			}
		}
		return 0, fmt.Errorf("trips CSV missing column %q", names[0])
	}

	var c columns
	var err error

	if c.duration, err = find("tripduration", "trip duration"); err != nil {
		return c, err
	}
	if c.startTime, err = find("starttime", "start time"); err != nil {
		return c, err
	}
	if c.stopTime, err = find("stoptime", "stop time"); err != nil {
		return c, err
	}
	if c.startLat, err = find("start station latitude", "start lat"); err != nil {
		return c, err
	}
	if c.startLon, err = find("start station longitude", "start lng", "start lon"); err != nil {
		return c, err
	}
	if c.endLat, err = find("end station latitude", "end lat"); err != nil {
		return c, err
	}
	if c.endLon, err = find("end station longitude", "end lng", "end lon"); err != nil {
		return c, err
	}
	if c.bikeID, err = find("bikeid", "bike id"); err != nil {
		return c, err
	}
	if c.userType, err = find("usertype", "user type", "member casual"); err != nil {
		return c, err
	}

	return c, nil
}

func (c columns) parse(record []string) (Trip, bool) {
	maxIdx := c.duration
	for _, i := range []int{c.startTime, c.stopTime, c.startLat, c.startLon, c.endLat, c.endLon, c.bikeID, c.userType} {
		if i > maxIdx {
			maxIdx = i
		}
	}
	if len(record) <= maxIdx {
		return Trip{}, false
	}

	duration, err := strconv.Atoi(strings.TrimSpace(record[c.duration]))
	if err != nil {
		return Trip{}, false
	}

	start, ok := parseTime(record[c.startTime])
	if !ok {
		return Trip{}, false
	}
	stop, ok := parseTime(record[c.stopTime])
	if !ok {
		return Trip{}, false
	}

	startLat, err1 := strconv.ParseFloat(strings.TrimSpace(record[c.startLat]), 64)
	startLon, err2 := strconv.ParseFloat(strings.TrimSpace(record[c.startLon]), 64)
	endLat, err3 := strconv.ParseFloat(strings.TrimSpace(record[c.endLat]), 64)
	endLon, err4 := strconv.ParseFloat(strings.TrimSpace(record[c.endLon]), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return Trip{}, false
	}

	bikeID := strings.TrimSpace(record[c.bikeID])
	if bikeID == "" {
		return Trip{}, false
	}

	return Trip{
		UserType:        strings.TrimSpace(record[c.userType]),
		StartTime:       start,
		StopTime:        stop,
		StartLongitude:  startLon,
		StartLatitude:   startLat,
		EndLongitude:    endLon,
		EndLatitude:     endLat,
		DurationSeconds: duration,
		BikeID:          bikeID,
	}, true
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
