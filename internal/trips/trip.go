// Package trips loads raw bike-trip records from Citi Bike style CSV exports.
package trips

import "time"

// Trip is a single immutable trip record as sourced externally.
type Trip struct {
	UserType        string
	StartTime       time.Time
	StopTime        time.Time
	StartLongitude  float64
	StartLatitude   float64
	EndLongitude    float64
	EndLatitude     float64
	DurationSeconds int
	BikeID          string
}
