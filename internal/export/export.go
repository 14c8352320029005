// Package export writes aggregation results to tabular report files.
package export

import (
	"fmt"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"

	"github.com/i292847/bike-trip-aggregation/internal/aggregate"
)

// Column order of the report, matching the output schema.
var columnOrder = []string{
	"usertype",
	"zip_start", "borough_start", "neighborhood_start",
	"zip_end", "borough_end", "neighborhood_end",
	"start_day", "stop_day",
	"mean_temperature", "mean_wind_speed", "total_precipitation",
	"trip_minutes_bucket", "trip_count",
}

// WriteCSV renders rows as a dataframe and writes them to path.
func WriteCSV(rows []aggregate.Row, path string) error {
	df := dataframe.LoadStructs(rows)
	if df.Err != nil {
		return fmt.Errorf("building dataframe: %w", df.Err)
	}
	df = df.Select(columnOrder)
	if df.Err != nil {
		return fmt.Errorf("selecting report columns: %w", df.Err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV export: %w", err)
	}
	defer f.Close()

	if err := df.WriteCSV(f); err != nil {
		return fmt.Errorf("writing CSV export: %w", err)
	}
	return nil
}

// WriteXLSX writes rows to an Excel workbook at path.
func WriteXLSX(rows []aggregate.Row, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	for i, name := range columnOrder {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}

	for rowIdx, row := range rows {
		values := []interface{}{
			row.UserType,
			row.ZipStart, row.BoroughStart, row.NeighborhoodStart,
			row.ZipEnd, row.BoroughEnd, row.NeighborhoodEnd,
			row.StartDay, row.StopDay,
			row.MeanTemperature, row.MeanWindSpeed, row.TotalPrecipitation,
			row.DurationBucket, row.TripCount,
		}
		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving XLSX export: %w", err)
	}
	return nil
}
