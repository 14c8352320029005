package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kelvins/geocoder"

	"github.com/i292847/bike-trip-aggregation/internal/aggregate"
	"github.com/i292847/bike-trip-aggregation/internal/pipeline"
	"github.com/i292847/bike-trip-aggregation/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. geocoderKey is
// optional; without it the zones/locate endpoint only accepts coordinates.
func RegisterRoutes(app *fiber.App, p *pipeline.Pipeline, geocoderKey string) {
	if geocoderKey != "" {
		geocoder.ApiKey = geocoderKey
	}

	v1 := app.Group("/api/v1")

	v1.Get("/aggregates", func(c *fiber.Ctx) error {
		var req aggregatesQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		run, err := p.Store().Latest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no aggregation run available yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load aggregation result")
		}

		rows := filterRows(run.Rows, req)

		return c.JSON(fiber.Map{
			"run_id": run.ID,
			"count":  len(rows),
			"rows":   rows,
		})
	})

	v1.Get("/aggregates/summary", func(c *fiber.Ctx) error {
		run, err := p.Store().Latest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no aggregation run available yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load aggregation result")
		}

		return c.JSON(fiber.Map{
			"run_id":      run.ID,
			"finished_at": run.FinishedAt,
			"rows":        run.RowCount(),
			"stats":       run.Stats,
		})
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		run, err := p.Store().Latest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no pipeline run available yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load run")
		}
		return c.JSON(run)
	})

	v1.Get("/runs/:id", func(c *fiber.Ctx) error {
		run, err := p.Store().Get(c.Params("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no such pipeline run")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load run")
		}
		return c.JSON(run)
	})

	v1.Get("/zones/locate", func(c *fiber.Ctx) error {
		lon, lat, err := resolvePoint(c, geocoderKey)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		zone, ok := p.Locate(lon, lat)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "point is not inside any known zone")
		}
		return c.JSON(zone)
	})
}

// aggregatesQuery holds the filters accepted by the aggregates endpoint.
type aggregatesQuery struct {
	UserType string
	Borough  string
	StartDay string `validate:"omitempty,datetime=2006-01-02"`
	Limit    int    `validate:"gte=0,lte=100000"`
}

func (q *aggregatesQuery) bind(c *fiber.Ctx) error {
	q.UserType = c.Query("usertype")
	q.Borough = c.Query("borough")
	q.StartDay = c.Query("start_day")

	limitStr := c.Query("limit", "0")
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return errors.New("limit must be an integer")
	}
	q.Limit = limit

	return validate.Struct(q)
}

// filterRows applies the query filters to an already-sorted result set.
// The borough filter matches the trip's start borough.
func filterRows(rows []aggregate.Row, q aggregatesQuery) []aggregate.Row {
	filtered := make([]aggregate.Row, 0, len(rows))
	for _, row := range rows {
		if q.UserType != "" && row.UserType != q.UserType {
			continue
		}
		if q.Borough != "" && row.BoroughStart != q.Borough {
			continue
		}
		if q.StartDay != "" && row.StartDay != q.StartDay {
			continue
		}
		filtered = append(filtered, row)
		if q.Limit > 0 && len(filtered) >= q.Limit {
			break
		}
	}
	return filtered
}

// resolvePoint reads lat/lon query params, or geocodes a free-text address
// when a geocoding key is configured.
func resolvePoint(c *fiber.Ctx, geocoderKey string) (lon, lat float64, err error) {
	address := c.Query("address")
	if address != "" {
		if geocoderKey == "" {
			return 0, 0, errors.New("address lookups require a geocoding API key")
		}
		location, err := geocoder.Geocoding(geocoder.Address{
			Street: address,
			City:   "New York",
			State:  "NY",
		})
		if err != nil {
			return 0, 0, errors.New("failed to geocode address")
		}
		return location.Longitude, location.Latitude, nil
	}

	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		return 0, 0, errors.New("lat and lon query parameters are required")
	}

	lat, err = strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, errors.New("lat must be a number")
	}
	lon, err = strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, errors.New("lon must be a number")
	}

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, errors.New("coordinates out of range")
	}

	return lon, lat, nil
}
