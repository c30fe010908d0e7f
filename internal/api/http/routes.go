package httpapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-etl/internal/weather"
)

var validate = validator.New()

// CycleStatus exposes the outcome of the most recent cycle.
type CycleStatus interface {
	LastResult() (weather.CycleResult, bool)
}

// RegisterRoutes wires the reporting handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, reporter weather.Reporter, status CycleStatus) {
	v1 := app.Group("/api/v1")

	v1.Get("/cycles/last", func(c *fiber.Ctx) error {
		res, ok := status.LastResult()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no cycle has run yet")
		}
		return c.JSON(res)
	})

	reports := v1.Group("/reports")

	reports.Get("/max-temperature", func(c *fiber.Ctx) error {
		rows, err := reporter.MaxTemperatureByStation(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute max temperature")
		}
		return c.JSON(fiber.Map{"stations": rows})
	})

	reports.Get("/average-temperature", func(c *fiber.Ctx) error {
		avg, err := reporter.AverageTemperature(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute average temperature")
		}
		return c.JSON(fiber.Map{"averageTemperature": avg})
	})

	reports.Get("/feel-gap", func(c *fiber.Ctx) error {
		gap, err := reporter.BiggestFeelGap(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute feel temperature gap")
		}
		if gap == nil {
			return fiber.NewError(fiber.StatusNotFound, "no measurements with both feel and actual temperature")
		}
		return c.JSON(gap)
	})

	v1.Get("/stations", func(c *fiber.Ctx) error {
		var q regionQuery
		q.bind(c)
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		stations, err := reporter.StationsInRegion(c.UserContext(), q.Terms...)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to query stations")
		}
		return c.JSON(fiber.Map{
			"terms":    q.Terms,
			"stations": stations,
		})
	})
}

// regionQuery holds the region filter of the stations endpoint. No terms
// means the coastal terms.
type regionQuery struct {
	Terms []string `validate:"max=10,dive,min=1,max=64"`
}

func (q *regionQuery) bind(c *fiber.Ctx) {
	raw := c.Query("region")
	if raw == "" {
		q.Terms = weather.CoastalRegionTerms
		return
	}
	for _, t := range strings.Split(raw, ",") {
		q.Terms = append(q.Terms, strings.TrimSpace(t))
	}
}
