package httpapi

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-etl/internal/store"
	"github.com/i474232898/weather-etl/internal/weather"
)

var validate = validator.New()

const defaultRunsLimit = 10

// RunService is the part of weather.Service the HTTP layer needs.
type RunService interface {
	Run(ctx context.Context, feed weather.Feed) (weather.RunSummary, error)
	LatestRun(feed string) (weather.RunSummary, error)
	ListRuns(feed string, limit int) ([]weather.RunSummary, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service RunService) {
	v1 := app.Group("/api/v1")

	v1.Post("/runs/:feed", func(c *fiber.Ctx) error {
		feed, err := feedParam(c)
		if err != nil {
			return err
		}

		summary, err := service.Run(c.UserContext(), feed)
		if err != nil {
			if errors.Is(err, weather.ErrRunInProgress) {
				return fiber.NewError(fiber.StatusConflict, "a run of this feed is already in progress")
			}
			return c.Status(fiber.StatusInternalServerError).JSON(summary)
		}

		return c.JSON(summary)
	})

	v1.Get("/runs/:feed/latest", func(c *fiber.Ctx) error {
		feed, err := feedParam(c)
		if err != nil {
			return err
		}

		summary, err := service.LatestRun(feed.Name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no runs recorded for requested feed")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch run history")
		}

		return c.JSON(summary)
	})

	v1.Get("/runs/:feed", func(c *fiber.Ctx) error {
		feed, err := feedParam(c)
		if err != nil {
			return err
		}

		var req runsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		runs, err := service.ListRuns(feed.Name, req.Limit)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no runs recorded for requested feed")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch run history")
		}

		return c.JSON(fiber.Map{
			"feed":  feed.Name,
			"limit": req.Limit,
			"runs":  runs,
		})
	})
}

func feedParam(c *fiber.Ctx) (weather.Feed, error) {
	feed, err := weather.FeedByName(c.Params("feed"))
	if err != nil {
		return weather.Feed{}, fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return feed, nil
}

// runsQuery holds query parameters for the run listing endpoint.
type runsQuery struct {
	Limit int `validate:"min=1,max=100"`
}

func (q *runsQuery) bind(c *fiber.Ctx) error {
	raw := c.Query("limit")
	if raw == "" {
		q.Limit = defaultRunsLimit
		return nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return errors.New("limit must be an integer")
	}
	q.Limit = limit
	return nil
}
