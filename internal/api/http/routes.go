package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/transit-feed/internal/geo"
	"github.com/i474232898/transit-feed/internal/store"
	"github.com/i474232898/transit-feed/internal/transit"
)

var validate = validator.New()

// FeedService is what the handlers need from the feed assembler.
type FeedService interface {
	Build(ctx context.Context, site geo.Site, t time.Time) transit.Feed
	GetLatest(site geo.Site) (transit.Feed, error)
	GetRange(site geo.Site, from, to time.Time) ([]transit.Feed, error)
	ResolveBody(ctx context.Context, name string, t time.Time) (transit.Position, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. sites are the
// configured observer sites the scheduler keeps feeds for.
func RegisterRoutes(app *fiber.App, service FeedService, sites []geo.Site) {
	v1 := app.Group("/api/v1")

	v1.Get("/sites", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"sites": sites})
	})

	v1.Get("/feed/latest", func(c *fiber.Ctx) error {
		site, err := lookupSite(sites, c.Query("site"))
		if err != nil {
			return err
		}

		feed, err := service.GetLatest(site)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no feed generated yet for requested site")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch feed")
		}

		return c.JSON(feed)
	})

	v1.Get("/feed/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c, sites); err != nil {
			return err
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		feeds, err := service.GetRange(req.Site, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no feed history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch feed history")
		}

		return c.JSON(fiber.Map{
			"site":  req.Site,
			"from":  req.From,
			"to":    req.To,
			"feeds": feeds,
		})
	})

	v1.Get("/feed", func(c *fiber.Ctx) error {
		var q coordinateQuery
		if err := q.bind(c); err != nil {
			return err
		}
		at, err := parseAt(c.Query("at"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		site := geo.Site{Name: q.Name, Latitude: *q.Latitude, Longitude: *q.Longitude, Elevation: q.Elevation}
		return c.JSON(service.Build(c.UserContext(), site, at))
	})

	v1.Get("/positions/:body", func(c *fiber.Ctx) error {
		at, err := parseAt(c.Query("at"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		p, err := service.ResolveBody(c.UserContext(), c.Params("body"), at)
		if err != nil {
			if errors.Is(err, transit.ErrUnknownBody) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to resolve body")
		}

		return c.JSON(fiber.Map{
			"at":       at,
			"position": transit.NewBodyEntry(p),
		})
	})
}

func lookupSite(sites []geo.Site, name string) (geo.Site, error) {
	if strings.TrimSpace(name) == "" {
		return geo.Site{}, fiber.NewError(fiber.StatusBadRequest, "site query parameter is required")
	}
	for _, s := range sites {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return geo.Site{}, fiber.NewError(fiber.StatusNotFound, "unknown site "+strconv.Quote(name))
}

// coordinateQuery holds query parameters for an ad-hoc observer.
type coordinateQuery struct {
	Name      string
	Latitude  *float64 `validate:"required,gte=-90,lte=90"`
	Longitude *float64 `validate:"required,gte=-180,lte=180"`
	Elevation float64
}

func (q *coordinateQuery) bind(c *fiber.Ctx) error {
	q.Name = c.Query("name")
	var err error
	if q.Latitude, err = optionalFloat(c.Query("lat")); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid lat: "+err.Error())
	}
	if q.Longitude, err = optionalFloat(c.Query("lon")); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid lon: "+err.Error())
	}
	if elev, err := optionalFloat(c.Query("elevation")); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid elevation: "+err.Error())
	} else if elev != nil {
		q.Elevation = *elev
	}

	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Site geo.Site
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx, sites []geo.Site) error {
	site, err := lookupSite(sites, c.Query("site"))
	if err != nil {
		return err
	}
	h.Site = site

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return fiber.NewError(fiber.StatusBadRequest, "from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	to, err := parseTime(toStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	h.From = from
	h.To = to
	return nil
}

// parseAt parses an optional time, defaulting to now.
func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	return parseTime(s)
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
