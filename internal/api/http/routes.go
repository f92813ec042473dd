package httpapi

import (
	"errors"
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-vibe-finder/internal/catalog"
	"github.com/i474232898/weather-vibe-finder/internal/prefetch"
	"github.com/i474232898/weather-vibe-finder/internal/search"
	"github.com/i474232898/weather-vibe-finder/internal/store"
	"github.com/i474232898/weather-vibe-finder/internal/weather"
)

var validate = validator.New()

// Dependencies are the components served over HTTP. Prefetch may be nil.
type Dependencies struct {
	Catalog  *catalog.Catalog
	Service  *weather.Service
	Engine   *search.Engine
	Cache    *store.MemoryStore
	Prefetch *prefetch.Warmer
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	v1 := app.Group("/api/v1")

	v1.Get("/vibes", func(c *fiber.Ctx) error {
		out := make([]vibeView, 0, len(weather.AllVibes))
		for _, v := range weather.AllVibes {
			out = append(out, newVibeView(v))
		}
		return c.JSON(out)
	})

	v1.Get("/vibes/:vibe/locations", func(c *fiber.Ctx) error {
		vibe, err := weather.ParseVibe(c.Params("vibe"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		tier, err := catalog.ParseTier(c.Query("tier"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(fiber.Map{
			"vibe":      vibe,
			"tier":      tier.String(),
			"locations": deps.Catalog.LocationsFor(vibe, tier),
		})
	})

	v1.Get("/vibes/:vibe/random", func(c *fiber.Ctx) error {
		vibe, err := weather.ParseVibe(c.Params("vibe"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		loc, ok := deps.Catalog.Random(vibe)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no locations for vibe")
		}
		return c.JSON(loc)
	})

	v1.Post("/vibes/:vibe/search", func(c *fiber.Ctx) error {
		vibe, err := weather.ParseVibe(c.Params("vibe"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}

		result, found := deps.Engine.SearchForFirstMatch(c.UserContext(), vibe)
		if !found {
			return c.JSON(fiber.Map{"found": false})
		}
		return c.JSON(fiber.Map{
			"found":  true,
			"result": result,
		})
	})

	v1.Post("/search/reset", func(c *fiber.Ctx) error {
		deps.Engine.ResetUsedLocations()
		return c.JSON(fiber.Map{"reset": true})
	})

	v1.Post("/classify", func(c *fiber.Ctx) error {
		var req classifyRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		cond, err := weather.ParseCondition(req.Condition)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		obs := weather.Observation{
			TemperatureC: *req.TemperatureC,
			Condition:    cond,
			WindSpeedKph: *req.WindSpeedKph,
		}

		if req.Vibe == "" {
			matches := weather.MatchingVibes(obs)
			if matches == nil {
				matches = []weather.VibeMatch{}
			}
			return c.JSON(fiber.Map{"matches": matches})
		}

		vibe, err := weather.ParseVibe(req.Vibe)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{
			"vibe":  vibe,
			"match": weather.IsStrictMatch(obs, vibe),
			"score": weather.ComputeScore(obs, vibe),
		})
	})

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		coord, err := parseCoordinateQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		obs, cached, err := deps.Service.CurrentWeather(c.UserContext(), coord)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "failed to fetch weather data")
		}

		matches := weather.MatchingVibes(obs)
		if matches == nil {
			matches = []weather.VibeMatch{}
		}
		return c.JSON(fiber.Map{
			"coordinate":  coord,
			"observation": obs,
			"cached":      cached,
			"vibes":       matches,
		})
	})

	v1.Get("/stats", func(c *fiber.Ctx) error {
		out := fiber.Map{
			"cache":   deps.Cache.Stats(),
			"search":  deps.Engine.Stats(),
			"catalog": deps.Catalog.Stats(),
		}
		if deps.Prefetch != nil {
			out["prefetch"] = deps.Prefetch.Stats()
		}
		return c.JSON(out)
	})
}

type vibeView struct {
	ID          weather.Vibe        `json:"id"`
	DisplayName string              `json:"displayName"`
	Description string              `json:"description"`
	Emoji       string              `json:"emoji"`
	Rules       weather.RuleSummary `json:"rules"`
}

func newVibeView(v weather.Vibe) vibeView {
	rules, _ := weather.Rules(v)
	return vibeView{
		ID:          v,
		DisplayName: v.DisplayName(),
		Description: v.Description(),
		Emoji:       v.Emoji(),
		Rules:       rules,
	}
}

// classifyRequest is the body of POST /classify.
type classifyRequest struct {
	Vibe         string   `json:"vibe"`
	TemperatureC *float64 `json:"temperatureC" validate:"required"`
	Condition    string   `json:"condition" validate:"required"`
	WindSpeedKph *float64 `json:"windSpeedKph" validate:"required,gte=0"`
}

func parseCoordinateQuery(c *fiber.Ctx) (weather.Coordinate, error) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		return weather.Coordinate{}, errors.New("lat and lon query parameters are required")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return weather.Coordinate{}, errors.New("invalid lat")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return weather.Coordinate{}, errors.New("invalid lon")
	}

	if math.IsNaN(lat) || math.IsNaN(lon) {
		return weather.Coordinate{}, errors.New("lat and lon must be numbers")
	}

	coord := weather.Coordinate{Lat: lat, Lon: lon}
	if err := validate.Struct(coord); err != nil {
		return weather.Coordinate{}, err
	}
	return coord, nil
}
