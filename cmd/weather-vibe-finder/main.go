package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-vibe-finder/internal/api/http"
	"github.com/i474232898/weather-vibe-finder/internal/catalog"
	"github.com/i474232898/weather-vibe-finder/internal/config"
	"github.com/i474232898/weather-vibe-finder/internal/prefetch"
	"github.com/i474232898/weather-vibe-finder/internal/search"
	"github.com/i474232898/weather-vibe-finder/internal/store"
	"github.com/i474232898/weather-vibe-finder/internal/weather"
	"github.com/i474232898/weather-vibe-finder/internal/weather/providers"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("weather-vibe-finder: %v", err)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load location catalog: %w", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Observation cache shared by searches, prefetch and current weather.
	cache := store.NewMemoryStore(cfg.CacheTTL)

	// Providers with resilience (backoff + circuit breaker), tried in order.
	provs, err := buildProviders(cfg, httpClient)
	if err != nil {
		return fmt.Errorf("configure providers: %w", err)
	}
	service := weather.NewService(cache, provs)

	searchOpts := []search.Option{
		search.WithFetchDelay(cfg.SearchFetchDelay),
		search.WithFetchTimeout(cfg.SearchFetchTimeout),
	}

	// Background cache warming; paused while a search runs.
	var warmer *prefetch.Warmer
	if cfg.PrefetchEnabled {
		warmer = prefetch.New(prefetch.Config{
			Interval:         cfg.PrefetchInterval,
			StartupDelay:     cfg.PrefetchStartupDelay,
			Delay:            cfg.PrefetchDelay,
			FetchTimeout:     cfg.HTTPTimeout,
			PrimaryPerVibe:   cfg.PrefetchPrimary,
			SecondaryPerVibe: cfg.PrefetchSecondary,
			FallbackPerVibe:  cfg.PrefetchFallback,
			Device:           cfg.Device,
		}, cat, service, cache)
		if err := warmer.Start(); err != nil {
			return fmt.Errorf("start prefetch: %w", err)
		}
		defer warmer.Stop()
		searchOpts = append(searchOpts, search.WithPauser(warmer))
	}

	engine := search.NewEngine(cat, service, searchOpts...)

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-vibe-finder",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * time.Minute, // searches may walk many throttled fetches
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-vibe-finder",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		Catalog:  cat,
		Service:  service,
		Engine:   engine,
		Cache:    cache,
		Prefetch: warmer,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s with providers %v", cfg.Port, cfg.Providers)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return catalog.Load(f)
}

func buildProviders(cfg *config.AppConfig, client *http.Client) ([]weather.Provider, error) {
	var provs []weather.Provider
	for _, name := range cfg.Providers {
		switch name {
		case "openmeteo":
			provs = append(provs, providers.NewOpenMeteoProvider(client))
		case "openweather":
			provs = append(provs, providers.NewOpenWeatherProvider(client, cfg.OpenWeatherAPIKey))
		case "weatherapi":
			provs = append(provs, providers.NewWeatherAPIProvider(client, cfg.WeatherAPIKey))
		default:
			return nil, fmt.Errorf("unknown weather provider %q", name)
		}
	}
	return provs, nil
}
