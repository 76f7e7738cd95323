package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/transit-feed/internal/api/http"
	"github.com/i474232898/transit-feed/internal/scheduler"
	"github.com/i474232898/transit-feed/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Regenerate feeds on a schedule and serve them over HTTP",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApplication(cfg)
	if err != nil {
		return err
	}

	// Scheduler that periodically builds and stores feeds.
	sched := scheduler.New(a.sites, cfg.Schedule.Interval, cfg.Schedule.Timeout, a.service)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	w, err := a.watchFiles()
	if err != nil {
		log.Printf("WARN: file watching disabled: %v", err)
	} else {
		w.Start()
		defer w.Stop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "transit-feed",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "transit-feed",
			"sites":   len(a.sites),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))

	httpapi.RegisterRoutes(app, a.service, a.sites)

	go func() {
		log.Printf("INFO: listening on %s", cfg.HTTP.Addr)
		if err := app.Listen(cfg.HTTP.Addr); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	return nil
}

// watchFiles reloads the flat datasets, a file-based formula set and the
// orbital elements when they change.
func (a *application) watchFiles() (*watch.Watcher, error) {
	w, err := watch.New()
	if err != nil {
		return nil, err
	}
	if err := a.addWatches(w); err != nil {
		w.Stop()
		return nil, err
	}
	log.Printf("INFO: watching %d files for changes", w.Len())
	return w, nil
}

func (a *application) addWatches(w *watch.Watcher) error {
	if a.flat != nil {
		for _, p := range a.flat.Paths() {
			err := w.Add(p, func(string) {
				if err := a.flat.Reload(); err != nil {
					log.Printf("WARN: flat dataset not reloaded: %v", err)
				}
			})
			if err != nil {
				return err
			}
		}
	}
	if fi, err := os.Stat(a.cfg.Parts.Set); err == nil && !fi.IsDir() {
		err := w.Add(a.cfg.Parts.Set, func(string) {
			if a.formulas.Reload() == nil {
				a.service.ResetOverlays()
			}
		})
		if err != nil {
			return err
		}
	}
	if p := a.cfg.Ephemeris.ElementsFile; p != "" {
		err := w.Add(p, func(string) {
			if err := a.calc.LoadElements(p); err != nil {
				log.Printf("WARN: orbital elements not reloaded: %v", err)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}
