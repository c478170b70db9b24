package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"market-scraper/internal/service"
	"market-scraper/pkg/crawler"
	"market-scraper/pkg/logger"
)

type StatusResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Crawl     crawler.Status  `json:"crawl"`
	Health    map[string]bool `json:"health"`
}

// StatusServer exposes the live state of a crawl over HTTP.
type StatusServer struct {
	app    *fiber.App
	status service.StatusProvider
	log    *logger.Logger
}

func NewStatusServer(status service.StatusProvider, log *logger.Logger) *StatusServer {
	s := &StatusServer{
		app: fiber.New(fiber.Config{
			AppName:               "market-scraper",
			DisableStartupMessage: true,
		}),
		status: status,
		log:    log.WithField("component", "status_server"),
	}

	s.app.Get("/health", s.health)
	s.app.Get("/status", s.getStatus)
	s.app.Get("/status/categories", s.listCategories)
	s.app.Get("/status/categories/:code", s.getCategory)
	return s
}

// App returns the underlying fiber app.
func (s *StatusServer) App() *fiber.App {
	return s.app
}

// Start listens on addr until Shutdown is called.
func (s *StatusServer) Start(addr string) error {
	s.log.WithField("addr", addr).Info("Status server listening")
	return s.app.Listen(addr)
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *StatusServer) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *StatusServer) getStatus(c *fiber.Ctx) error {
	st := s.status.Status()

	return c.JSON(StatusResponse{
		Status:    string(st.Phase),
		Timestamp: time.Now().Format(time.RFC3339),
		Crawl:     st,
		Health: map[string]bool{
			"running":        st.Phase == crawler.StateRunning,
			"aborted":        st.Phase == crawler.StateAborted,
			"gate_saturated": st.Gate.Max > 0 && st.Gate.InFlight >= st.Gate.Max,
		},
	})
}

func (s *StatusServer) listCategories(c *fiber.Ctx) error {
	cats := s.status.Status().Categories
	if state := c.Query("state"); state != "" {
		filtered := make([]crawler.CategoryStatus, 0, len(cats))
		for _, cs := range cats {
			if string(cs.State) == state {
				filtered = append(filtered, cs)
			}
		}
		cats = filtered
	}
	return c.JSON(cats)
}

func (s *StatusServer) getCategory(c *fiber.Ctx) error {
	code := c.Params("code")
	for _, cs := range s.status.Status().Categories {
		if cs.Code == code {
			return c.JSON(cs)
		}
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "category not found"})
}
