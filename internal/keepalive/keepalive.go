// Package keepalive serves the small HTTP endpoint hosting platforms poll to
// keep the bot process awake.
package keepalive

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/lmittmann/tint"
)

const aliveText = "I'm alive and running! 🤖"

// Server is the keepalive HTTP server.
type Server struct {
	addr string
	app  *fiber.App
	log  *slog.Logger
}

// New builds the server. Responses are cached for cacheTTL.
func New(addr string, cacheTTL time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Second
	}
	app := fiber.New(fiber.Config{
		AppName:               "bella",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           60 * time.Second,
	})
	app.Use(recover.New())
	app.Use(cache.New(cache.Config{
		Expiration:   cacheTTL,
		CacheControl: true,
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(aliveText)
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	return &Server{addr: addr, app: app, log: logger.With("logger", "keepalive")}
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Run listens until ctx is done, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info("keepalive listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("keepalive shutdown failed", tint.Err(err))
	}
	<-errCh
	return nil
}
