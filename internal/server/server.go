// Пакет server — HTTP-сервер брокера с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bigkaa/authbroker/internal/api/handlers"
	"github.com/bigkaa/authbroker/internal/api/middleware"
	"github.com/bigkaa/authbroker/internal/domain/rbac"
)

// Server — HTTP-сервер брокера.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// Options — параметры HTTP-сервера.
type Options struct {
	Port            int
	ShutdownTimeout time.Duration
}

// NewRouter собирает таблицу маршрутов брокера.
func NewRouter(
	logger *slog.Logger,
	api *handlers.APIHandler,
	health *handlers.HealthHandler,
	auth *middleware.JWTAuth,
	limiter *middleware.LoginLimiter,
) chi.Router {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.Recoverer)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics проверяются Kubernetes напрямую, без токена
	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	reader := middleware.RequireCapability(rbac.CapabilityReader)
	writer := middleware.RequireCapability(rbac.CapabilityWriter)

	router.Route("/api/v1/{"+middleware.TenantParam+"}", func(r chi.Router) {
		// Публичные
		r.With(limiter.Middleware()).Post("/auth/login", api.Login)
		r.Post("/auth/logout", api.Logout)

		// С токеном realm тенанта
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware())

			r.Put("/auth/tokens/refresh", api.RefreshToken)
			r.Get("/auth/decode", api.DecodeToken)

			r.With(reader).Get("/groups", api.ListGroups)
			r.With(writer).Post("/group", api.CreateGroup)
			r.With(writer).Delete("/group/{id}", api.DeleteGroup)
			r.With(reader).Get("/group/{id}/roles", api.GroupRoles)
			r.With(writer).Post("/group/{id}/roles", api.AddRoleToGroup)
			r.With(writer).Delete("/group/{id}/roles", api.RemoveRoleFromGroup)
			r.With(reader).Get("/group/{id}/users", api.GroupUsers)
			r.With(writer).Post("/group/{id}/users/{userId}", api.AddUserToGroup)
			r.With(writer).Delete("/group/{id}/users/{userId}", api.RemoveUserFromGroup)

			r.With(reader).Get("/clients", api.ListClients)
			r.With(reader).Get("/clients/{clientId}/roles", api.ClientRoles)
			r.With(writer).Post("/clients/{clientId}/roles", api.CreateRole)

			r.With(reader).Get("/users", api.ListUsers)
			r.With(reader).Get("/users/{username}", api.GetUser)
			r.With(writer).Post("/user", api.CreateUser)
			r.With(writer).Delete("/user/{id}", api.DeleteUser)
			r.With(writer).Put("/user/{id}/password", api.ResetPassword)
			r.With(writer).Post("/user/{id}/email-verification", api.SendEmailVerification)
		})
	})

	return router
}

// New создаёт HTTP-сервер поверх router.
func New(opts Options, logger *slog.Logger, router http.Handler) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer:      srv,
		logger:          logger.With(slog.String("component", "http_server")),
		shutdownTimeout: opts.ShutdownTimeout,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
