// Пакет server — HTTP-сервер сайта с graceful shutdown.
// Без TLS: TLS termination на reverse proxy.
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
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apihandlers "github.com/nordqvist/hnfweb/internal/api/handlers"
	"github.com/nordqvist/hnfweb/internal/api/middleware"
	"github.com/nordqvist/hnfweb/internal/config"
	uihandlers "github.com/nordqvist/hnfweb/internal/ui/handlers"
	uimiddleware "github.com/nordqvist/hnfweb/internal/ui/middleware"
	"github.com/nordqvist/hnfweb/internal/ui/static"
)

// Handlers — обработчики, из которых собирается роутер.
type Handlers struct {
	Health   *apihandlers.HealthHandler
	Pages    *uihandlers.PagesHandler
	Auth     *uihandlers.AuthHandler
	Contact  *uihandlers.ContactHandler
	Admin    *uihandlers.AdminHandler
	Sessions *uimiddleware.Sessions
}

// Server — HTTP-сервер сайта.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, h),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты сайта.
// Служебные endpoints (health, metrics, static) обходят загрузку сессии.
func NewRouter(logger *slog.Logger, h Handlers) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(chimiddleware.Recoverer)

	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.FileSystem())))

	router.Group(func(r chi.Router) {
		r.Use(h.Sessions.Load)

		r.Get("/", h.Pages.HandleHome)
		r.Get("/inspiration", h.Pages.HandleInspiration)
		r.Get("/about", h.Pages.HandleAbout)
		r.Get("/contact", h.Contact.HandleContactPage)
		r.Post("/send", h.Contact.HandleSend)

		r.Get("/login", h.Auth.HandleLoginPage)
		r.Post("/login", h.Auth.HandleLogin)
		r.Get("/logout", h.Auth.HandleLogout)

		// Только для вошедшего администратора
		r.Group(func(r chi.Router) {
			r.Use(h.Sessions.RequireAdmin)

			r.Get("/register", h.Auth.HandleRegisterPage)
			r.Post("/register", h.Auth.HandleRegister)

			r.Get("/admin", h.Admin.HandleDashboard)
			r.Post("/admin/upload", h.Admin.HandleUpload)
			r.Post("/admin/images/{id}/delete", h.Admin.HandleDelete)
			r.Post("/admin/images/{id}/deactivate", h.Admin.HandleDeactivate)
			r.Post("/admin/images/{id}/activate", h.Admin.HandleActivate)
		})

		r.NotFound(h.Pages.HandleNotFound)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
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

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
