// Пакет server — HTTP-сервер Drive Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
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

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/drive-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/drive-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/drive-module/internal/config"
)

// Server — HTTP-сервер Drive Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// auth — JWT middleware для /api/v1 (nil — без аутентификации, только для тестов).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, auth func(http.Handler) http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      NewRouter(logger, handler, auth),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter строит chi-router со всеми маршрутами.
// Health, metrics и публичные ссылки доступны без JWT.
func NewRouter(logger *slog.Logger, h *handlers.APIHandler, auth func(http.Handler) http.Handler) http.Handler {
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	router := chi.NewRouter()
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/public/shares/{token}", func(r chi.Router) {
			r.Get("/", h.ResolveShare)
			r.Get("/files/{id}/content", h.GetSharedFileContent)
		})

		// Содержимое файла: с ?token= доступ проверяется по ссылке
		r.With(unlessShareToken(auth)).Get("/files/{id}/content", h.GetFileContent)

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Get("/folders/contents", h.ListFolderContents)
			r.Post("/folders", h.CreateFolder)
			r.Get("/folders/{id}", h.GetFolder)
			r.Patch("/folders/{id}", h.UpdateFolder)
			r.Delete("/folders/{id}", h.DeleteFolder)

			r.Post("/files", h.UploadFile)
			r.Get("/files/favorites", h.ListFavorites)
			r.Get("/files/{id}", h.GetFile)
			r.Patch("/files/{id}", h.UpdateFile)
			r.Delete("/files/{id}", h.PurgeFile)
			r.Post("/files/{id}/favorite", h.ToggleFavorite)
			r.Post("/files/{id}/trash", h.TrashFile)
			r.Post("/files/{id}/restore", h.RestoreFile)

			r.Get("/trash", h.ListTrash)
			r.Delete("/trash", h.EmptyTrash)
			r.Get("/search", h.SearchFiles)
			r.Get("/storage/stats", h.GetStorageStats)
			r.Get("/storage/audit", h.GetStorageAudit)

			r.Post("/shares", h.CreateShare)
			r.Get("/shares", h.ListShares)
			r.Delete("/shares/{id}", h.DeleteShare)
		})
	})

	return router
}

// unlessShareToken применяет auth только к запросам без параметра token.
func unlessShareToken(auth func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := auth(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("token") != "" {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
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
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
