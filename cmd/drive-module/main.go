// Точка входа Drive Module — хранилище файлов и папок пользователей
// с корзиной, квотами и ссылками доступа.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// открывает blob store, создаёт сервисный слой и API handlers,
// запускает фоновые задачи (очистка ссылок, topologymetrics)
// и HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/afero"

	"github.com/bigkaa/goartstore/drive-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/drive-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/drive-module/internal/auth"
	"github.com/bigkaa/goartstore/drive-module/internal/blobstore"
	"github.com/bigkaa/goartstore/drive-module/internal/blobstore/badgerstore"
	"github.com/bigkaa/goartstore/drive-module/internal/blobstore/filestore"
	"github.com/bigkaa/goartstore/drive-module/internal/blobstore/s3store"
	"github.com/bigkaa/goartstore/drive-module/internal/config"
	"github.com/bigkaa/goartstore/drive-module/internal/database"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
	"github.com/bigkaa/goartstore/drive-module/internal/server"
	"github.com/bigkaa/goartstore/drive-module/internal/service"
)

// readinessTimeout — таймаут проверок готовности зависимостей.
const readinessTimeout = 3 * time.Second

func main() {
	// 1. Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Drive Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Server.Port),
		slog.String("blob_backend", cfg.Blob.Backend),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Blob store
	blobs, closeBlobs, err := buildBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации blob store",
			slog.String("backend", cfg.Blob.Backend),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer closeBlobs()

	// 6. Services
	store := repository.NewPostgresStore(pool)
	urls := service.NewURLBuilder(strings.TrimSuffix(cfg.Server.PublicBaseURL, "/") + "/api/v1")
	paths := service.NewPathResolver(0)
	shareCache := service.NewShareCache(cfg.Share.CacheSize, cfg.Share.CacheTTL)
	quotaSvc := service.NewQuotaService(store, logger)
	usersSvc := service.NewUserService(store, cfg.Quota.DefaultStorageLimit, logger)
	contentsSvc := service.NewContentsService(store, paths, urls, logger)
	sharesSvc := service.NewShareService(store, blobs, contentsSvc, urls,
		auth.NewHasher(auth.DefaultParams), shareCache, logger)

	svc := handlers.Services{
		Folders: service.NewFolderService(store, paths, logger),
		Files: service.NewFileService(store, blobs, quotaSvc, urls,
			cfg.Quota.MaxUploadSize, cfg.Quota.AllowedMIMETypes, logger),
		Lifecycle: service.NewLifecycleService(store, blobs, quotaSvc, shareCache, logger),
		Contents:  contentsSvc,
		Shares:    sharesSvc,
		Quota:     quotaSvc,
	}

	// 7. JWT middleware (пользователь создаётся при первом запросе)
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWT.JWKSURL,
		cfg.JWT.Issuer,
		cfg.JWT.UsernameClaim,
		usersSvc,
		cfg.JWT.RefreshInterval,
		cfg.JWT.Leeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWT.JWKSURL),
		slog.String("issuer", cfg.JWT.Issuer),
	)

	// 8. Health endpoints
	healthHandler := handlers.NewHealthHandler(map[string]handlers.ReadinessChecker{
		"postgresql": database.NewReadinessChecker(pool),
		"idp":        middleware.NewIDPReadinessChecker(cfg.JWT.JWKSURL, readinessTimeout),
		"blobstore":  blobstore.NewReadinessChecker(blobs, readinessTimeout),
	})
	apiHandler := handlers.NewAPIHandler(healthHandler, svc, logger)

	// 9. Фоновые задачи
	reaper := service.NewShareReaper(sharesSvc, cfg.Share.ReaperInterval, logger)
	reaper.Start(ctx)

	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "drive-module",
		Group:         cfg.Dephealth.Group,
		DB:            pgDB,
		PgConnURL:     cfg.DatabaseURL(),
		JWKSURL:       cfg.JWT.JWKSURL,
		CheckInterval: cfg.Dephealth.CheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.Dephealth.Group),
			slog.String("check_interval", cfg.Dephealth.CheckInterval.String()),
		)
	}

	// 10. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler, jwtAuth.Middleware())
	runErr := srv.Run()

	// 11. Остановка фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	reaper.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("Drive Module остановлен")
}

// buildBlobStore открывает хранилище содержимого выбранного бэкенда.
// Возвращаемая функция освобождает ресурсы хранилища.
func buildBlobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blobstore.BlobStore, func(), error) {
	noop := func() {}

	switch cfg.Blob.Backend {
	case "fs":
		s, err := filestore.New(afero.NewOsFs(), cfg.Blob.FS.Root)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case "s3":
		s, err := s3store.New(ctx, s3store.Config{
			Bucket:    cfg.Blob.S3.Bucket,
			Region:    cfg.Blob.S3.Region,
			Endpoint:  cfg.Blob.S3.Endpoint,
			KeyPrefix: cfg.Blob.S3.KeyPrefix,
			AccessKey: cfg.Blob.S3.AccessKey,
			SecretKey: cfg.Blob.S3.SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case "badger":
		s, err := badgerstore.Open(cfg.Blob.Badger.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Error("Ошибка закрытия badger", slog.String("error", err.Error()))
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("неизвестный бэкенд blob store: %s", cfg.Blob.Backend)
	}
}
