// Точка входа сайта HNF.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт клиенты хранилища и почты, сервисный слой и обработчики,
// запускает фоновые задачи (сверка хранилища, topologymetrics),
// HTTP-сервер и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	apihandlers "github.com/nordqvist/hnfweb/internal/api/handlers"
	"github.com/nordqvist/hnfweb/internal/config"
	"github.com/nordqvist/hnfweb/internal/database"
	"github.com/nordqvist/hnfweb/internal/mailer"
	"github.com/nordqvist/hnfweb/internal/objectstore"
	"github.com/nordqvist/hnfweb/internal/repository"
	"github.com/nordqvist/hnfweb/internal/server"
	"github.com/nordqvist/hnfweb/internal/service"
	"github.com/nordqvist/hnfweb/internal/ui/auth"
	uihandlers "github.com/nordqvist/hnfweb/internal/ui/handlers"
	uimiddleware "github.com/nordqvist/hnfweb/internal/ui/middleware"
)

func main() {
	// 1. Загрузка конфигурации (.env, затем переменные окружения)
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("Ошибка загрузки .env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Сайт HNF запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL
	ctx := context.Background()
	db, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	// 5. Repositories
	txRunner := repository.NewTxRunner(db, logger)
	userRepo := repository.NewUserRepository(txRunner)
	imageRepo := repository.NewImageRepository(txRunner)

	// 6. Объектное хранилище (опционально)
	// Интерфейс остаётся nil, если хранилище не настроено
	var store service.ObjectStore
	if cfg.StorageEnabled() {
		client, storeErr := objectstore.New(ctx, objectstore.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		}, logger)
		if storeErr != nil {
			logger.Error("Ошибка создания клиента хранилища", slog.String("error", storeErr.Error()))
			os.Exit(1)
		}
		store = client
	} else {
		logger.Warn("Объектное хранилище не настроено, загрузка изображений отключена")
	}

	// 7. Services
	authSvc := service.NewAuthService(userRepo, logger)
	contactSvc := service.NewContactService(
		mailer.NewResendSender(cfg.ResendAPIKey, logger),
		service.ContactConfig{
			From:    cfg.EmailFrom,
			To:      cfg.EmailTo,
			Subject: cfg.EmailSubject,
		},
		logger,
	)
	imageSvc := service.NewImageService(imageRepo, store, cfg.S3Folder, logger)

	// 8. Фоновые задачи
	var reconcileSvc *service.ReconcileService
	if store != nil {
		reconcileSvc = service.NewReconcileService(imageRepo, store, service.ReconcileOptions{
			Folder:        cfg.S3Folder,
			Grace:         cfg.ReconcileGrace,
			DeleteOrphans: cfg.ReconcileDeleteOrphans,
		}, logger)
		if err := reconcileSvc.Start(ctx, cfg.ReconcileSchedule); err != nil {
			logger.Error("Ошибка запуска сверки хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 8.1 topologymetrics — мониторинг зависимостей (PostgreSQL)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"hnfweb",
		cfg.DephealthGroup,
		db,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 9. Сессии и обработчики
	sessionMgr, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionCookieSecure)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers := server.Handlers{
		Health:   apihandlers.NewHealthHandler(database.NewReadinessChecker(db)),
		Pages:    uihandlers.NewPagesHandler(imageSvc, sessionMgr, logger),
		Auth:     uihandlers.NewAuthHandler(authSvc, sessionMgr, logger),
		Contact:  uihandlers.NewContactHandler(contactSvc, sessionMgr, logger),
		Admin:    uihandlers.NewAdminHandler(imageSvc, cfg.MaxUploadBytes, sessionMgr, logger),
		Sessions: uimiddleware.NewSessions(sessionMgr, logger),
	}

	// 10. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, handlers)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	if reconcileSvc != nil {
		reconcileSvc.Stop()
	}

	logger.Info("Сайт HNF остановлен")
}
