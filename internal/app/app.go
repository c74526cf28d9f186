package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"training_backend/internal/catalog"
	"training_backend/internal/config"
	"training_backend/internal/controller"
	"training_backend/internal/repository"
	"training_backend/internal/service"
	"training_backend/internal/util"
	"training_backend/pkg/configwatcher"
	"training_backend/pkg/database"
	"training_backend/pkg/logger"
	"training_backend/pkg/monitoring"
	"training_backend/pkg/security"
	"training_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
)

const snapshotCacheTTL = 10 * time.Minute

type App struct {
	Config          *config.Config
	ConfigDir       string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []configwatcher.ConfigReloader
}

type repositories struct {
	user          *repository.UserRepository
	progress      *repository.ProgressRepository
	certificate   *repository.CertificateRepository
	exam          *repository.ExamRepository
	passwordReset *repository.PasswordResetRepository
	snapshots     service.SnapshotStore
	tokens        service.TokenBlacklist
}

type services struct {
	auth        *service.AuthService
	storage     *service.StorageService
	mailer      *service.SMTPMailer
	dispatcher  *service.NotificationDispatcher
	certificate *service.CertificateService
	evaluator   *service.CompletionEvaluator
	progress    *service.ProgressService
	exam        *service.ExamService
}

type controllers struct {
	auth        *controller.AuthController
	progress    *controller.ProgressController
	exam        *controller.ExamController
	certificate *controller.CertificateController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback configwatcher.ConfigReloader) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	repos := &repositories{
		user:          repository.NewUserRepository(db),
		progress:      repository.NewProgressRepository(db),
		certificate:   repository.NewCertificateRepository(db),
		exam:          repository.NewExamRepository(db),
		passwordReset: repository.NewPasswordResetRepository(db),
	}
	// 接口字段保持 nil，避免持有 nil 指针的非 nil 接口
	if rdb != nil {
		repos.snapshots = repository.NewSnapshotCache(rdb, snapshotCacheTTL)
		repos.tokens = repository.NewTokenStore(rdb)
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB) *services {
	cat, err := catalog.NewCatalog(cfg.Catalog.Modules)
	if err != nil {
		logger.Log.Fatal("Invalid module catalog", zap.Error(err))
	}
	answerKey, err := catalog.NewAnswerKey(cfg.Exam.Questions)
	if err != nil {
		logger.Log.Fatal("Invalid exam answer key", zap.Error(err))
	}

	s := &services{}
	s.storage = service.NewStorageService(context.Background(), &cfg.Storage)
	s.mailer = service.NewSMTPMailer(cfg.Mail, cfg.Server.BaseURL)
	s.dispatcher = service.NewNotificationDispatcher(cfg.Mail.Workers)

	s.certificate = service.NewCertificateService(
		repos.certificate,
		repos.user,
		cat,
		s.storage,
		s.mailer,
		s.dispatcher,
		repos.snapshots,
		cfg.Mail.AppName,
	)
	s.evaluator = service.NewCompletionEvaluator(repos.progress, cat, s.certificate)
	s.progress = service.NewProgressService(
		db,
		repos.progress,
		repos.user,
		repos.certificate,
		cat,
		s.evaluator,
		s.certificate,
		repos.snapshots,
	)
	s.exam = service.NewExamService(
		db,
		repos.exam,
		repos.user,
		repos.certificate,
		answerKey,
		cfg.Exam.PassThreshold,
		s.certificate,
		repos.snapshots,
	)
	s.auth = service.NewAuthService(
		db,
		repos.user,
		repos.passwordReset,
		s.progress,
		s.mailer,
		repos.tokens,
		cfg,
	)

	a.RegisterConfigCallback(s.mailer.ReloadConfig)
	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		progress:    controller.NewProgressController(s.progress),
		exam:        controller.NewExamController(s.exam),
		certificate: controller.NewCertificateController(s.certificate),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式下默认不自动迁移，需通过 -migrate 显式开启
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config:    cfg,
		ConfigDir: "configs",
		DB:        db,
	}
	if cfg.MigrateOnly {
		return app
	}

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			// Redis 只承担缓存和令牌黑名单，不可用时降级运行
			logger.Log.Warn("Redis unavailable, running without cache", zap.Error(err))
		} else {
			app.Redis = rdb
		}
	}

	repos := app.initRepositories(db, app.Redis)
	app.services = app.initServices(repos, cfg, db)
	controllers := app.initControllers(app.services, db, app.Redis)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("training-platform", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:         ":" + a.Config.Server.Port,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		if err := configwatcher.Watch(watchCtx, a.ConfigDir, a.configCallbacks...); err != nil {
			logger.Log.Warn("Config watcher stopped", zap.Error(err))
		}
	}()

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")
	stopWatch()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// 请求全部结束后再排空通知队列，保证已提交的证书邮件尽量发出
	if err := a.services.dispatcher.Close(ctx); err != nil {
		logger.Log.Warn("Notification queue not fully drained", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
}
