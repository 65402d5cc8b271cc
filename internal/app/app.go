package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ucode_backend/internal/config"
	"ucode_backend/internal/controller"
	"ucode_backend/internal/repository"
	"ucode_backend/internal/service"
	"ucode_backend/internal/util"
	"ucode_backend/pkg/database"
	"ucode_backend/pkg/logger"
	"ucode_backend/pkg/monitoring"
	"ucode_backend/pkg/queue"
	"ucode_backend/pkg/security"
	"ucode_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	rateLimiter     *security.RateLimiter
	queueClient     *queue.Client
	queueServer     *asynq.Server
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	lesson      *repository.LessonRepository
	progress    *repository.ProgressRepository
	certificate *repository.CertificateRepository
	submission  *repository.CodingSubmissionRepository
}

type services struct {
	storage     service.StorageProvider
	auth        *service.AuthService
	user        *service.UserService
	course      *service.CourseService
	lesson      *service.LessonService
	scoring     *service.ScoringService
	coding      *service.CodingService
	certificate *service.CertificateService
	seed        *service.SeedService
}

type controllers struct {
	auth        *controller.AuthController
	user        *controller.UserController
	course      *controller.CourseController
	lesson      *controller.LessonController
	task        *controller.TaskController
	certificate *controller.CertificateController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置文件变更后调用，只处理可以热更新的部分
func (a *App) ApplyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		lesson:      repository.NewLessonRepository(db),
		progress:    repository.NewProgressRepository(db),
		certificate: repository.NewCertificateRepository(db),
		submission:  repository.NewCodingSubmissionRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageProvider(&cfg.Storage)
	s.auth = service.NewAuthService(repos.user, service.NewRedisTokenBlacklist(rdb), service.NewGoogleVerifier(cfg.Google.ClientID), cfg)
	s.user = service.NewUserService(repos.user, repos.progress, s.storage, cfg)
	s.course = service.NewCourseService(db, repos.course, repos.lesson, repos.progress, s.storage, cfg)
	s.lesson = service.NewLessonService(db, repos.lesson, repos.course, repos.progress)
	s.scoring = service.NewScoringService(db, repos.lesson, repos.progress)
	s.coding = service.NewCodingService(repos.submission, repos.lesson, repos.progress, s.scoring, service.NewJudge0Client(cfg.Judge0))
	s.seed = service.NewSeedService(s.course, s.lesson)

	renderer, err := service.NewPDFCertificateRenderer()
	if err != nil {
		logger.Log.Fatal("Failed to initialize certificate renderer", zap.Error(err))
	}
	s.certificate = service.NewCertificateService(repos.certificate, repos.course, repos.user, repos.progress, renderer, s.storage, cfg)

	return s
}

// initQueue 启用队列时判题任务经 Redis 投递给 asynq worker，否则在进程内 goroutine 中执行
func (a *App) initQueue(cfg *config.Config, s *services) {
	if !cfg.Queue.Enabled {
		s.coding.SetQueue(&queue.InlineDispatcher{Handler: s.coding.ProcessSubmission})
		logger.Log.Info("Judge queue disabled, submissions are judged in-process")
		return
	}

	a.queueClient = queue.NewClient(&cfg.Redis)
	s.coding.SetQueue(a.queueClient)

	a.queueServer = queue.NewServer(cfg)
	mux := queue.NewServeMux(s.coding.ProcessSubmission)
	if err := a.queueServer.Start(mux); err != nil {
		logger.Log.Fatal("Failed to start judge worker", zap.Error(err))
	}
	logger.Log.Info("Judge worker started", zap.Int("concurrency", cfg.Queue.Concurrency))
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		user:        controller.NewUserController(s.user),
		course:      controller.NewCourseController(s.course, s.lesson),
		lesson:      controller.NewLessonController(s.lesson, s.scoring),
		task:        controller.NewTaskController(s.scoring, s.coding),
		certificate: controller.NewCertificateController(s.certificate),
		health:      controller.NewHealthController(db),
	}
}

func rateWindow(cfg *config.Config) time.Duration {
	if cfg.RateLimit.WindowMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	a.rateLimiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, rateWindow(cfg))
	router.Use(a.rateLimiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) registerReloadCallbacks() {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		level := logger.ResolveLevel(cfg)
		if level != logger.Level() {
			logger.SetLevel(level)
			logger.Log.Info("Log level updated", zap.String("level", level.String()))
		}
	})
	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.rateLimiter.Update(cfg.RateLimit.MaxRequests, rateWindow(cfg))
		logger.Log.Info("Rate limit updated",
			zap.Int("max_requests", cfg.RateLimit.MaxRequests),
			zap.Int("window_minutes", cfg.RateLimit.WindowMinutes),
		)
	})
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}

	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services

	if cfg.SeedFile != "" {
		summary, err := services.seed.SeedFile(cfg.SeedFile)
		if err != nil {
			logger.Log.Fatal("Failed to seed catalog", zap.String("file", cfg.SeedFile), zap.Error(err))
		}
		logger.Log.Info("Catalog file imported",
			zap.String("file", cfg.SeedFile),
			zap.Int("lessons", summary.LessonsSaved),
		)
	}

	app.initQueue(cfg, services)
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerReloadCallbacks()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("ucode-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run(ctx context.Context) {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// 等待正在执行的判题任务结束
	if a.queueServer != nil {
		a.queueServer.Shutdown()
	}
	if a.queueClient != nil {
		if err := a.queueClient.Close(); err != nil {
			logger.Log.Warn("Failed to close queue client", zap.Error(err))
		}
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
