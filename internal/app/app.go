package app

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "obogportal/docs"
	"obogportal/internal/adapter/cache"
	"obogportal/internal/authz"
	"obogportal/internal/config"
	"obogportal/internal/handlers"
	"obogportal/internal/logging"
	"obogportal/internal/middleware"
	"obogportal/internal/models"
	"obogportal/internal/pdf"
	"obogportal/internal/repositories"
	"obogportal/internal/repositories/memory"
	"obogportal/internal/repositories/supabase"
	"obogportal/internal/routes"
	"obogportal/internal/server"
	"obogportal/internal/services"
)

// snowflakeNode identifies this instance in post ids. A single instance is assumed.
const snowflakeNode = 1

// App is the composed server: stores, services and router.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Router *gin.Engine

	closers []func() error
}

// Run loads configuration, builds the app and serves until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()

	return server.NewHTTPServer(a.Router, cfg.Server.RequestTimeout, logger).Run(ctx, cfg.ListenAddr())
}

// New wires every component for cfg. The caller owns Close.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	repos, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openChallenges(ctx, repos); err != nil {
		a.Close()
		return nil, err
	}

	node, err := snowflake.NewNode(snowflakeNode)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	storage, err := services.NewStorageService(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}

	emails := services.NewEmailService(cfg.Email, cfg.EmailMode(), cfg.IsProduction(), logger)
	sessions := services.NewSessionService(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, repos.Profiles, logger)
	otp := services.NewOTPService(repos, emails, sessions, services.OTPOptions{
		CodeLength:  cfg.Auth.OTPLength,
		TTL:         cfg.Auth.OTPTTL,
		MaxAttempts: cfg.Auth.MaxAttempts,
	}, logger)
	users := services.NewUserService(repos, pdf.NewRosterGenerator(cfg.Reports.FontPath), logger)
	posts := services.NewPostService(repos.Posts, node, logger)

	status := emails.CheckConfig()
	logger.Info("email dispatcher ready",
		zap.String("mode", status.Mode),
		zap.Bool("configured", status.IsConfigured),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		a.Close()
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(
		middleware.Recovery(logger),
		middleware.RequestLogger(logger),
		middleware.CORS(cfg.Server.CORSAllowedOrigins),
	)
	if !cfg.IsProduction() {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routes.SetupRoutes(
		router,
		middleware.Session(sessions, cfg.Auth.CookieName),
		middleware.NewGate(sessions, cfg.Auth.CookieName),
		middleware.NewRateLimiter(cfg.Server.RateLimitRPM),
		handlers.NewAuthHandler(otp, sessions, handlers.CookieOptions{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure || cfg.IsProduction(),
		}, cfg.IsProduction()),
		handlers.NewAdminHandler(emails, users, cfg.Environment, cfg.IsProduction()),
		handlers.NewDebugHandler(users),
		handlers.NewPostHandler(posts, storage),
	)
	a.Router = router
	return a, nil
}

// Close releases database and cache connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) openStore(ctx context.Context) (*repositories.Repositories, error) {
	cfg := a.Config
	backend := cfg.StoreBackend()
	a.Logger.Info("opening store", zap.String("backend", backend))

	switch backend {
	case config.BackendPostgres:
		db, err := repositories.OpenPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if cfg.Database.Migrate {
			if err := repositories.Migrate(ctx, db); err != nil {
				return nil, err
			}
		}
		return repositories.NewPostgres(db), nil

	case config.BackendSupabase:
		if cfg.Supabase.ServiceRoleKey == "" {
			a.Logger.Warn("supabase service role key missing, falling back to anon key")
		}
		return supabase.NewClient(cfg.Supabase.URL, cfg.SupabaseKey(), cfg.Server.RequestTimeout).Repositories(), nil

	default:
		if cfg.IsProduction() {
			a.Logger.Warn("no database configured, using in-memory store")
		}
		store := memory.NewStore()
		for _, su := range cfg.SeedUsers {
			role := su.Role
			if !authz.IsValid(role) {
				role = authz.RolePending
			}
			store.AddUser(models.User{Email: su.Email, Role: role}, su.DisplayName)
		}
		return store.Repositories(), nil
	}
}

// openChallenges prefers Redis for active challenges. Without it the store backend keeps
// them, and a store that cannot (Supabase) falls back to process memory.
func (a *App) openChallenges(ctx context.Context, repos *repositories.Repositories) error {
	if a.Config.ChallengeBackend() == config.BackendRedis {
		client, err := cache.NewRedisClient(ctx, a.Config.Redis.URL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		repos.Challenges = cache.NewRedisChallengeStore(client, 0)
		return nil
	}
	if repos.Challenges == nil {
		a.Logger.Warn("no shared challenge store, OTP challenges are kept in process memory")
		repos.Challenges = memory.NewStore().Repositories().Challenges
	}
	return nil
}
