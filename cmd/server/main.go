package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"token-auth-service/internal/app"
	"token-auth-service/internal/config"
	"token-auth-service/internal/database"
	"token-auth-service/internal/health"
	"token-auth-service/internal/http/handler"
	"token-auth-service/internal/http/router"
	"token-auth-service/internal/mailer"
	"token-auth-service/internal/observability"
	"token-auth-service/internal/repository"
	"token-auth-service/internal/security"
	"token-auth-service/internal/service"
	"token-auth-service/internal/tools/common"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:   "token-auth-service",
		Short: "Bearer token authentication service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.LoadEnvFile(envFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional env file loaded before config")
	root.AddCommand(newSeedCommand())
	return root
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, loggerProvider, err := observability.NewLogger(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(logger)

	runtime, err := observability.InitRuntime(ctx, cfg, logger, loggerProvider)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}

	readiness := health.NewProbeRunner(2*time.Second, 3*time.Second)
	readiness.Register(health.CheckerFunc(func(ctx context.Context) health.CheckResult {
		res := health.CheckResult{Name: "database", Healthy: true}
		if err := sqlDB.PingContext(ctx); err != nil {
			res.Healthy = false
			res.Error = err.Error()
		}
		return res
	}))

	var negCache service.NegativeLookupCacheStore = service.NewInMemoryNegativeLookupCacheStore()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		negCache = service.NewRedisNegativeLookupCacheStore(redisClient, "token_auth")
		readiness.Register(health.CheckerFunc(func(ctx context.Context) health.CheckResult {
			res := health.CheckResult{Name: "redis", Healthy: true}
			if err := redisClient.Ping(ctx).Err(); err != nil {
				res.Healthy = false
				res.Error = err.Error()
			}
			return res
		}))
	}

	var mail service.Mailer
	switch cfg.MailerBackend {
	case "smtp":
		mail = mailer.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	default:
		mail = mailer.NewLogMailer(logger)
	}

	authService := service.NewAuthService(service.AuthServiceParams{
		Users:               repository.NewUserRepository(db),
		Tokens:              repository.NewTokenRepository(db, cfg.TokenPepper),
		Hasher:              security.NewBcryptHasher(cfg.BcryptCost),
		Mailer:              mail,
		NegativeCache:       negCache,
		NegativeCacheTTL:    cfg.NegativeCacheTTL,
		TokenPepper:         cfg.TokenPepper,
		ResetPasswordLength: cfg.ResetPasswordLength,
		Logger:              logger,
	})

	mux := router.NewRouter(router.Dependencies{
		AuthHandler:    handler.NewAuthHandler(authService, logger),
		AuthService:    authService,
		Readiness:      readiness,
		EnableOTelHTTP: cfg.EnableOTelHTTP,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	return app.New(cfg, logger, server, runtime, readiness).Run(ctx)
}

func newSeedCommand() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}

			svc := service.NewAuthService(service.AuthServiceParams{
				Users:               repository.NewUserRepository(db),
				Tokens:              repository.NewTokenRepository(db, cfg.TokenPepper),
				Hasher:              security.NewBcryptHasher(cfg.BcryptCost),
				Mailer:              mailer.NewLogMailer(slog.Default()),
				TokenPepper:         cfg.TokenPepper,
				ResetPasswordLength: cfg.ResetPasswordLength,
			})
			user, err := svc.Register(ctx, username, email, password)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Printf("created user id=%d email=%s\n", user.ID, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "plaintext password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
