package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/app"
	"github.com/Spok95/drillcert/internal/config"
	"github.com/Spok95/drillcert/internal/db"
	"github.com/Spok95/drillcert/internal/engine"
	"github.com/Spok95/drillcert/internal/jobs"
	"github.com/Spok95/drillcert/internal/logging"
	"github.com/Spok95/drillcert/internal/notify"
	"github.com/Spok95/drillcert/internal/observability"
)

var version = "dev"

func main() {
	// Загрузка переменных окружения
	if err := godotenv.Load(); err != nil {
		log.Println("Не удалось загрузить .env файл, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, version)
	if err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpen)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer func() { _ = database.Close() }()

	if err := db.Migrate(ctx, database); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	ecfg := engine.Config{Location: cfg.Location, DateLayout: cfg.DateLayout}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, logger.Named("notify"))
		if err != nil {
			// без уведомлений сервис работает, выдача от них не зависит
			logger.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			ecfg.Notifier = tg
		}
	}
	svc := engine.New(database, logger.Named("engine"), ecfg)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty: operator id is taken from X-Operator-ID header")
	}
	app.StartHTTP(ctx, cfg.HTTPAddr, app.Deps{
		DB:        database,
		Engine:    svc,
		Log:       logger.Named("http"),
		JWTSecret: cfg.JWTSecret,
		Location:  cfg.Location,
	})

	runner := jobs.New(ctx, logger.Named("jobs"))
	runner.Every(cfg.StatsInterval, "certification_gauges", jobs.RefreshCertificationGauges(svc))

	logger.Info("certd started", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env), zap.String("version", version))
	<-ctx.Done()
	logger.Info("shutting down")
	runner.Wait()
}
