package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"qrattend/impl/auth"
	"qrattend/impl/core"
	"qrattend/internal/alert"
	"qrattend/internal/config"
	"qrattend/internal/database"
	"qrattend/internal/http-server/api"
	"qrattend/internal/locator"
	"qrattend/lib/logger"
	"qrattend/lib/sl"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

const logFileName = "qrattend.log"

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	// secrets may live in .env next to the binary
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))

	if conf.Telegram.Enabled {
		tg, err := alert.NewTelegram(conf.Telegram.APIKey, conf.Telegram.ChatId)
		if err != nil {
			lg.Error("telegram alerts disabled", sl.Err(err))
		} else {
			var level slog.Level
			if err = level.UnmarshalText([]byte(conf.Telegram.MinLevel)); err != nil {
				level = slog.LevelError
			}
			lg = logger.WithAlerts(lg, tg, level)
		}
	}
	lg.Info("starting qrattend", slog.String("config", *configPath), slog.String("env", conf.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store database.Store
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	mongo, err := database.NewMongoClient(connectCtx, conf)
	cancel()
	if err != nil {
		lg.Error("mongo client", sl.Err(err))
		os.Exit(1)
	}
	if mongo != nil {
		lg.With(
			slog.String("host", conf.Mongo.Host),
			slog.String("database", conf.Mongo.Database),
		).Info("mongo client connected")
		store = mongo
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongo.Close(closeCtx)
		}()
	} else {
		lg.Warn("mongo disabled, using in-memory storage")
		store = database.NewMemory()
	}

	handler := core.New(
		store,
		auth.NewTokens(conf.Auth.JWTSecret, conf.Auth.TokenTTL),
		auth.NewPasswords(conf.Auth.BcryptCost),
		locator.New(conf.Geo, lg),
		lg,
	)

	if err = api.New(ctx, conf, lg, handler); err != nil {
		lg.Error("server error", sl.Err(err))
	}
	lg.Info("qrattend stopped")
}
