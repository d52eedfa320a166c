package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sourcegraph/conc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"dupebot/internal/pkg/administrator"
	"dupebot/internal/pkg/config"
	"dupebot/internal/pkg/discord"
	"dupebot/internal/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dupebot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", "", "path to a config file (env, yaml, json or toml)")
	pflag.String("log-level", "info", "log level: debug, info, warn or error")
	pflag.Parse()

	// A missing .env is fine; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	if err := v.BindPFlag("LOG_LEVEL", pflag.Lookup("log-level")); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	cfg, err := config.LoadConfigWith(v, *configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	bot, err := discord.NewBot(cfg.DiscordToken, cfg.OutboundRate, cfg.OutboundBurst)
	if err != nil {
		return err
	}

	admin, err := administrator.New(cfg, bot)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	admin.Start(ctx)

	var wg conc.WaitGroup
	if cfg.ServerPort != "" {
		wg.Go(func() {
			if err := admin.StartService(ctx, cfg.ServerPort); err != nil {
				logger.Log.Error("Admin service failed", zap.Error(err))
			}
		})
	}

	runErr := bot.Run(ctx, admin)
	if runErr != nil {
		logger.Log.Error("Discord connection failed", zap.Error(runErr))
	} else {
		logger.Log.Info("Shutdown signal received")
	}

	// Stop everything else if the gateway gave up on its own.
	stop()
	wg.Wait()
	admin.Stop()

	logger.Log.Info("dupebot shutdown complete")
	return runErr
}
