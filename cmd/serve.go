package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskforce-bot.com/taskforce-bot/internal/clock"
	config "taskforce-bot.com/taskforce-bot/internal/configs"
	"taskforce-bot.com/taskforce-bot/internal/deadline"
	httpapi "taskforce-bot.com/taskforce-bot/internal/http"
	"taskforce-bot.com/taskforce-bot/internal/notify"
	repository "taskforce-bot.com/taskforce-bot/internal/repositories"
	"taskforce-bot.com/taskforce-bot/internal/services"
	"taskforce-bot.com/taskforce-bot/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and deadline scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		zlog, err := logger.New(cfg.LogLevel)
		if err != nil {
			log.Fatalf("logger init failed: %v", err)
		}
		defer func() { _ = zlog.Sync() }()

		database := config.New(cfg.DatabaseDSN)
		redisClient := config.NewRedisClient(cfg.RedisAddr)
		defer redisClient.Close()

		store := repository.NewStore(database)
		notifier := notify.NewRedisNotifier(redisClient, cfg.RedisOutboxKey)
		clk := clock.System()
		parser := deadline.NewParser()

		lifecycle := services.NewLifecycleService(store, notifier, clk, zlog)
		tasks := services.NewTaskService(
			store, services.NewFanoutResolver(), notifier, clk, zlog, cfg.BroadcastChatID)
		users := services.NewUserService(store, clk, zlog)
		reports := services.NewReportService(store, notifier, clk, zlog)

		cadence := services.SchedulerCadence{
			Warn48h:   cfg.Warn48hInterval,
			Warn24h:   cfg.Warn24hInterval,
			Warn1h:    cfg.Warn1hInterval,
			Overdue:   cfg.OverdueInterval,
			Reminders: cfg.ReminderInterval,
		}
		if cfg.WeeklyDigestEnabled {
			cadence.Digest = services.DefaultCadence().Digest
		}

		scheduler := services.NewDeadlineScheduler(
			store, lifecycle, reports, notifier, clk, zlog, cadence)
		scheduler.Start()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e := echo.New()
		e.HideBanner = true
		handler := httpapi.NewHandler(tasks, lifecycle, users, reports, parser, clk)
		httpapi.Register(e, handler, cfg.RateLimit)

		go func() {
			zlog.Info("http server listening", zap.String("addr", cfg.AppURL))
			if err := e.Start(cfg.AppURL); err != nil {
				zlog.Info("http server stopped", zap.Error(err))
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
		scheduler.Shutdown(shutdownCtx)

		zlog.Info("shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
