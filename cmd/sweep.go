package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"taskforce-bot.com/taskforce-bot/internal/clock"
	config "taskforce-bot.com/taskforce-bot/internal/configs"
	"taskforce-bot.com/taskforce-bot/internal/constants"
	"taskforce-bot.com/taskforce-bot/internal/notify"
	repository "taskforce-bot.com/taskforce-bot/internal/repositories"
	"taskforce-bot.com/taskforce-bot/internal/services"
	"taskforce-bot.com/taskforce-bot/pkg/logger"
)

var sweepHorizon string

// sweepCmd runs one deadline sweep and exits, for cron-style operation
// alongside or instead of the in-process scheduler.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a single deadline sweep and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		var horizon constants.Horizon
		switch sweepHorizon {
		case "48h":
			horizon = constants.Horizon48h
		case "24h":
			horizon = constants.Horizon24h
		case "1h":
			horizon = constants.Horizon1h
		case "overdue":
			horizon = constants.HorizonOverdue
		default:
			return fmt.Errorf("unknown horizon %q (want 48h, 24h, 1h or overdue)", sweepHorizon)
		}

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

		lifecycle := services.NewLifecycleService(store, notifier, clk, zlog)
		scheduler := services.NewDeadlineScheduler(
			store, lifecycle, nil, notifier, clk, zlog, services.SchedulerCadence{})

		report, err := scheduler.RunSweep(context.Background(), horizon)
		if err != nil {
			return err
		}

		fmt.Printf("horizon=%s scanned=%d notified=%d escalated=%d\n",
			report.Horizon, report.Scanned, report.Notified, report.Escalated)
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepHorizon, "horizon", "overdue", "horizon to sweep: 48h, 24h, 1h or overdue")
	rootCmd.AddCommand(sweepCmd)
}
