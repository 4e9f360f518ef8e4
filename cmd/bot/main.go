package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gptbot/internal/auth"
	"gptbot/internal/bridge"
	"gptbot/internal/chat"
	"gptbot/internal/config"
	"gptbot/internal/history"
	"gptbot/internal/ledger"
	"gptbot/internal/llm"
	"gptbot/internal/logging"
	"gptbot/internal/report"
	"gptbot/internal/scheduler"
	"gptbot/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, closeLog, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput})
	if err != nil {
		log.Fatalf("failed to init logging: %v", err)
	}

	err = run(cfg, logger)
	if err != nil {
		logger.Error("bot stopped", "error", err)
	}
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	usage, err := ledger.Open(cfg.TokenUsageDBPath, logger)
	if err != nil {
		return err
	}
	defer usage.Close()
	if res := usage.EnsureSchema(ctx); res.Fatal() {
		return res.Err
	}

	gw, err := llm.NewGateway(cfg, logger)
	if err != nil {
		return err
	}

	pool := bridge.NewPool(cfg.WorkerPoolSize)
	defer pool.Close()
	sched := bridge.NewScheduler(logger)

	pricing := ledger.Pricing{PromptPerMillion: cfg.PromptCostPer1M, CompletionPerMillion: cfg.CompletionCostPer1M}
	orch := chat.New(history.NewManager(), usage, gw, pool, sched, chat.Options{
		Model:        cfg.BotOpenAIModel,
		SystemPrompt: readSystemPrompt(cfg.SystemPromptPath, logger),
		Pricing:      pricing,
		Sequencing:   sequencing(cfg.UserSequencing),
	}, logger)

	authSvc := auth.New(cfg.AdminUserID, cfg.AllowedUsers)
	bot, err := telegram.New(cfg.Token(), authSvc, orch, pricing, logger)
	if err != nil {
		return err
	}

	if cfg.AdminUserID != 0 {
		cron := scheduler.New(logger)
		if err := cron.Add("daily_usage_report", cfg.DailyReportSpec, func(ctx context.Context) error {
			d, err := report.Build(ctx, usage, pricing, time.Now())
			if err != nil {
				return err
			}
			return bot.Notify(cfg.AdminUserID, d.HTML())
		}); err != nil {
			return err
		}
		cron.Start()
		defer cron.Stop()
	}

	schedDone := make(chan error, 1)
	go func() { schedDone <- sched.Run(ctx) }()

	logger.Info("bot started",
		"provider", cfg.LLMProvider,
		"model", cfg.BotOpenAIModel,
		"pool_size", pool.Size(),
		"sequencing", cfg.UserSequencing,
		"allowlist", authSvc.Restricted(),
	)
	bot.Start(ctx)

	if err := <-schedDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("bot stopped")
	return nil
}

func sequencing(s config.Sequencing) chat.Sequencing {
	if s == config.SequencingSerialized {
		return chat.SequencingSerialized
	}
	return chat.SequencingConcurrent
}

func readSystemPrompt(path string, logger *slog.Logger) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("system prompt file not found or unreadable", "path", path, "error", err)
		return ""
	}
	return string(data)
}
