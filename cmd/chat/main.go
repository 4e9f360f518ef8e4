package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"gptbot/internal/bridge"
	"gptbot/internal/chat"
	"gptbot/internal/config"
	"gptbot/internal/console"
	"gptbot/internal/history"
	"gptbot/internal/ledger"
	"gptbot/internal/llm"
	"gptbot/internal/logging"
)

type flags struct {
	model       string
	userID      int64
	temperature float64
	maxTokens   int
	system      string
	once        bool
}

func main() {
	if err := run(); err != nil {
		color.Red("Ошибка: %v", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	cfg, err := config.New()
	if err != nil {
		return err
	}

	var f flags
	flagSet := pflag.NewFlagSet("chat", pflag.ContinueOnError)
	flagSet.StringVar(&f.model, "model", cfg.OpenAIModel, "model name (default from OPENAI_MODEL)")
	flagSet.Int64Var(&f.userID, "user", 0, "user id the exchanges are accounted under")
	flagSet.Float64Var(&f.temperature, "temperature", -1, "sampling temperature 0.0-2.0; skips the prompt when set")
	flagSet.IntVar(&f.maxTokens, "max-tokens", 0, "max tokens in the answer; skips the prompt when set")
	flagSet.StringVar(&f.system, "system", "", "system message; skips the prompt when set")
	flagSet.BoolVar(&f.once, "once", false, "exit after the first answer")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logs go to stderr at warn unless configured otherwise; the terminal is
	// for the conversation.
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger, closeLog, err := logging.New(logging.Options{Level: level, Format: cfg.LogFormat, Output: cfg.LogOutput})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := console.NewPrompter(os.Stdin, os.Stdout)
	req, err := ask(p, f, flagSet)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	return converse(ctx, cfg, f, req, p, logger)
}

// ask runs the questionnaire, taking answers already given as flags.
func ask(p *console.Prompter, f flags, flagSet *pflag.FlagSet) (console.Request, error) {
	if !flagSet.Changed("temperature") && !flagSet.Changed("max-tokens") && !flagSet.Changed("system") {
		return console.Ask(p, f.model)
	}

	var (
		req console.Request
		err error
	)
	if req.Message, err = p.Message(); err != nil {
		return req, err
	}
	req.Temperature = f.temperature
	if !flagSet.Changed("temperature") {
		if req.Temperature, err = p.Temperature(); err != nil {
			return req, err
		}
	} else if f.temperature < console.TemperatureMin || f.temperature > console.TemperatureMax {
		return req, fmt.Errorf("--temperature must be within %.1f..%.1f", console.TemperatureMin, console.TemperatureMax)
	}
	req.MaxTokens = f.maxTokens
	if !flagSet.Changed("max-tokens") {
		if req.MaxTokens, err = p.MaxTokens(); err != nil {
			return req, err
		}
	} else if f.maxTokens <= 0 {
		return req, fmt.Errorf("--max-tokens must be positive")
	}
	req.SystemMessage = f.system
	if !flagSet.Changed("system") {
		if req.SystemMessage, err = p.SystemMessage(); err != nil {
			return req, err
		}
	}
	return req, nil
}

func converse(ctx context.Context, cfg *config.Config, f flags, req console.Request, p *console.Prompter, logger *slog.Logger) error {
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

	pool := bridge.NewPool(1)
	defer pool.Close()
	sched := bridge.NewScheduler(logger)
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("scheduler stopped: %v", err)
		}
	}()

	orch := chat.New(history.NewManager(), usage, gw, pool, sched, chat.Options{
		Model:        f.model,
		SystemPrompt: req.SystemMessage,
		Generation:   req.Generation(),
		Pricing:      ledger.Pricing{PromptPerMillion: cfg.PromptCostPer1M, CompletionPerMillion: cfg.CompletionCostPer1M},
		Sequencing:   chat.SequencingSerialized,
	}, logger)

	session := console.NewSession(p, orch, f.userID, req.Temperature)
	ok, err := session.Send(ctx, req.Message)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if f.once {
		if !ok {
			return errors.New("запрос к модели не выполнен")
		}
		return nil
	}
	return session.Loop(ctx)
}
