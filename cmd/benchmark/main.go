package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"gptbot/internal/benchmark"
	"gptbot/internal/bridge"
	"gptbot/internal/config"
	"gptbot/internal/ledger"
	"gptbot/internal/llm"
	"gptbot/internal/logging"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	if err := run(); err != nil {
		color.Red("❌ %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	var (
		model     string
		question  string
		temps     []float64
		limits    []int
		fixedTemp float64
		fixedMax  int
		parallel  int
		timeout   time.Duration
	)
	flagSet := pflag.NewFlagSet("benchmark", pflag.ContinueOnError)
	flagSet.StringVar(&model, "model", cfg.OpenAIModel, "model under test")
	flagSet.StringVar(&question, "question", "Объясни, как работает сборщик мусора в Go, и приведи пример кода.", "question sent for every variant")
	flagSet.Float64SliceVar(&temps, "temperatures", []float64{0.0, 0.3, 0.7, 1.0, 1.2}, "temperature values to sweep")
	flagSet.IntSliceVar(&limits, "max-tokens", []int{100, 500, 1000, 2500}, "max_tokens values to sweep")
	flagSet.Float64Var(&fixedTemp, "fixed-temperature", 0.7, "temperature used during the max_tokens sweep")
	flagSet.IntVar(&fixedMax, "fixed-max-tokens", 5000, "max_tokens used during the temperature sweep")
	flagSet.IntVar(&parallel, "parallel", 3, "requests in flight at once")
	flagSet.DurationVar(&timeout, "timeout", 90*time.Second, "per-request timeout")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput})
	if err != nil {
		return err
	}
	defer closeLog()

	gw, err := llm.NewGateway(cfg, logger)
	if err != nil {
		return err
	}
	pool := bridge.NewPool(parallel)
	defer pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &benchmark.Runner{
		Gateway: gw,
		Pool:    pool,
		Model:   model,
		Pricing: ledger.Pricing{PromptPerMillion: cfg.PromptCostPer1M, CompletionPerMillion: cfg.CompletionCostPer1M},
		Timeout: timeout,
	}

	color.Cyan("🚀 Benchmark: model %s, %d in parallel", model, pool.Size())
	color.Cyan("❓ %s", question)

	sweeps := []struct {
		title    string
		variants []benchmark.Variant
	}{
		{"🌡️ Temperature", benchmark.TemperatureSweep(temps, fixedMax)},
		{"🔢 Max Tokens", benchmark.MaxTokensSweep(limits, fixedTemp)},
	}
	for _, sw := range sweeps {
		if len(sw.variants) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", sw.title)
		started := time.Now()
		results := runner.Run(ctx, question, sw.variants)
		printResults(results)
		s, err := benchmark.Summarize(sw.variants[0].Parameter, results)
		if err != nil {
			color.Red("  ⚠️ %v", err)
			continue
		}
		printSummary(s, time.Since(started))
	}
	return nil
}

func printResults(results []benchmark.Result) {
	green := color.New(color.FgGreen)
	for _, r := range results {
		if r.Err != nil {
			color.Red("  ❌ %s=%g: %v", r.Variant.Parameter, r.Variant.Value, r.Err)
			continue
		}
		tokens := 0
		if r.Usage != nil {
			tokens = r.Usage.TotalTokens
		}
		green.Printf("  ✅ %s=%g", r.Variant.Parameter, r.Variant.Value)
		fmt.Printf(": %d tokens, $%.6f, %v, %d chars\n", tokens, r.Cost.Total, r.Duration.Round(time.Millisecond), len([]rune(r.Text)))
		fmt.Printf("     %s\n", preview(r.Text, 120))
	}
}

func printSummary(s benchmark.Summary, total time.Duration) {
	yellow := color.New(color.FgYellow)
	yellow.Printf("\n  📊 %s: %d ok, %d failed, wall time %v\n", s.Parameter, s.Tests, s.Failed, total.Round(time.Millisecond))
	fmt.Printf("  Avg Tokens: %d\n", s.AvgTokens)
	fmt.Printf("  Avg Cost: $%.6f\n", s.AvgCost)
	fmt.Printf("  Avg Duration: %v\n", s.AvgDuration.Round(time.Millisecond))
	fmt.Printf("  Avg Length: %d chars\n", s.AvgLength)
	fmt.Printf("  Cost Range: $%.6f - $%.6f\n", s.MinCost, s.MaxCost)
	fmt.Printf("  Duration Range: %v - %v\n", s.MinDuration.Round(time.Millisecond), s.MaxDuration.Round(time.Millisecond))
	fmt.Printf("  Best Value (chars/cost): %g\n", s.BestValue)
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
