// Package benchmark sends one question to a model under several sampling
// settings in parallel and compares latency, token use and cost.
package benchmark

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gptbot/internal/bridge"
	"gptbot/internal/ledger"
	"gptbot/internal/llm"
)

// Variant is one sampling setting under test.
type Variant struct {
	Parameter string
	Value     float64
	Options   llm.Options
}

// TemperatureSweep returns one variant per temperature with a fixed
// max_tokens budget.
func TemperatureSweep(temps []float64, maxTokens int) []Variant {
	out := make([]Variant, 0, len(temps))
	for _, t := range temps {
		out = append(out, Variant{
			Parameter: "temperature",
			Value:     t,
			Options:   llm.Options{Temperature: llm.Float(t), MaxOutputTokens: llm.Int(maxTokens)},
		})
	}
	return out
}

// MaxTokensSweep returns one variant per max_tokens value at a fixed
// temperature.
func MaxTokensSweep(limits []int, temperature float64) []Variant {
	out := make([]Variant, 0, len(limits))
	for _, n := range limits {
		out = append(out, Variant{
			Parameter: "max_tokens",
			Value:     float64(n),
			Options:   llm.Options{Temperature: llm.Float(temperature), MaxOutputTokens: llm.Int(n)},
		})
	}
	return out
}

type Result struct {
	Variant  Variant
	Text     string
	Usage    *llm.Usage
	Cost     ledger.Cost
	Duration time.Duration
	Err      error
}

// Runner fans variants out over a worker pool.
type Runner struct {
	Gateway llm.Gateway
	Pool    *bridge.Pool
	Model   string
	Pricing ledger.Pricing
	// Timeout bounds each request. Zero means no per-request limit.
	Timeout time.Duration
}

// Run returns one Result per variant, sorted by variant value. Failed
// variants carry Err and are kept in the output.
func (r *Runner) Run(ctx context.Context, question string, variants []Variant) []Result {
	turns := []llm.Turn{{Role: llm.RoleUser, Content: question}}

	type pending struct {
		v       Variant
		started time.Time
		f       *bridge.Future[llm.Completion]
	}
	inflight := make([]pending, 0, len(variants))
	for _, v := range variants {
		opts := v.Options
		started := time.Now()
		f := bridge.Invoke(ctx, r.Pool, func(ctx context.Context) (llm.Completion, error) {
			if r.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, r.Timeout)
				defer cancel()
			}
			return r.Gateway.Complete(ctx, turns, r.Model, opts)
		})
		inflight = append(inflight, pending{v: v, started: started, f: f})
	}

	results := make([]Result, 0, len(inflight))
	for _, p := range inflight {
		c, err := p.f.Wait(context.WithoutCancel(ctx))
		res := Result{Variant: p.v, Duration: time.Since(p.started), Err: err}
		if err == nil {
			res.Text = c.Text
			res.Usage = c.Usage
			if c.Usage != nil {
				res.Cost = r.Pricing.Cost(int64(c.Usage.PromptTokens), int64(c.Usage.CompletionTokens))
			}
		}
		results = append(results, res)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Variant.Value < results[j].Variant.Value })
	return results
}

// Summary aggregates the successful results of one sweep.
type Summary struct {
	Parameter   string
	Tests       int
	Failed      int
	AvgTokens   int
	AvgLength   int
	AvgCost     float64
	AvgDuration time.Duration
	MinCost     float64
	MaxCost     float64
	MinDuration time.Duration
	MaxDuration time.Duration
	// BestValue is the variant value with the most answer runes per dollar.
	BestValue float64
}

func Summarize(parameter string, results []Result) (Summary, error) {
	s := Summary{Parameter: parameter}
	var (
		totalCost     float64
		totalDuration time.Duration
		totalTokens   int
		totalLength   int
		bestRatio     = -1.0
	)
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
			continue
		}
		length := len([]rune(r.Text))
		cost := r.Cost.Total
		if s.Tests == 0 || cost < s.MinCost {
			s.MinCost = cost
		}
		if s.Tests == 0 || cost > s.MaxCost {
			s.MaxCost = cost
		}
		if s.Tests == 0 || r.Duration < s.MinDuration {
			s.MinDuration = r.Duration
		}
		if s.Tests == 0 || r.Duration > s.MaxDuration {
			s.MaxDuration = r.Duration
		}
		s.Tests++
		totalCost += cost
		totalDuration += r.Duration
		totalLength += length
		if r.Usage != nil {
			totalTokens += r.Usage.TotalTokens
		}

		// Floor the cost so free or unreported usage does not divide by zero.
		ratio := float64(length) / max(cost*1e6, 0.1)
		if ratio > bestRatio {
			bestRatio = ratio
			s.BestValue = r.Variant.Value
		}
	}
	if s.Tests == 0 {
		return s, fmt.Errorf("all %d %s tests failed", s.Failed, parameter)
	}
	s.AvgTokens = totalTokens / s.Tests
	s.AvgLength = totalLength / s.Tests
	s.AvgCost = totalCost / float64(s.Tests)
	s.AvgDuration = totalDuration / time.Duration(s.Tests)
	return s, nil
}
