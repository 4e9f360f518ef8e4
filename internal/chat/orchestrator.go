// Package chat drives one inbound message through the conversation:
// context read, completion call, context commit, usage accounting, reply.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gptbot/internal/bridge"
	"gptbot/internal/history"
	"gptbot/internal/ledger"
	"gptbot/internal/llm"
)

// Sequencing decides what happens when a user sends a message while an
// earlier one is still waiting for the model.
type Sequencing int

const (
	// SequencingConcurrent dispatches every message at once. Both requests
	// see the same context and whichever resolves last appends last.
	SequencingConcurrent Sequencing = iota
	// SequencingSerialized queues a user's messages until the one in
	// flight has been committed.
	SequencingSerialized
)

type ReplyKind int

const (
	// ReplyThinking is an interim notice sent before the completion call.
	ReplyThinking ReplyKind = iota
	ReplyAnswer
	ReplyReset
	ReplyFailure
	// ReplyIgnored carries no text; the input was blank.
	ReplyIgnored
)

type Reply struct {
	Kind  ReplyKind
	Text  string
	Usage *llm.Usage
}

// Final reports whether r ends the handling of its message.
func (r Reply) Final() bool { return r.Kind != ReplyThinking }

type Inbound struct {
	UserID int64
	Text   string
}

// Emitter receives replies on the scheduler goroutine. It must not block.
type Emitter func(Reply)

type Options struct {
	Model        string
	SystemPrompt string
	Generation   llm.Options
	Pricing      ledger.Pricing
	Sequencing   Sequencing
}

type pending struct {
	ctx  context.Context
	in   Inbound
	emit Emitter
}

// Orchestrator owns the conversation store. All of its state is touched
// only from tasks running on sched.
type Orchestrator struct {
	store   history.Store
	ledger  ledger.Ledger
	gateway llm.Gateway
	pool    *bridge.Pool
	sched   *bridge.Scheduler
	opts    Options
	logger  *slog.Logger

	inflight map[int64]int
	waiting  map[int64][]pending
}

func New(store history.Store, l ledger.Ledger, gw llm.Gateway, pool *bridge.Pool, sched *bridge.Scheduler, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Pricing == (ledger.Pricing{}) {
		opts.Pricing = ledger.DefaultPricing
	}
	return &Orchestrator{
		store:    store,
		ledger:   l,
		gateway:  gw,
		pool:     pool,
		sched:    sched,
		opts:     opts,
		logger:   logger.With("component", "chat"),
		inflight: make(map[int64]int),
		waiting:  make(map[int64][]pending),
	}
}

// Submit queues the message on the scheduler. It is safe to call from any
// goroutine and reports false if the scheduler has stopped.
func (o *Orchestrator) Submit(ctx context.Context, in Inbound, emit Emitter) bool {
	return o.sched.Post(func() { o.handle(ctx, in, emit) })
}

func (o *Orchestrator) handle(ctx context.Context, in Inbound, emit Emitter) {
	if o.opts.Sequencing == SequencingSerialized && o.inflight[in.UserID] > 0 {
		o.waiting[in.UserID] = append(o.waiting[in.UserID], pending{ctx: ctx, in: in, emit: emit})
		o.logger.Debug("message queued behind in-flight request",
			"user_id", in.UserID,
			"queued", len(o.waiting[in.UserID]),
		)
		return
	}

	text := strings.TrimSpace(in.Text)
	if IsReset(text) {
		o.store.Clear(in.UserID)
		o.logger.Info("context cleared", "user_id", in.UserID)
		emit(Reply{Kind: ReplyReset, Text: ResetText})
		return
	}
	if text == "" {
		emit(Reply{Kind: ReplyIgnored})
		return
	}

	o.dispatch(ctx, in.UserID, text, emit)
}

func (o *Orchestrator) dispatch(ctx context.Context, userID int64, text string, emit Emitter) {
	reqID := uuid.NewString()
	turns := o.requestTurns(userID, text)
	log := o.logger.With("request_id", reqID, "user_id", userID)
	log.Debug("dispatching completion", "turns", len(turns), "model", o.opts.Model)

	emit(Reply{Kind: ReplyThinking, Text: ThinkingText})

	o.inflight[userID]++
	started := time.Now()
	model, gen := o.opts.Model, o.opts.Generation
	f := bridge.Invoke(ctx, o.pool, func(ctx context.Context) (llm.Completion, error) {
		return o.gateway.Complete(ctx, turns, model, gen)
	})
	bridge.Await(o.sched, f, func(c llm.Completion, err error) {
		defer o.release(userID)
		if err != nil {
			log.Error("completion failed", "error", err, "elapsed", time.Since(started))
			emit(Reply{Kind: ReplyFailure, Text: FailureText})
			return
		}
		o.commit(ctx, log, userID, text, c)
		emit(Reply{Kind: ReplyAnswer, Text: Truncate(c.Text), Usage: c.Usage})
	})
}

// requestTurns builds system prompt + stored context + the new user turn.
func (o *Orchestrator) requestTurns(userID int64, text string) []llm.Turn {
	ctxTurns := o.store.Get(userID)
	turns := make([]llm.Turn, 0, len(ctxTurns)+2)
	if o.opts.SystemPrompt != "" {
		turns = append(turns, llm.Turn{Role: llm.RoleSystem, Content: o.opts.SystemPrompt})
	}
	turns = append(turns, ctxTurns...)
	return append(turns, llm.Turn{Role: llm.RoleUser, Content: text})
}

func (o *Orchestrator) commit(ctx context.Context, log *slog.Logger, userID int64, text string, c llm.Completion) {
	o.store.AppendExchange(userID, text, c.Text)

	if c.Usage == nil {
		log.Info("completion succeeded without usage report")
		return
	}
	log.Info("completion succeeded",
		"prompt_tokens", c.Usage.PromptTokens,
		"completion_tokens", c.Usage.CompletionTokens,
		"total_tokens", c.Usage.TotalTokens,
	)
	res := o.ledger.Record(ctx, userID, c.Usage.PromptTokens, c.Usage.CompletionTokens, c.Usage.TotalTokens)
	switch res.Severity {
	case ledger.SeverityOK:
	case ledger.SeverityNonFatal:
		log.Warn("usage not recorded", "error", res.Err)
	default:
		log.Error("usage store failure", "severity", res.Severity.String(), "error", res.Err)
	}
}

func (o *Orchestrator) release(userID int64) {
	o.inflight[userID]--
	if o.inflight[userID] > 0 {
		return
	}
	delete(o.inflight, userID)

	// Resets and blank messages finish synchronously, so keep draining
	// until something is in flight again.
	for o.inflight[userID] == 0 {
		queue := o.waiting[userID]
		if len(queue) == 0 {
			delete(o.waiting, userID)
			return
		}
		next := queue[0]
		o.waiting[userID] = queue[1:]
		o.handle(next.ctx, next.in, next.emit)
	}
}

// Stats is the usage summary shown to a user.
type Stats struct {
	PromptTokens     int64
	CompletionTokens int64
	Cost             ledger.Cost
}

func (s Stats) TotalTokens() int64 { return s.PromptTokens + s.CompletionTokens }

// Stats reads the user's totals from the ledger. A read failure is logged
// and reported as zero usage.
func (o *Orchestrator) Stats(ctx context.Context, userID int64) Stats {
	sum, res := o.ledger.Summarize(ctx, userID)
	if !res.OK() {
		o.logger.Warn("usage stats unavailable", "user_id", userID, "error", res.Err)
	}
	return Stats{
		PromptTokens:     sum.PromptTokens,
		CompletionTokens: sum.CompletionTokens,
		Cost:             o.opts.Pricing.Cost(sum.PromptTokens, sum.CompletionTokens),
	}
}
