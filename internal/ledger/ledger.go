// Package ledger keeps the durable, append-only record of token usage per
// user. Usage accounting is a side channel of the conversation: writes are
// best effort and reads fail open, and every operation reports its outcome
// as a Result so callers decide explicitly what to swallow.
package ledger

import (
	"context"
	"fmt"
	"time"
)

// Summary is the per-user aggregate computed on demand.
type Summary struct {
	PromptTokens     int64
	CompletionTokens int64
}

// UserUsage aggregates one user's rows over a time window.
type UserUsage struct {
	UserID           int64
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Requests         int64
}

// Ledger is the usage store consumed by the orchestrator and the report job.
type Ledger interface {
	EnsureSchema(ctx context.Context) Result
	Record(ctx context.Context, userID int64, prompt, completion, total int) Result
	Summarize(ctx context.Context, userID int64) (Summary, Result)
	UsageSince(ctx context.Context, since time.Time) ([]UserUsage, Result)
}

type Severity int

const (
	SeverityOK Severity = iota
	// SeverityNonFatal failures are logged by the caller and otherwise ignored.
	SeverityNonFatal
	// SeverityFatal failures must stop the process.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityNonFatal:
		return "non-fatal"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Result is the outcome of a ledger operation.
type Result struct {
	Severity Severity
	Err      error
}

func okResult() Result { return Result{} }

func nonFatal(err error) Result { return Result{Severity: SeverityNonFatal, Err: err} }

func fatal(err error) Result { return Result{Severity: SeverityFatal, Err: err} }

func (r Result) OK() bool { return r.Severity == SeverityOK }

func (r Result) Fatal() bool { return r.Severity == SeverityFatal }

// SchemaInitError means the usage store could not be prepared at startup.
type SchemaInitError struct {
	Path string
	Err  error
}

func (e *SchemaInitError) Error() string {
	return fmt.Sprintf("init usage store %s: %v", e.Path, e.Err)
}

func (e *SchemaInitError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed read or write of usage rows.
type PersistenceError struct {
	Op     string
	UserID int64
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("usage %s for user %d: %v", e.Op, e.UserID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
