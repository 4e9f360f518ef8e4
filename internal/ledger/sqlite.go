package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS token_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		prompt_tokens INTEGER NOT NULL,
		completion_tokens INTEGER NOT NULL,
		total_tokens INTEGER NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	)
`

// sqliteTimeLayout matches SQLite's datetime('now') output, so text
// comparison on created_at orders correctly.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// SQLiteLedger stores usage rows in a local SQLite database.
type SQLiteLedger struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path. The schema is not
// touched until EnsureSchema is called.
func Open(path string, logger *slog.Logger) (*SQLiteLedger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ledger")

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &SchemaInitError{Path: path, Err: fmt.Errorf("creating database directory: %w", err)}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &SchemaInitError{Path: path, Err: fmt.Errorf("opening database: %w", err)}
	}

	// One connection: pragmas apply to every statement and concurrent
	// appends queue in database/sql instead of racing for the write lock.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, &SchemaInitError{Path: path, Err: fmt.Errorf("%s: %w", pragma, err)}
		}
	}

	return &SQLiteLedger{db: db, path: path, logger: logger}, nil
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// EnsureSchema creates the usage table if it is absent. Any failure is
// fatal: the process must not start without a writable ledger.
func (l *SQLiteLedger) EnsureSchema(ctx context.Context) Result {
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fatal(&SchemaInitError{Path: l.path, Err: err})
	}
	l.logger.Info("usage store initialized", "path", l.path)
	return okResult()
}

// Record appends one usage row stamped with the insertion time.
func (l *SQLiteLedger) Record(ctx context.Context, userID int64, prompt, completion, total int) Result {
	const query = `
		INSERT INTO token_usage (user_id, prompt_tokens, completion_tokens, total_tokens)
		VALUES (?, ?, ?, ?)
	`
	if _, err := l.db.ExecContext(ctx, query, userID, prompt, completion, total); err != nil {
		return nonFatal(&PersistenceError{Op: "record", UserID: userID, Err: err})
	}

	l.logger.Debug("saved token usage",
		"user_id", userID,
		"prompt_tokens", prompt,
		"completion_tokens", completion,
		"total_tokens", total,
	)
	return okResult()
}

// Summarize returns the user's prompt and completion totals. Read failures
// yield a zero Summary with a non-fatal Result.
func (l *SQLiteLedger) Summarize(ctx context.Context, userID int64) (Summary, Result) {
	const query = `
		SELECT
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0)
		FROM token_usage
		WHERE user_id = ?
	`
	var s Summary
	if err := l.db.QueryRowContext(ctx, query, userID).Scan(&s.PromptTokens, &s.CompletionTokens); err != nil {
		return Summary{}, nonFatal(&PersistenceError{Op: "summarize", UserID: userID, Err: err})
	}
	return s, okResult()
}

// UsageSince aggregates rows created at or after since, per user, ordered
// by total tokens descending.
func (l *SQLiteLedger) UsageSince(ctx context.Context, since time.Time) ([]UserUsage, Result) {
	const query = `
		SELECT
			user_id,
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0),
			COALESCE(SUM(total_tokens), 0),
			COUNT(*)
		FROM token_usage
		WHERE created_at >= ?
		GROUP BY user_id
		ORDER BY 4 DESC, user_id ASC
	`
	rows, err := l.db.QueryContext(ctx, query, since.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return nil, nonFatal(&PersistenceError{Op: "usage since", Err: err})
	}
	defer func() { _ = rows.Close() }()

	var out []UserUsage
	for rows.Next() {
		var u UserUsage
		if err := rows.Scan(&u.UserID, &u.PromptTokens, &u.CompletionTokens, &u.TotalTokens, &u.Requests); err != nil {
			return nil, nonFatal(&PersistenceError{Op: "usage since", Err: err})
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, nonFatal(&PersistenceError{Op: "usage since", Err: err})
	}
	return out, okResult()
}

var _ Ledger = (*SQLiteLedger)(nil)
