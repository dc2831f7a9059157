package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ribartra/ai-chatbots/internal/assistants"
)

// Session is the journal row for one process run.
type Session struct {
	ID          string
	AssistantID string
	ThreadID    string
	StartedAt   time.Time
	EndedAt     time.Time
	ExitReason  string
}

// Turn is the journal row for one user input.
type Turn struct {
	ID        string
	SessionID string
	Index     int
	RunID     string
	UserText  string
	ReplyText string
	Status    string
	Usage     assistants.Usage
	CreatedAt time.Time
}

// Journal writes sessions and turns. A nil *Journal discards everything.
type Journal struct {
	db     *sql.DB
	driver string
}

// Open connects to the journal database and creates the tables if needed.
func Open(driver, dsn string) (*Journal, error) {
	if dsn == "" {
		return nil, fmt.Errorf("journal dsn must be provided")
	}

	var (
		db  *sql.DB
		err error
	)
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		driver = "sqlite3"
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		// an in-memory database exists per connection
		if strings.Contains(dsn, ":memory:") {
			db.SetMaxOpenConns(1)
		}
	case "mysql":
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql journal: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported journal driver: %s", driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s journal: %w", driver, err)
	}

	j := &Journal{db: db, driver: driver}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id VARCHAR(64) PRIMARY KEY,
			assistant_id VARCHAR(64) NOT NULL,
			thread_id VARCHAR(64) NOT NULL,
			started_at BIGINT NOT NULL,
			ended_at BIGINT,
			exit_reason VARCHAR(32)
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			turn_id VARCHAR(64) PRIMARY KEY,
			session_id VARCHAR(64) NOT NULL,
			turn_index INTEGER NOT NULL,
			run_id VARCHAR(64),
			user_text TEXT NOT NULL,
			reply_text TEXT,
			status VARCHAR(32) NOT NULL,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL
		)`,
	}
	for _, m := range migrations {
		if _, err := j.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Driver reports the database driver in use.
func (j *Journal) Driver() string {
	if j == nil {
		return ""
	}
	return j.driver
}

func (j *Journal) StartSession(ctx context.Context, s Session) error {
	if j == nil {
		return nil
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, assistant_id, thread_id, started_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.AssistantID, s.ThreadID, s.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (j *Journal) RecordTurn(ctx context.Context, t Turn) error {
	if j == nil {
		return nil
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO turns (turn_id, session_id, turn_index, run_id, user_text, reply_text, status,
			prompt_tokens, completion_tokens, total_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.Index, nullable(t.RunID), t.UserText, nullable(t.ReplyText), t.Status,
		t.Usage.PromptTokens, t.Usage.CompletionTokens, t.Usage.TotalTokens, t.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func (j *Journal) EndSession(ctx context.Context, sessionID, reason string, at time.Time) error {
	if j == nil {
		return nil
	}
	res, err := j.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, exit_reason = ? WHERE session_id = ?`,
		at.UnixMilli(), reason, sessionID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update session: %s not found", sessionID)
	}
	return nil
}

// Session loads one session row.
func (j *Journal) Session(ctx context.Context, id string) (Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
		reason  sql.NullString
	)
	err := j.db.QueryRowContext(ctx,
		`SELECT session_id, assistant_id, thread_id, started_at, ended_at, exit_reason FROM sessions WHERE session_id = ?`,
		id).Scan(&s.ID, &s.AssistantID, &s.ThreadID, &started, &ended, &reason)
	if err != nil {
		return Session{}, fmt.Errorf("select session: %w", err)
	}
	s.StartedAt = time.UnixMilli(started).UTC()
	if ended.Valid {
		s.EndedAt = time.UnixMilli(ended.Int64).UTC()
	}
	s.ExitReason = reason.String
	return s, nil
}

// Turns lists the turns of a session in the order they happened.
func (j *Journal) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT turn_id, session_id, turn_index, run_id, user_text, reply_text, status,
			prompt_tokens, completion_tokens, total_tokens, created_at
		FROM turns WHERE session_id = ? ORDER BY turn_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var (
			t       Turn
			runID   sql.NullString
			reply   sql.NullString
			created int64
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Index, &runID, &t.UserText, &reply, &t.Status,
			&t.Usage.PromptTokens, &t.Usage.CompletionTokens, &t.Usage.TotalTokens, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.RunID = runID.String
		t.ReplyText = reply.String
		t.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
