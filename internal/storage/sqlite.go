package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var _ Recorder = &SQLiteRecorder{}

// SQLiteRecorder implements Recorder on a local SQLite database. Useful
// when the transcript outgrows a flat JSONL file.
type SQLiteRecorder struct {
	db *sql.DB
}

func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) initDB() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		session_id TEXT NOT NULL,
		source TEXT NOT NULL,
		user_message TEXT NOT NULL,
		assistant_response TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);`

	if _, err := r.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func (r *SQLiteRecorder) AppendInteraction(event Event) error {
	query := `
	INSERT INTO interactions (timestamp, session_id, source, user_message, assistant_response, model, prompt_tokens, completion_tokens, total_tokens, failed, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		event.Timestamp, event.SessionID, event.Source, event.UserMessage,
		event.AssistantResponse, event.Model, event.PromptTokens,
		event.CompletionTokens, event.TotalTokens, event.Failed, event.Error)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) LoadInteractions() ([]Event, error) {
	query := `
	SELECT timestamp, session_id, source, user_message, assistant_response, model, prompt_tokens, completion_tokens, total_tokens, failed, error
	FROM interactions
	ORDER BY id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.Timestamp, &ev.SessionID, &ev.Source, &ev.UserMessage,
			&ev.AssistantResponse, &ev.Model, &ev.PromptTokens,
			&ev.CompletionTokens, &ev.TotalTokens, &ev.Failed, &ev.Error); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return events, nil
}
