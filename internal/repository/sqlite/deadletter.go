// Package sqlite хранит недоставленных кандидатов в локальном файле SQLite детектора.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shenikar/traffic_incident_system/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS dead_letters (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	camera_id   TEXT    NOT NULL,
	payload     TEXT    NOT NULL,
	reason      TEXT    NOT NULL,
	attempts    INTEGER NOT NULL,
	observed_at TIMESTAMP NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dead_letters_created_at ON dead_letters(created_at);
`

// DeadLetter - сохраненный недоставленный кандидат
type DeadLetter struct {
	ID        int64
	Candidate models.IncidentCandidate
	Reason    string
	Attempts  int
	CreatedAt time.Time
}

// DeadLetterRepository реализует reporter.DeadLetterStore
type DeadLetterRepository struct {
	db *sql.DB
}

// Open открывает (или создает) базу и применяет схему. path ":memory:" используется в тестах.
func Open(ctx context.Context, path string) (*DeadLetterRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// SQLite допускает одного писателя
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply dead letter schema: %w", err)
	}
	return &DeadLetterRepository{db: db}, nil
}

// Save сохраняет кандидата вместе с причиной отказа
func (r *DeadLetterRepository) Save(ctx context.Context, candidate models.IncidentCandidate, reason string, attempts int) error {
	payload, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO dead_letters (camera_id, payload, reason, attempts, observed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, candidate.CameraID, string(payload), reason, attempts, candidate.ObservedAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}

// List возвращает последние limit записей, новые первыми
func (r *DeadLetterRepository) List(ctx context.Context, limit int) ([]DeadLetter, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payload, reason, attempts, created_at
		FROM dead_letters
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}
	defer rows.Close()

	var letters []DeadLetter
	for rows.Next() {
		var (
			letter  DeadLetter
			payload string
		)
		if err := rows.Scan(&letter.ID, &payload, &letter.Reason, &letter.Attempts, &letter.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &letter.Candidate); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dead letter %d: %w", letter.ID, err)
		}
		letters = append(letters, letter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error dead letter iteration: %w", err)
	}
	return letters, nil
}

// Count возвращает число сохраненных записей
func (r *DeadLetterRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}

func (r *DeadLetterRepository) Close() error {
	return r.db.Close()
}
