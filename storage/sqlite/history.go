// Package sqlite stores conversation history in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"

	_ "modernc.org/sqlite"
)

const dayMicros = int64(24 * time.Hour / time.Microsecond)

// HistoryStore implements storage.HistoryStore using SQLite.
// Timestamps are stored as UTC unix microseconds.
type HistoryStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.HistoryStore = (*HistoryStore)(nil)

// OpenHistoryStore opens or creates the history database at dbPath.
func OpenHistoryStore(dbPath string) (*HistoryStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &HistoryStore{
		db:     db,
		logger: slog.Default().With("component", "history"),
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *HistoryStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id               TEXT PRIMARY KEY,
		conversation_id  TEXT NOT NULL,
		query            TEXT NOT NULL,
		response         TEXT NOT NULL,
		context_chunks   TEXT NOT NULL DEFAULT '[]',
		response_micros  INTEGER NOT NULL DEFAULT 0,
		created_at       INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_conv ON exchanges(conversation_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_exchanges_time ON exchanges(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// AddExchange stores an exchange, assigning IDs and CreatedAt when missing.
func (s *HistoryStore) AddExchange(ctx context.Context, exchange *core.Exchange) (*core.Exchange, error) {
	if exchange.Id == "" {
		exchange.Id = uuid.NewString()
	}
	if exchange.ConversationId == "" {
		exchange.ConversationId = uuid.NewString()
	}
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now().UTC()
	}

	chunks, err := json.Marshal(idsOrEmpty(exchange.ContextChunks))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, conversation_id, query, response, context_chunks, response_micros, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exchange.Id, exchange.ConversationId, exchange.Query, exchange.Response, string(chunks),
		exchange.ResponseTime.Microseconds(), exchange.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return nil, err
	}
	return exchange, nil
}

// RecentExchanges returns up to limit most recent exchanges of a conversation,
// oldest first.
func (s *HistoryStore) RecentExchanges(ctx context.Context, conversationID string, limit int) ([]*core.Exchange, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d", storage.ErrInvalidQuery, limit)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, query, response, context_chunks, response_micros, created_at
		 FROM exchanges WHERE conversation_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exchanges, err := scanExchanges(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(exchanges)-1; i < j; i, j = i+1, j-1 {
		exchanges[i], exchanges[j] = exchanges[j], exchanges[i]
	}
	return exchanges, nil
}

// ListExchanges returns exchanges newest first. Limit is capped at storage.MaxPageSize.
func (s *HistoryStore) ListExchanges(ctx context.Context, offset, limit int) ([]*core.Exchange, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset %d, limit %d", storage.ErrInvalidQuery, offset, limit)
	}
	limit = min(limit, storage.MaxPageSize)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, query, response, context_chunks, response_micros, created_at
		 FROM exchanges ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanExchanges(rows)
}

// QueryStats summarizes all stored exchanges.
func (s *HistoryStore) QueryStats(ctx context.Context) (*storage.QueryStats, error) {
	var count int
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(response_micros) FROM exchanges`,
	).Scan(&count, &avg)
	if err != nil {
		return nil, err
	}

	stats := &storage.QueryStats{Count: count}
	if avg.Valid {
		stats.AvgResponseTime = time.Duration(avg.Float64) * time.Microsecond
	}
	return stats, nil
}

// QueryTrends returns per-day exchange counts since the given time, oldest first.
// Days are UTC calendar days; days without exchanges are omitted.
func (s *HistoryStore) QueryTrends(ctx context.Context, since time.Time) ([]storage.DailyCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT created_at / ? AS day, COUNT(*) FROM exchanges
		 WHERE created_at >= ? GROUP BY day ORDER BY day`, dayMicros, since.UnixMicro())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []storage.DailyCount
	for rows.Next() {
		var day int64
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, err
		}
		trends = append(trends, storage.DailyCount{
			Day:   time.UnixMicro(day * dayMicros).UTC(),
			Count: count,
		})
	}
	return trends, rows.Err()
}

// Close closes the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

func scanExchanges(rows *sql.Rows) ([]*core.Exchange, error) {
	var exchanges []*core.Exchange
	for rows.Next() {
		var (
			ex       core.Exchange
			chunks   string
			micros   int64
			creation int64
		)
		if err := rows.Scan(&ex.Id, &ex.ConversationId, &ex.Query, &ex.Response, &chunks, &micros, &creation); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(chunks), &ex.ContextChunks); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		ex.ResponseTime = time.Duration(micros) * time.Microsecond
		ex.CreatedAt = time.UnixMicro(creation).UTC()
		exchanges = append(exchanges, &ex)
	}
	return exchanges, rows.Err()
}

func idsOrEmpty(ids []core.ID) []core.ID {
	if ids == nil {
		return []core.ID{}
	}
	return ids
}
