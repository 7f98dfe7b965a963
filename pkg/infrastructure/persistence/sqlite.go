package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/domain/monitor"
)

const monitorSchema = `
CREATE TABLE IF NOT EXISTS monitors (
	id         TEXT PRIMARY KEY,
	scope_id   TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	game_type  TEXT NOT NULL,
	host       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS monitors_handles ON monitors (channel_id, message_id);
CREATE INDEX IF NOT EXISTS monitors_scope ON monitors (scope_id);
`

const selectMonitor = `SELECT id, scope_id, channel_id, message_id, game_type, host, created_at FROM monitors`

// SQLiteMonitorRepository stores tasks in a single SQLite table.
type SQLiteMonitorRepository struct {
	db    *sql.DB
	clock domain.Clock
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteMonitorRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases from splitting per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(monitorSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteMonitorRepository{db: db}, nil
}

func (r *SQLiteMonitorRepository) Insert(ctx context.Context, task *monitor.Task) (domain.EntityID, error) {
	id := domain.NewID()
	created := r.clock.Now().Truncate(time.Second)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO monitors (id, scope_id, channel_id, message_id, game_type, host, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(id), task.ScopeID, task.ChannelID, task.MessageID, task.GameType, task.Host, created.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return "", monitor.ErrDuplicateHandle
		}
		return "", fmt.Errorf("insert monitor: %w", err)
	}

	task.ID = id
	task.CreatedAt = created
	return id, nil
}

func (r *SQLiteMonitorRepository) ListAll(ctx context.Context) ([]*monitor.Task, error) {
	return r.query(ctx, selectMonitor+` ORDER BY created_at, id`)
}

func (r *SQLiteMonitorRepository) ListByScope(ctx context.Context, scopeID string) ([]*monitor.Task, error) {
	return r.query(ctx, selectMonitor+` WHERE scope_id = ? ORDER BY created_at, id`, scopeID)
}

func (r *SQLiteMonitorRepository) CountByScope(ctx context.Context, scopeID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM monitors WHERE scope_id = ?`, scopeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count monitors: %w", err)
	}
	return n, nil
}

func (r *SQLiteMonitorRepository) DeleteByID(ctx context.Context, id domain.EntityID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM monitors WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete monitor: %w", err)
	}
	return nil
}

func (r *SQLiteMonitorRepository) DeleteByHandles(ctx context.Context, channelID, messageID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM monitors WHERE channel_id = ? AND message_id = ?`, channelID, messageID); err != nil {
		return fmt.Errorf("delete monitor: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *SQLiteMonitorRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteMonitorRepository) query(ctx context.Context, q string, args ...any) ([]*monitor.Task, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	defer rows.Close()

	var tasks []*monitor.Task
	for rows.Next() {
		var (
			t       monitor.Task
			id      string
			created int64
		)
		if err := rows.Scan(&id, &t.ScopeID, &t.ChannelID, &t.MessageID, &t.GameType, &t.Host, &created); err != nil {
			return nil, fmt.Errorf("scan monitor: %w", err)
		}
		t.ID = domain.EntityID(id)
		t.CreatedAt = time.Unix(created, 0).UTC()
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	return tasks, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

var _ monitor.Repository = (*SQLiteMonitorRepository)(nil)
