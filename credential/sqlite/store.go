// Package sqlite implements credential.Store on SQLite using modernc.org/sqlite.
//
// The settings cap is enforced twice: the write path checks capacity inside a
// transaction and a BEFORE INSERT trigger aborts any insert that would give a
// user more than settings.MaxEntries rows.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/settings"

	_ "modernc.org/sqlite"
)

const settingsFullMarker = "settings_full"

// Store implements credential.Store.
type Store struct {
	db *sql.DB
}

var _ credential.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
// Parent directories are created if needed. ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = "file:" + path
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// New wraps an existing handle without touching the schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates tables, indexes and the settings cap trigger if missing.
func (s *Store) Migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			full_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			avatar_url TEXT NOT NULL DEFAULT '',
			max_connections INTEGER NOT NULL DEFAULT %d CHECK (max_connections >= 0),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS user_settings (
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			idx TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('object', 'list')),
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, idx)
		);

		CREATE TRIGGER IF NOT EXISTS user_settings_cap
		BEFORE INSERT ON user_settings
		WHEN (SELECT COUNT(*) FROM user_settings WHERE user_id = NEW.user_id) >= %d
		BEGIN
			SELECT RAISE(ABORT, '%s');
		END;
	`, credential.DefaultMaxConnections, settings.MaxEntries, settingsFullMarker)

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts u. Returns credential.ErrDuplicateEmail when the email exists.
func (s *Store) Create(ctx context.Context, u *credential.User) error {
	query := `
		INSERT INTO users (id, email, full_name, password_hash, avatar_url, max_connections, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID,
		u.Email,
		u.FullName,
		u.PasswordHash,
		u.AvatarURL,
		u.MaxConnections,
		formatTime(u.CreatedAt),
		formatTime(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return credential.ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// FindByEmail loads a user and their settings by email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*credential.User, error) {
	return s.findUser(ctx, s.db, "email = ?", email)
}

// FindByID loads a user and their settings by id.
func (s *Store) FindByID(ctx context.Context, id string) (*credential.User, error) {
	return s.findUser(ctx, s.db, "id = ?", id)
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}
	if n == 0 {
		return credential.ErrNotFound
	}
	return nil
}

// PutSetting overwrites idx when present, otherwise inserts it if the user has
// room. Returns settings.ErrFull when the user is at capacity.
//
// touchUser takes the write lock first, so the capacity check on the loaded
// map cannot race another writer. The insert trigger still backs it up.
func (s *Store) PutSetting(ctx context.Context, userID string, idx settings.Index, v settings.Value) (settings.Map, error) {
	var out settings.Map
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(time.Now())
		if err := touchUser(ctx, tx, userID, now); err != nil {
			return err
		}

		current, err := loadSettings(ctx, tx, userID)
		if err != nil {
			return err
		}
		_, exists := current.Get(idx)
		if err := current.Put(idx, v); err != nil {
			return err
		}

		if exists {
			_, err = tx.ExecContext(ctx,
				`UPDATE user_settings SET kind = ?, value = ?, updated_at = ? WHERE user_id = ? AND idx = ?`,
				v.Kind().String(), string(v.JSON()), now, userID, string(idx),
			)
			if err != nil {
				return fmt.Errorf("updating setting: %w", err)
			}
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO user_settings (user_id, idx, kind, value, updated_at) VALUES (?, ?, ?, ?, ?)`,
				userID, string(idx), v.Kind().String(), string(v.JSON()), now,
			)
			if err != nil {
				if strings.Contains(err.Error(), settingsFullMarker) {
					return settings.ErrFull
				}
				return fmt.Errorf("inserting setting: %w", err)
			}
		}

		out = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSetting removes idx if present and returns the remaining settings.
func (s *Store) DeleteSetting(ctx context.Context, userID string, idx settings.Index) (settings.Map, error) {
	var out settings.Map
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(time.Now())
		if err := touchUser(ctx, tx, userID, now); err != nil {
			return err
		}

		current, err := loadSettings(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current.Delete(idx) {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM user_settings WHERE user_id = ? AND idx = ?`,
				userID, string(idx),
			); err != nil {
				return fmt.Errorf("deleting setting: %w", err)
			}
		}

		out = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) findUser(ctx context.Context, q queryer, where string, arg string) (*credential.User, error) {
	query := `
		SELECT id, email, full_name, password_hash, avatar_url, max_connections, created_at, updated_at
		FROM users
		WHERE ` + where

	var u credential.User
	var createdAt, updatedAt string
	err := q.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.AvatarURL,
		&u.MaxConnections,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, credential.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	if u.Settings, err = loadSettings(ctx, q, u.ID); err != nil {
		return nil, err
	}
	return &u, nil
}

func loadSettings(ctx context.Context, q queryer, userID string) (settings.Map, error) {
	rows, err := q.QueryContext(ctx, `SELECT idx, kind, value FROM user_settings WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	out := settings.Map{}
	for rows.Next() {
		var idx, kind, value string
		if err := rows.Scan(&idx, &kind, &value); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		v, err := settings.FromStored(kind, []byte(value))
		if err != nil {
			return nil, fmt.Errorf("decoding setting %q: %w", idx, err)
		}
		out[settings.Index(idx)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}
	return out, nil
}

func touchUser(ctx context.Context, tx *sql.Tx, userID, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET updated_at = ? WHERE id = ?`, now, userID)
	if err != nil {
		return fmt.Errorf("touching user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touching user: %w", err)
	}
	if n == 0 {
		return credential.ErrNotFound
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed: users.email")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
