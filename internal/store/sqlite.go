package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLite is the embedded store. Times are stored as unix milliseconds.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path and
// applies the schema. ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; also keeps a :memory: database on a single
	// connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateUser(ctx context.Context, u User) (User, error) {
	u.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password, display_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Password, u.DisplayName, millis(u.CreatedAt))
	if err != nil {
		return User{}, sqliteError("create user", err)
	}
	return u, nil
}

func (s *SQLite) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `SELECT id, email, password, display_name, created_at FROM users WHERE id = ?`, id)
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `SELECT id, email, password, display_name, created_at FROM users WHERE email = ?`, email)
}

func (s *SQLite) getUser(ctx context.Context, query, arg string) (User, error) {
	var u User
	var created int64
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &created)
	if err != nil {
		return User{}, sqliteError("get user", err)
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}

func (s *SQLite) CreatePlan(ctx context.Context, p Plan) (Plan, error) {
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plans (id, name, owner_id, src, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.OwnerID, p.Src, millis(p.CreatedAt), millis(p.UpdatedAt))
	if err != nil {
		return Plan{}, sqliteError("create plan", err)
	}
	return p, nil
}

func (s *SQLite) GetPlan(ctx context.Context, id string) (Plan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, src, created_at, updated_at FROM plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if err != nil {
		return Plan{}, sqliteError("get plan", err)
	}
	return p, nil
}

func (s *SQLite) ListPlansForOwner(ctx context.Context, ownerID string) ([]Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, owner_id, src, created_at, updated_at
		 FROM plans WHERE owner_id = ?
		 ORDER BY updated_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	plans := []Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *SQLite) DeletePlan(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) CreateSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var planID string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM plans WHERE id = ?`, snap.PlanID).Scan(&planID); err != nil {
		return Snapshot{}, sqliteError("get plan", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM snapshots WHERE plan_id = ?`, snap.PlanID,
	).Scan(&snap.Version); err != nil {
		return Snapshot{}, fmt.Errorf("next version: %w", err)
	}

	snap.CreatedAt = now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, plan_id, version, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.PlanID, snap.Version, string(snap.Data), millis(snap.CreatedAt),
	); err != nil {
		return Snapshot{}, sqliteError("create snapshot", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE plans SET updated_at = ? WHERE id = ?`, millis(snap.CreatedAt), snap.PlanID,
	); err != nil {
		return Snapshot{}, fmt.Errorf("touch plan: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

func (s *SQLite) GetLatestSnapshot(ctx context.Context, planID string) (Snapshot, error) {
	var snap Snapshot
	var data string
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, plan_id, version, data, created_at
		 FROM snapshots WHERE plan_id = ?
		 ORDER BY version DESC LIMIT 1`, planID,
	).Scan(&snap.ID, &snap.PlanID, &snap.Version, &data, &created)
	if err != nil {
		return Snapshot{}, sqliteError("get snapshot", err)
	}
	snap.Data = []byte(data)
	snap.CreatedAt = fromMillis(created)
	return snap, nil
}

func (s *SQLite) ListSnapshots(ctx context.Context, planID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plan_id, version, created_at FROM snapshots WHERE plan_id = ? ORDER BY version`, planID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		var snap Snapshot
		var created int64
		if err := rows.Scan(&snap.ID, &snap.PlanID, &snap.Version, &created); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.CreatedAt = fromMillis(created)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (Plan, error) {
	var p Plan
	var created, updated int64
	if err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &p.Src, &created, &updated); err != nil {
		return Plan{}, err
	}
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return p, nil
}

// sqliteError maps no-rows and constraint violations to the store
// sentinels.
func sqliteError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case sqlite3.SQLITE_CONSTRAINT:
			// Extended codes disabled; fall back to the message.
			msg := se.Error()
			if strings.Contains(msg, "UNIQUE") {
				return fmt.Errorf("%s: %w", op, ErrDuplicate)
			}
			if strings.Contains(msg, "FOREIGN KEY") {
				return fmt.Errorf("%s: %w", op, ErrNotFound)
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
