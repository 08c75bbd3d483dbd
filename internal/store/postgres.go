package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema_postgres.sql
var postgresSchema string

// Postgres is the pgx-backed store.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to databaseURL and applies the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func (s *Postgres) CreateUser(ctx context.Context, u User) (User, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password, display_name)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		u.ID, u.Email, u.Password, u.DisplayName,
	).Scan(&u.CreatedAt)
	if err != nil {
		return User{}, pgError("create user", err)
	}
	return u, nil
}

func (s *Postgres) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `SELECT id, email, password, display_name, created_at FROM users WHERE id = $1`, id)
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `SELECT id, email, password, display_name, created_at FROM users WHERE email = $1`, email)
}

func (s *Postgres) getUser(ctx context.Context, query, arg string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return User{}, pgError("get user", err)
	}
	return u, nil
}

func (s *Postgres) CreatePlan(ctx context.Context, p Plan) (Plan, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO plans (id, name, owner_id, src)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		p.ID, p.Name, p.OwnerID, p.Src,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Plan{}, pgError("create plan", err)
	}
	return p, nil
}

func (s *Postgres) GetPlan(ctx context.Context, id string) (Plan, error) {
	var p Plan
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner_id, src, created_at, updated_at FROM plans WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.OwnerID, &p.Src, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Plan{}, pgError("get plan", err)
	}
	return p, nil
}

func (s *Postgres) ListPlansForOwner(ctx context.Context, ownerID string) ([]Plan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, owner_id, src, created_at, updated_at
		 FROM plans WHERE owner_id = $1
		 ORDER BY updated_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	plans, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Plan, error) {
		var p Plan
		err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &p.Src, &p.CreatedAt, &p.UpdatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (s *Postgres) DeletePlan(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) CreateSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the plan row so concurrent saves get distinct versions.
	var planID string
	if err := tx.QueryRow(ctx, `SELECT id FROM plans WHERE id = $1 FOR UPDATE`, snap.PlanID).Scan(&planID); err != nil {
		return Snapshot{}, pgError("lock plan", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO snapshots (id, plan_id, version, data)
		 SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3 FROM snapshots WHERE plan_id = $2
		 RETURNING version, created_at`,
		snap.ID, snap.PlanID, []byte(snap.Data),
	).Scan(&snap.Version, &snap.CreatedAt)
	if err != nil {
		return Snapshot{}, pgError("create snapshot", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE plans SET updated_at = $2 WHERE id = $1`, snap.PlanID, snap.CreatedAt); err != nil {
		return Snapshot{}, fmt.Errorf("touch plan: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

func (s *Postgres) GetLatestSnapshot(ctx context.Context, planID string) (Snapshot, error) {
	var snap Snapshot
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, plan_id, version, data, created_at
		 FROM snapshots WHERE plan_id = $1
		 ORDER BY version DESC LIMIT 1`, planID,
	).Scan(&snap.ID, &snap.PlanID, &snap.Version, &data, &snap.CreatedAt)
	if err != nil {
		return Snapshot{}, pgError("get snapshot", err)
	}
	snap.Data = data
	return snap, nil
}

func (s *Postgres) ListSnapshots(ctx context.Context, planID string) ([]Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, plan_id, version, created_at
		 FROM snapshots WHERE plan_id = $1
		 ORDER BY version`, planID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Snapshot, error) {
		var snap Snapshot
		err := row.Scan(&snap.ID, &snap.PlanID, &snap.Version, &snap.CreatedAt)
		return snap, err
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

// pgError maps no-rows and unique violations to the store sentinels.
func pgError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
