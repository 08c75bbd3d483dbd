// Package store persists users, plans and plan snapshots. Two backends
// share the Store interface: Postgres through pgx, and an embedded SQLite
// file for single-node installs and tests.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

type User struct {
	ID          string
	Email       string
	Password    string // bcrypt hash
	DisplayName string
	CreatedAt   time.Time
}

type Plan struct {
	ID        string
	Name      string
	OwnerID   string
	Src       string // background image URL
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot is one saved version of a plan. Data holds the save-port
// payload as written by the editor.
type Snapshot struct {
	ID        string
	PlanID    string
	Version   int
	Data      json.RawMessage
	CreatedAt time.Time
}

// Store is implemented by the Postgres and SQLite backends.
type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)

	CreatePlan(ctx context.Context, p Plan) (Plan, error)
	GetPlan(ctx context.Context, id string) (Plan, error)
	ListPlansForOwner(ctx context.Context, ownerID string) ([]Plan, error)
	DeletePlan(ctx context.Context, id string) error

	// CreateSnapshot stores s as the plan's next version and bumps the
	// plan's updated time. s.Version is ignored.
	CreateSnapshot(ctx context.Context, s Snapshot) (Snapshot, error)
	GetLatestSnapshot(ctx context.Context, planID string) (Snapshot, error)
	ListSnapshots(ctx context.Context, planID string) ([]Snapshot, error)

	Close() error
}

// Open connects to the backend named by driver ("pgx" or "sqlite") and
// applies the schema.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "pgx":
		return OpenPostgres(ctx, dsn)
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
