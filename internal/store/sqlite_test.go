package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "plans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s Store, id, email string) User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), User{ID: id, Email: email, Password: "hash", DisplayName: "Tester"})
	require.NoError(t, err)
	return u
}

func TestSQLite_Users(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	u := seedUser(t, s, "user_1", "a@example.com")
	assert.False(t, u.CreatedAt.IsZero())

	got, err := s.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	got, err = s.GetUserByID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "Tester", got.DisplayName)

	_, err = s.CreateUser(ctx, User{ID: "user_2", Email: "a@example.com", Password: "x", DisplayName: "Dup"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Plans(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedUser(t, s, "user_1", "a@example.com")
	seedUser(t, s, "user_2", "b@example.com")

	p, err := s.CreatePlan(ctx, Plan{ID: "plan_1", Name: "一期", OwnerID: "user_1", Src: "/assets/a.png"})
	require.NoError(t, err)
	_, err = s.CreatePlan(ctx, Plan{ID: "plan_2", Name: "二期", OwnerID: "user_1"})
	require.NoError(t, err)
	_, err = s.CreatePlan(ctx, Plan{ID: "plan_3", Name: "other", OwnerID: "user_2"})
	require.NoError(t, err)

	got, err := s.GetPlan(ctx, "plan_1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	plans, err := s.ListPlansForOwner(ctx, "user_1")
	require.NoError(t, err)
	assert.Len(t, plans, 2)

	plans, err = s.ListPlansForOwner(ctx, "user_3")
	require.NoError(t, err)
	assert.Empty(t, plans)

	_, err = s.CreatePlan(ctx, Plan{ID: "plan_4", Name: "orphan", OwnerID: "user_9"})
	assert.ErrorIs(t, err, ErrNotFound, "owner must exist")

	require.NoError(t, s.DeletePlan(ctx, "plan_2"))
	assert.ErrorIs(t, s.DeletePlan(ctx, "plan_2"), ErrNotFound)
	_, err = s.GetPlan(ctx, "plan_2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedUser(t, s, "user_1", "a@example.com")
	plan, err := s.CreatePlan(ctx, Plan{ID: "plan_1", Name: "一期", OwnerID: "user_1"})
	require.NoError(t, err)

	_, err = s.GetLatestSnapshot(ctx, "plan_1")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := s.CreateSnapshot(ctx, Snapshot{ID: "snap_1", PlanID: "plan_1", Data: json.RawMessage(`{"Items":[]}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	second, err := s.CreateSnapshot(ctx, Snapshot{ID: "snap_2", PlanID: "plan_1", Version: 99, Data: json.RawMessage(`{"Items":[{"id":"a"}]}`)})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version, "version is assigned by the store")

	latest, err := s.GetLatestSnapshot(ctx, "plan_1")
	require.NoError(t, err)
	assert.Equal(t, "snap_2", latest.ID)
	assert.JSONEq(t, `{"Items":[{"id":"a"}]}`, string(latest.Data))

	snaps, err := s.ListSnapshots(ctx, "plan_1")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, []int{1, 2}, []int{snaps[0].Version, snaps[1].Version})

	touched, err := s.GetPlan(ctx, "plan_1")
	require.NoError(t, err)
	assert.False(t, touched.UpdatedAt.Before(plan.UpdatedAt))

	_, err = s.CreateSnapshot(ctx, Snapshot{ID: "snap_3", PlanID: "plan_missing", Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeletePlan(ctx, "plan_1"))
	snaps, err = s.ListSnapshots(ctx, "plan_1")
	require.NoError(t, err)
	assert.Empty(t, snaps, "snapshots cascade with their plan")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}

func TestOpen_SQLiteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plans.db")

	s, err := Open(ctx, "sqlite", path)
	require.NoError(t, err)
	seedUser(t, s, "user_1", "a@example.com")
	require.NoError(t, s.Close())

	s, err = Open(ctx, "sqlite", path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.GetUserByID(ctx, "user_1")
	assert.NoError(t, err)
}
