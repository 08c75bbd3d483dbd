// Package plan serves floor plans: the load and save ports the editor
// talks to, plan CRUD for owners, and decoded documents for export and
// live sessions.
package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/store"
	"github.com/plantrace/plantrace/backend-go/internal/typeid"
)

var (
	ErrNotFound     = errors.New("plan not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("authentication required")
	ErrInvalidSave  = errors.New("invalid save request")
)

// Metadata keys the server owns in load and save payloads.
const (
	MetaPlanID = "PlanId"
	MetaName   = "Name"
	MetaSrc    = "Src"
)

type Service struct {
	store       store.Store
	requireAuth bool
}

// NewService creates a plan service. With requireAuth, saves need an
// authenticated owner; otherwise anonymous saves are accepted.
func NewService(st store.Store, requireAuth bool) *Service {
	return &Service{store: st, requireAuth: requireAuth}
}

type Plan struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	Src       string `json:"src,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type Version struct {
	ID        string `json:"id"`
	Version   int    `json:"version"`
	CreatedAt string `json:"createdAt"`
}

// SaveResult is what the save port answers.
type SaveResult struct {
	Code    int                   `json:"Code"`
	Message string                `json:"Message"`
	Version int                   `json:"Version"`
	Data    *document.SaveRequest `json:"Data"`
}

func (s *Service) Create(ctx context.Context, name, src, ownerID string) (*Plan, error) {
	p, err := s.store.CreatePlan(ctx, store.Plan{
		ID:      typeid.NewPlanID(),
		Name:    name,
		OwnerID: ownerID,
		Src:     src,
	})
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}

	// Seed an empty version so the load port always has data.
	empty := &document.SaveRequest{Meta: s.meta(p)}
	data, err := json.Marshal(empty)
	if err != nil {
		return nil, fmt.Errorf("marshal empty plan: %w", err)
	}
	if _, err := s.store.CreateSnapshot(ctx, store.Snapshot{
		ID:     typeid.NewSnapshotID(),
		PlanID: p.ID,
		Data:   data,
	}); err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}

	slog.Info("plan created", "planId", p.ID, "ownerId", ownerID)
	return toPlan(p), nil
}

func (s *Service) Get(ctx context.Context, planID, userID string) (*Plan, error) {
	p, err := s.owned(ctx, planID, userID)
	if err != nil {
		return nil, err
	}
	return toPlan(p), nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Plan, error) {
	stored, err := s.store.ListPlansForOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}

	plans := make([]Plan, len(stored))
	for i, p := range stored {
		plans[i] = *toPlan(p)
	}
	return plans, nil
}

func (s *Service) Delete(ctx context.Context, planID, userID string) error {
	if _, err := s.owned(ctx, planID, userID); err != nil {
		return err
	}
	if err := s.store.DeletePlan(ctx, planID); err != nil {
		return storeError("delete plan", err)
	}
	return nil
}

// Versions lists the saved versions of a plan, oldest first.
func (s *Service) Versions(ctx context.Context, planID, userID string) ([]Version, error) {
	if _, err := s.owned(ctx, planID, userID); err != nil {
		return nil, err
	}
	snaps, err := s.store.ListSnapshots(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	versions := make([]Version, len(snaps))
	for i, snap := range snaps {
		versions[i] = Version{ID: snap.ID, Version: snap.Version, CreatedAt: snap.CreatedAt.Format(timeFormat)}
	}
	return versions, nil
}

// Load answers the load port: the latest saved items plus the plan's
// metadata.
func (s *Service) Load(ctx context.Context, planID string) (*document.LoadResponse, error) {
	p, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, storeError("get plan", err)
	}

	req := &document.SaveRequest{}
	snap, err := s.store.GetLatestSnapshot(ctx, planID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("get snapshot: %w", err)
	default:
		if err := json.Unmarshal(snap.Data, req); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
		}
	}

	if req.Meta == nil {
		req.Meta = map[string]json.RawMessage{}
	}
	for k, v := range s.meta(p) {
		req.Meta[k] = v
	}
	return &document.LoadResponse{Code: 0, Data: req.PlanData()}, nil
}

// Document loads and decodes the latest version of a plan.
func (s *Service) Document(ctx context.Context, planID string) (*document.Document, *Plan, error) {
	resp, err := s.Load(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	doc, err := resp.Document()
	if err != nil {
		return nil, nil, fmt.Errorf("decode plan %s: %w", planID, err)
	}
	p, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, nil, storeError("get plan", err)
	}
	return doc, toPlan(p), nil
}

// Save answers the save port. Every item must decode as a shape group;
// items without an id get a fresh shape id, which the result carries
// back to the editor.
func (s *Service) Save(ctx context.Context, planID, userID string, req *document.SaveRequest) (*SaveResult, error) {
	if userID == "" && s.requireAuth {
		return nil, ErrUnauthorized
	}

	var p store.Plan
	var err error
	if userID != "" {
		p, err = s.owned(ctx, planID, userID)
	} else {
		p, err = s.store.GetPlan(ctx, planID)
		err = storeError("get plan", err)
	}
	if err != nil {
		return nil, err
	}

	if err := validate(req); err != nil {
		return nil, err
	}

	for i := range req.Items {
		if req.Items[i].ID == "" {
			req.Items[i].ID = typeid.NewShapeID()
		}
	}
	if req.Meta == nil {
		req.Meta = map[string]json.RawMessage{}
	}
	for k, v := range s.meta(p) {
		req.Meta[k] = v
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal save request: %w", err)
	}
	snap, err := s.store.CreateSnapshot(ctx, store.Snapshot{
		ID:     typeid.NewSnapshotID(),
		PlanID: planID,
		Data:   data,
	})
	if err != nil {
		return nil, storeError("create snapshot", err)
	}

	slog.Info("plan saved", "planId", planID, "version", snap.Version, "items", len(req.Items))
	return &SaveResult{Code: 0, Message: "保存成功!", Version: snap.Version, Data: req}, nil
}

// validate checks item types and that each info decodes as a group.
func validate(req *document.SaveRequest) error {
	if req == nil {
		return fmt.Errorf("%w: empty body", ErrInvalidSave)
	}
	seen := make(map[string]bool, len(req.Items))
	for i, it := range req.Items {
		if it.Type != document.ItemType(document.House) && it.Type != document.ItemType(document.Unit) {
			return fmt.Errorf("%w: item %d has type %d", ErrInvalidSave, i, it.Type)
		}
		if _, err := document.UnmarshalGroup(it.Info, document.KindOf(int(it.Type))); err != nil {
			return fmt.Errorf("%w: item %d: %v", ErrInvalidSave, i, err)
		}
		if it.ID != "" {
			if seen[it.ID] {
				return fmt.Errorf("%w: duplicate id %q", ErrInvalidSave, it.ID)
			}
			seen[it.ID] = true
		}
	}
	return nil
}

func (s *Service) owned(ctx context.Context, planID, userID string) (store.Plan, error) {
	p, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return store.Plan{}, storeError("get plan", err)
	}
	if p.OwnerID != userID {
		return store.Plan{}, ErrForbidden
	}
	return p, nil
}

func (s *Service) meta(p store.Plan) map[string]json.RawMessage {
	raw := func(v string) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}
	return map[string]json.RawMessage{
		MetaPlanID: raw(p.ID),
		MetaName:   raw(p.Name),
		MetaSrc:    raw(p.Src),
	}
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

const timeFormat = "2006-01-02T15:04:05Z"

func toPlan(p store.Plan) *Plan {
	return &Plan{
		ID:        p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		Src:       p.Src,
		CreatedAt: p.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt: p.UpdatedAt.UTC().Format(timeFormat),
	}
}
