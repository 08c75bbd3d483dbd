package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is a whole document serialized as a plain JSON tree.
type Snapshot []byte

type layerTree struct {
	Kind     string        `json:"kind"`
	Children []*ShapeGroup `json:"children"`
}

// Export serializes both layers in paint order.
func (d *Document) Export() (Snapshot, error) {
	tree := make([]layerTree, 0, len(d.layers))
	for _, l := range d.layers {
		children := l.Children
		if children == nil {
			children = []*ShapeGroup{}
		}
		tree = append(tree, layerTree{Kind: l.Kind.String(), Children: children})
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

// Import replaces the content of both layers. The active layer is kept.
// On error the document is left untouched.
func (d *Document) Import(s Snapshot) error {
	var tree []layerTree
	if err := json.Unmarshal(s, &tree); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if len(tree) != 2 {
		return fmt.Errorf("%w: expected 2 layers, got %d", ErrInvalidSnapshot, len(tree))
	}

	var layers [2][]*ShapeGroup
	seen := map[LayerKind]bool{}
	for _, lt := range tree {
		kind, err := parseKind(lt.Kind)
		if err != nil {
			return err
		}
		if seen[kind] {
			return fmt.Errorf("%w: duplicate layer %q", ErrInvalidSnapshot, lt.Kind)
		}
		seen[kind] = true

		for _, g := range lt.Children {
			if err := repairGroup(g, kind); err != nil {
				return err
			}
		}
		layers[kind] = lt.Children
	}

	d.layers[House].Children = layers[House]
	d.layers[Unit].Children = layers[Unit]
	return nil
}

func parseKind(s string) (LayerKind, error) {
	switch s {
	case "house":
		return House, nil
	case "unit":
		return Unit, nil
	default:
		return House, fmt.Errorf("%w: unknown layer %q", ErrInvalidSnapshot, s)
	}
}

// repairGroup relinks children and restores the outline+label invariant
// for groups written by older clients without a label.
func repairGroup(g *ShapeGroup, kind LayerKind) error {
	if g == nil || g.Outline == nil {
		return fmt.Errorf("%w: group without outline", ErrInvalidSnapshot)
	}
	if g.Label == nil {
		g.Label = NewLabel(kind.DefaultName(), g.Outline.Center())
	}
	if g.Label.FontSize <= 0 {
		g.Label.FontSize = DefaultFontSize
	}
	g.link()
	return nil
}

// MarshalGroup serializes one group as the geometry tree stored in a
// save item's info field.
func MarshalGroup(g *ShapeGroup) ([]byte, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal group: %w", err)
	}
	return data, nil
}

// UnmarshalGroup is the inverse of MarshalGroup.
func UnmarshalGroup(data []byte, kind LayerKind) (*ShapeGroup, error) {
	var g ShapeGroup
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := repairGroup(&g, kind); err != nil {
		return nil, err
	}
	return &g, nil
}
