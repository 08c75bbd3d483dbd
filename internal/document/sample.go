package document

import (
	"encoding/json"

	"github.com/plantrace/plantrace/backend-go/internal/geom"
	"github.com/plantrace/plantrace/backend-go/internal/typeid"
)

// NewSampleDocument builds a small plan: one house outline with two
// units inside it.
func NewSampleDocument() *Document {
	doc := New()

	house := rectGroup(House, "A户型", 40, 40, 400, 260)
	house.ID = typeid.NewShapeID()
	doc.AddGroup(House, house)

	bedroom := rectGroup(Unit, "主卧", 60, 60, 160, 120)
	bedroom.ID = typeid.NewShapeID()
	doc.AddGroup(Unit, bedroom)

	living := NewShapeGroup(&Path{
		Segments: []geom.Point{
			geom.Pt(240, 60), geom.Pt(420, 60), geom.Pt(420, 280),
			geom.Pt(300, 280), geom.Pt(300, 200), geom.Pt(240, 200),
		},
		Closed: true,
		Style:  UnitStyle,
	})
	living.AttachLabel(NewLabel("客厅", living.Outline.Center()))
	living.ID = typeid.NewShapeID()
	doc.AddGroup(Unit, living)

	return doc
}

// NewSampleResponse wraps the sample plan in a load response the way the
// load port would return it.
func NewSampleResponse(planID string) *LoadResponse {
	req, err := NewSaveRequest(map[string]json.RawMessage{
		"PlanId": mustJSON(planID),
		"Name":   mustJSON("Sample plan"),
	}, NewSampleDocument())
	if err != nil {
		return &LoadResponse{Code: 1, Message: err.Error()}
	}
	return &LoadResponse{Code: 0, Data: req.PlanData()}
}

func rectGroup(kind LayerKind, name string, x, y, w, h float64) *ShapeGroup {
	g := NewShapeGroup(&Path{
		Segments: []geom.Point{
			geom.Pt(x, y), geom.Pt(x+w, y), geom.Pt(x+w, y+h), geom.Pt(x, y+h),
		},
		Closed: true,
		Style:  kind.Style(),
	})
	g.AttachLabel(NewLabel(name, g.Outline.Center()))
	return g
}

func mustJSON(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
