package engine

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantrace/plantrace/backend-go/internal/config"
	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

type recorder struct {
	notices []Notice
	reports []ProbeReport
}

func (r *recorder) options(opts Options) Options {
	opts.Notify = func(n Notice) { r.notices = append(r.notices, n) }
	opts.OnProbe = func(p ProbeReport) { r.reports = append(r.reports, p) }
	return opts
}

func newProbe(t *testing.T, rec *recorder, opts Options) (*Session, *document.Document) {
	t.Helper()
	opts.Mode = ModeProbe
	doc := document.NewSampleDocument()
	s := NewSession(rec.options(opts))
	s.LoadDocument(doc)
	return s, doc
}

func TestProbe_Classification(t *testing.T) {
	rec := &recorder{}
	s, doc := newProbe(t, rec, Options{})
	house := doc.Layer(document.House).Children[0]
	bedroom := doc.Layer(document.Unit).Children[0]

	cases := []struct {
		name string
		p    geom.Point
		want ProbeReport
	}{
		{"unit", geom.Pt(100, 100), ProbeReport{X: 100, Y: 100, ID: bedroom.ID, Name: "主卧", Type: 1}},
		{"house only", geom.Pt(250, 250), ProbeReport{X: 250, Y: 250, ID: house.ID, Name: "A户型", Type: 0}},
		{"outside", geom.Pt(600, 600), ProbeReport{X: 600, Y: 600, Name: CommonAreaName, Type: 2}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, s.Probe(c.p).Report())
		})
	}
}

func TestProbe_ClickMovesMarker(t *testing.T) {
	rec := &recorder{}
	s, _ := newProbe(t, rec, Options{MarkerSize: 20})

	_, _, visible := s.Marker()
	assert.False(t, visible)

	res, ok := s.Click(PointerEvent{X: 600.4, Y: 599.6})
	require.True(t, ok)
	assert.Equal(t, ProbeCommon, res.Type)

	pos, radius, visible := s.Marker()
	assert.True(t, visible)
	assert.Equal(t, geom.Pt(600.4, 599.6), pos)
	assert.Equal(t, 20.0, radius)
	require.Len(t, rec.reports, 1)
	assert.Equal(t, ProbeReport{X: 600, Y: 600, Name: CommonAreaName, Type: 2}, rec.reports[0])

	s.SetScale(4)
	_, radius, _ = s.Marker()
	assert.Equal(t, 5.0, radius, "marker keeps its on-screen size")
}

func TestProbe_Scope(t *testing.T) {
	doc := document.NewSampleDocument()
	bedroom := doc.Layer(document.Unit).Children[0]

	rec := &recorder{}
	s := NewSession(rec.options(Options{Mode: ModeProbe, Scope: bedroom.ID}))
	s.LoadDocument(doc)

	assert.True(t, doc.Layer(document.House).Children[0].Hidden)
	assert.False(t, bedroom.Hidden)

	_, ok := s.Click(at(250, 250))
	assert.False(t, ok, "misses are ignored with a scope")
	_, _, visible := s.Marker()
	assert.False(t, visible)
	assert.Empty(t, rec.reports)

	res, ok := s.Click(at(100, 100))
	require.True(t, ok)
	assert.Equal(t, bedroom.ID, res.OwnerID)
	require.Len(t, rec.reports, 1)
}

func TestProbe_ReadOnlyAndEditSessionsIgnoreClicks(t *testing.T) {
	rec := &recorder{}
	s, _ := newProbe(t, rec, Options{ReadOnly: true})
	_, ok := s.Click(at(100, 100))
	assert.False(t, ok)

	edit := newEmpty(t)
	_, ok = edit.Click(at(100, 100))
	assert.False(t, ok)
	assert.Empty(t, rec.reports)
}

func TestProbe_InitialPoint(t *testing.T) {
	p := geom.Pt(12, 34)
	s, _ := newProbe(t, &recorder{}, Options{Point: &p})
	pos, radius, visible := s.Marker()
	assert.True(t, visible)
	assert.Equal(t, p, pos)
	assert.Equal(t, float64(DefaultMarkerSize), radius)
}

func TestProbe_HidesLabelsAndIgnoresEdits(t *testing.T) {
	s, doc := newProbe(t, &recorder{}, Options{})
	bedroom := doc.Layer(document.Unit).Children[0]
	before := bedroom.Outline.Segments[0]

	assert.True(t, bedroom.Label.Hidden)
	assert.Zero(t, s.HistoryLen())

	s.PointerDown(at(100, 100))
	s.PointerMove(at(150, 150))
	s.PointerUp(at(150, 150))
	s.KeyUp(KeyEvent{Code: KeyDelete})
	assert.Equal(t, before, bedroom.Outline.Segments[0])
	assert.Equal(t, 3, doc.Len())
}

func TestLoad(t *testing.T) {
	rec := &recorder{}
	s := NewSession(rec.options(Options{}))

	require.NoError(t, s.Load(document.NewSampleResponse("plan_1")))
	assert.True(t, s.Ready())
	assert.Equal(t, 3, s.Document().Len())
	assert.Equal(t, 1, s.HistoryLen())
	assert.Empty(t, rec.notices)
}

func TestLoad_Failure(t *testing.T) {
	cases := []struct {
		name string
		resp *document.LoadResponse
		want string
	}{
		{"server message", &document.LoadResponse{Code: 3, Message: "无权限"}, "无权限"},
		{"default message", &document.LoadResponse{Code: 1}, document.DefaultLoadFailure},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := &recorder{}
			s := NewSession(rec.options(Options{}))

			err := s.Load(c.resp)
			require.ErrorIs(t, err, document.ErrLoadFailed)
			assert.False(t, s.Ready())
			assert.Equal(t, []Notice{{Level: NoticeError, Message: c.want}}, rec.notices)
		})
	}

	rec := &recorder{}
	s := NewSession(rec.options(Options{}))
	err := s.LoadFailed(errors.New("connection reset"))
	require.ErrorIs(t, err, document.ErrLoadFailed)
	assert.Equal(t, document.DefaultLoadFailure, rec.notices[0].Message)
}

func TestSave(t *testing.T) {
	rec := &recorder{}
	s := NewSession(rec.options(Options{}))
	require.NoError(t, s.Load(document.NewSampleResponse("plan_1")))
	s.SetActiveLayer(document.Unit)
	drawPolygon(s, geom.Pt(500, 500), geom.Pt(560, 500), geom.Pt(560, 560))

	meta := map[string]json.RawMessage{"PlanId": json.RawMessage(`"plan_1"`)}
	req, err := s.SaveRequest(meta)
	require.NoError(t, err)
	require.Len(t, req.Items, 4)
	assert.Equal(t, meta, req.Meta)

	added := req.Items[3]
	assert.Empty(t, added.ID)
	assert.Equal(t, document.ItemType(document.Unit), added.Type)
	assert.Equal(t, "未命名单元", added.Name)

	saved := *req
	saved.Items = append([]document.SaveItem(nil), req.Items...)
	saved.Items[3].ID = "shape_new"
	s.SaveDone(&saved, nil)

	assert.Equal(t, "shape_new", s.Document().Layer(document.Unit).Children[2].ID)
	assert.Equal(t, []Notice{{Level: NoticeInfo, Message: MsgSaved}}, rec.notices)

	s.SaveDone(nil, errors.New("保存失败"))
	assert.Equal(t, Notice{Level: NoticeError, Message: "保存失败"}, rec.notices[1])
}

func TestSave_CommitsOpenLabel(t *testing.T) {
	s, groups := newFixture(t)
	s.EditLabel(groups[0].Outline)
	s.LabelInput("书房")

	req, err := s.SaveRequest(nil)
	require.NoError(t, err)
	assert.Equal(t, "书房", req.Items[1].Name)
	_, _, editing := s.EditingLabel()
	assert.False(t, editing)
}

func TestSaveRequest_NotLoaded(t *testing.T) {
	_, err := NewSession(Options{}).SaveRequest(nil)
	assert.Error(t, err)
}

func TestBackground(t *testing.T) {
	rec := &recorder{}
	s := NewSession(rec.options(Options{}))
	s.LoadDocument(document.New())

	s.SetBackground("/assets/plan.png", 800, 600)
	cmds := s.DrawCommands()
	require.NotEmpty(t, cmds)
	assert.Equal(t, "image", cmds[0].Op)
	assert.Equal(t, 800.0, cmds[0].ImageWidth)

	s.BackgroundFailed("/assets/plan.png", errors.New("404"))
	assert.Equal(t, []Notice{{Level: NoticeError, Message: MsgImageMissing}}, rec.notices)
	for _, c := range s.DrawCommands() {
		assert.NotEqual(t, "image", c.Op)
	}
}

func TestViewport(t *testing.T) {
	edit := NewViewport(ModeEdit)
	assert.Equal(t, 10.0, edit.SetScale(20))
	assert.Equal(t, MinScale, edit.SetScale(0.01))
	assert.Equal(t, 1.23, edit.SetScale(1.234))
	assert.Equal(t, 123, edit.Percent())

	probe := NewViewport(ModeProbe)
	assert.Equal(t, 50.0, probe.SetScale(80))

	v := NewViewport(ModeEdit)
	v.SetScale(2)
	v.Pan(geom.Pt(10, -20))
	p := geom.Pt(7, 9)
	assert.Equal(t, geom.Pt(24, -2), v.ToView(p))
	assert.Equal(t, p, v.ToDocument(v.ToView(p)))
	assert.Equal(t, v.ToView(p), v.Matrix().Apply(p))
}

func TestGate(t *testing.T) {
	fired := 0
	g := NewGate(func() { fired++ })
	g.Add(2)

	g.Done()
	assert.False(t, g.Fired())
	assert.Equal(t, 1, g.Pending())

	g.Done()
	assert.True(t, g.Fired())
	g.Done()
	g.Add(1)
	g.Done()
	assert.Equal(t, 1, fired)
}

func TestHitTestDocument_UnitFirst(t *testing.T) {
	s, groups := newFixture(t)
	hit := HitTestDocument(s.Document(), geom.Pt(20, 80), DefaultHitOptions)
	require.True(t, hit.OK())
	assert.Equal(t, HitFill, hit.Kind)
	assert.Equal(t, document.Unit, hit.Layer)
	assert.Same(t, groups[0], hit.Group)

	hit = HitTestDocument(s.Document(), geom.Pt(150, 150), DefaultHitOptions)
	assert.Equal(t, document.House, hit.Layer)

	assert.False(t, HitTestDocument(s.Document(), geom.Pt(500, 500), DefaultHitOptions).OK())
}

func TestHitTestLayer_TopmostWins(t *testing.T) {
	l := &document.Layer{Kind: document.Unit}
	lower := rectGroup(document.Unit, "L", 0, 0, 100, 100)
	upper := rectGroup(document.Unit, "U", 50, 50, 100, 100)
	l.Add(lower)
	l.Add(upper)

	hit := HitTestLayer(l, geom.Pt(75, 75), DefaultHitOptions)
	assert.Same(t, upper, hit.Group)

	l.BringToFront(lower)
	hit = HitTestLayer(l, geom.Pt(75, 75), DefaultHitOptions)
	assert.Same(t, lower, hit.Group)
}

func TestBuildSceneGraph_Root(t *testing.T) {
	s, _ := newFixture(t)
	sg := BuildSceneGraph(s.sceneInput())
	require.NotNil(t, sg.Root)
	assert.Same(t, sg.Root, sg.NodesByID["root"])
	assert.Nil(t, sg.Root.Parent)
	assert.Len(t, sg.Root.Children, 2, "house and unit layers")
	assert.NotEmpty(t, CompileDrawCommands(sg))

	assert.Nil(t, BuildSceneGraph(SceneInput{}).Root)
}

func TestDrawCommands_Edit(t *testing.T) {
	s, groups := newFixture(t)
	s.Select(groups[0].Outline)

	cmds := s.DrawCommands()
	var paths, texts, handles int
	for _, c := range cmds {
		switch {
		case c.Op == "text":
			texts++
		case strings.HasPrefix(c.ObjectID, "selection/"):
			handles++
		case c.Op == "path":
			paths++
		}
	}
	assert.Equal(t, 4, paths)
	assert.Equal(t, 4, texts)
	assert.Equal(t, 4, handles)

	out := s.Render()
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, len(cmds))
	assert.Equal(t, []any{"M", 0.0, 0.0}, decoded[0]["path"].([]any)[0])
}

func TestDrawCommands_DrawingShown(t *testing.T) {
	s := newEmpty(t)
	s.PointerDown(at(0, 0))
	s.PointerUp(at(0, 0))
	s.PointerMove(at(30, 0))

	var found bool
	for _, c := range s.DrawCommands() {
		if c.ObjectID == "drawing/outline" {
			found = true
			assert.Empty(t, c.Fill, "open paths are not filled")
			assert.Len(t, c.Path, 2)
		}
	}
	assert.True(t, found)
}

func TestDrawCommands_Probe(t *testing.T) {
	s, _ := newProbe(t, &recorder{}, Options{})
	s.Click(at(100, 100))

	var circles int
	for _, c := range s.DrawCommands() {
		assert.NotEqual(t, "text", c.Op, "labels are hidden")
		if c.Op == "path" {
			assert.True(t, strings.HasSuffix(c.Stroke, "03"), c.Stroke)
		}
		if c.Op == "circle" {
			circles++
			assert.Equal(t, 100.0, c.X)
			assert.Equal(t, float64(DefaultMarkerSize), c.Radius)
		}
	}
	assert.Equal(t, 1, circles)
}

func TestDrawCommands_ScopedProbe(t *testing.T) {
	doc := document.NewSampleDocument()
	bedroom := doc.Layer(document.Unit).Children[0]
	s := NewSession(Options{Mode: ModeProbe, Scope: bedroom.ID})
	s.LoadDocument(doc)

	var paths []DrawCommand
	for _, c := range s.DrawCommands() {
		if c.Op == "path" {
			paths = append(paths, c)
		}
	}
	require.Len(t, paths, 1)
	assert.Equal(t, bedroom.ID+"/outline", paths[0].ObjectID)
	assert.Equal(t, "#cc3e5aff", paths[0].Stroke)
	assert.Equal(t, float64(scopeStrokeWidth), paths[0].StrokeWidth)
}

func TestWithAlpha(t *testing.T) {
	assert.Equal(t, "#007accff", withAlpha("#007acccc", 1))
	assert.Equal(t, "#007acc00", withAlpha("#007acc", 0))
	assert.Equal(t, "red", withAlpha("red", 0.5))
}

func TestOptionsFromConfig(t *testing.T) {
	p := geom.Pt(3, 4)
	opts := OptionsFromConfig(config.Options{Mode: 1, ReadOnly: true, Scope: "shape_1", Size: 20, Point: &p})
	assert.Equal(t, ModeProbe, opts.Mode)
	assert.True(t, opts.ReadOnly)
	assert.Equal(t, "shape_1", opts.Scope)
	assert.Equal(t, 20.0, opts.MarkerSize)
	assert.Equal(t, &p, opts.Point)

	assert.Equal(t, ModeEdit, OptionsFromConfig(config.Options{Mode: 7}).Mode)
	assert.Equal(t, SnapNearest, opts.Snap)
	assert.Equal(t, SnapNext, OptionsFromConfig(config.Options{Snap: config.SnapNext}).Snap)
}

func TestSnapOptionReachesSession(t *testing.T) {
	q, err := url.ParseQuery("snap=next")
	require.NoError(t, err)
	s := NewSession(OptionsFromConfig(config.ParseOptions(q)))
	assert.Equal(t, SnapNext, s.snap)
}
