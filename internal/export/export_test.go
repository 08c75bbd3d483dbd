package export

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/engine"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
	"github.com/plantrace/plantrace/backend-go/internal/plan"
)

func TestFrame(t *testing.T) {
	f := Frame{Bounds: geom.Rect{X: 40, Y: 40, Width: 400, Height: 260}, Scale: 1, Padding: 20}
	w, h := f.Size()
	assert.Equal(t, 440, w)
	assert.Equal(t, 300, h)

	big := Frame{Bounds: geom.Rect{Width: 10000, Height: 500}, Scale: 1, Padding: 20}.Fit()
	w, _ = big.Size()
	assert.LessOrEqual(t, w, MaxSide)
	assert.InDelta(t, (MaxSide-40)/10000.0, big.Scale, 1e-9)

	w, h = Frame{}.Fit().Size()
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
}

func TestToMatrix(t *testing.T) {
	m := toMatrix([]float64{2, 0, 0, 3, 10, 20})
	assert.Equal(t, 2.0, m.A)
	assert.Equal(t, 10.0, m.C)
	assert.Equal(t, 3.0, m.E)
	assert.Equal(t, 20.0, m.F)

	id := toMatrix(nil)
	assert.Equal(t, 1.0, id.A)
	assert.Equal(t, 0.0, id.C)
}

func redAt(t *testing.T, img image.Image, x, y int) bool {
	t.Helper()
	r, g, b, _ := img.At(x, y).RGBA()
	return r > 0xc000 && g < 0x4000 && b < 0x4000
}

func TestRender(t *testing.T) {
	cmds := []engine.DrawCommand{
		{
			Op:        "path",
			Transform: []float64{1, 0, 0, 1, 0, 0},
			Path:      engine.RectPath(geom.Rect{X: 10, Y: 10, Width: 20, Height: 20}),
			Fill:      "#ff0000ff",
		},
		{Op: "text", Text: "ignored", X: 50, Y: 50},
		{Op: "image", ImageSrc: "/assets/missing.png", ImageWidth: 10, ImageHeight: 10},
	}
	frame := Frame{Bounds: geom.Rect{Width: 60, Height: 60}, Scale: 1}

	dc, err := Render(cmds, frame, nil)
	require.NoError(t, err)
	defer dc.Close()

	img := dc.Image()
	assert.True(t, redAt(t, img, 20, 20), "inside the filled square")
	assert.False(t, redAt(t, img, 45, 45), "outside the square")

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, cmds, frame, nil))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(60, 60), decoded.Bounds().Size())
}

func TestRender_Image(t *testing.T) {
	bg := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		for y := range 4 {
			bg.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	cmds := []engine.DrawCommand{{Op: "image", ImageSrc: "bg", ImageWidth: 40, ImageHeight: 40}}

	dc, err := Render(cmds, Frame{Bounds: geom.Rect{Width: 40, Height: 40}, Scale: 1}, map[string]image.Image{"bg": bg})
	require.NoError(t, err)
	defer dc.Close()
	assert.True(t, redAt(t, dc.Image(), 20, 20))
}

func TestPreview(t *testing.T) {
	doc := document.NewSampleDocument()

	cmds, frame, images := Preview(doc, nil, "", 1, nil)
	assert.Nil(t, images)
	assert.Equal(t, geom.Rect{X: 40, Y: 40, Width: 400, Height: 260}, frame.Bounds)
	assert.NotEmpty(t, cmds)
	for _, c := range cmds {
		assert.NotEqual(t, "image", c.Op)
	}

	bg := image.NewRGBA(image.Rect(0, 0, 800, 600))
	cmds, frame, images = Preview(doc, bg, "/assets/plan.png", 0.5, nil)
	assert.Equal(t, geom.Rect{Width: 800, Height: 600}, frame.Bounds)
	assert.Equal(t, 0.5, frame.Scale)
	assert.Contains(t, images, "/assets/plan.png")
	require.NotEmpty(t, cmds)
	assert.Equal(t, "image", cmds[0].Op)
}

type fakePlans struct {
	doc *document.Document
	src string
}

func (f fakePlans) Document(_ context.Context, planID string) (*document.Document, *plan.Plan, error) {
	if planID != "plan_1" {
		return nil, nil, plan.ErrNotFound
	}
	return f.doc, &plan.Plan{ID: planID, Src: f.src}, nil
}

type fakeImages struct{ calls int }

func (f *fakeImages) Decode(context.Context, string) (image.Image, error) {
	f.calls++
	return image.NewRGBA(image.Rect(0, 0, 100, 50)), nil
}

func TestExportPlan(t *testing.T) {
	images := &fakeImages{}
	h := NewHandler(fakePlans{doc: document.NewSampleDocument(), src: "/assets/plan.png"}, images)
	router := mux.NewRouter()
	router.HandleFunc("/export/plans/{planId}.png", h.ExportPlan)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/export/plans/plan_1.png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	// Background (0,0,100,50) unioned with the house (40,40,400,260).
	assert.Equal(t, image.Pt(480, 340), img.Bounds().Size())
	assert.Equal(t, 1, images.calls)

	assert.Equal(t, http.StatusNotFound, get("/export/plans/plan_2.png").Code)
	assert.Equal(t, http.StatusBadRequest, get("/export/plans/plan_1.png?scale=0").Code)
	assert.Equal(t, http.StatusBadRequest, get("/export/plans/plan_1.png?scale=abc").Code)
}
