package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/engine"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
	"github.com/plantrace/plantrace/backend-go/internal/plan"
)

const defaultPadding = 20

// Plans loads decoded plans.
type Plans interface {
	Document(ctx context.Context, planID string) (*document.Document, *plan.Plan, error)
}

// Images decodes a background source into pixels.
type Images interface {
	Decode(ctx context.Context, src string) (image.Image, error)
}

type Handler struct {
	plans  Plans
	images Images
	logger *slog.Logger
}

func NewHandler(plans Plans, images Images) *Handler {
	return &Handler{plans: plans, images: images, logger: slog.Default()}
}

// Preview builds the draw commands and frame for a plan: every shape in
// paint order over its background, framed to the union of both.
func Preview(doc *document.Document, bg image.Image, src string, scale float64, logger *slog.Logger) ([]engine.DrawCommand, Frame, map[string]image.Image) {
	s := engine.NewSession(engine.Options{Mode: engine.ModeEdit, ReadOnly: true, Logger: logger})
	s.LoadDocument(doc)

	var bounds geom.Rect
	var images map[string]image.Image
	if bg != nil && src != "" {
		size := bg.Bounds().Size()
		s.SetBackground(src, float64(size.X), float64(size.Y))
		bounds = geom.Rect{Width: float64(size.X), Height: float64(size.Y)}
		images = map[string]image.Image{src: bg}
	}
	for _, l := range doc.Layers() {
		for _, g := range l.Children {
			bounds = bounds.Union(g.Bounds())
		}
	}

	frame := Frame{Bounds: bounds, Scale: scale, Padding: defaultPadding}.Fit()
	return s.DrawCommands(), frame, images
}

// ExportPlan handles GET /export/plans/{planId}.png. The optional scale
// query parameter (default 1) zooms the preview.
func (h *Handler) ExportPlan(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["planId"]

	scale := 1.0
	if v := r.URL.Query().Get("scale"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 8 {
			http.Error(w, "invalid scale: must be in (0, 8]", http.StatusBadRequest)
			return
		}
		scale = f
	}

	doc, p, err := h.plans.Document(r.Context(), planID)
	if errors.Is(err, plan.ErrNotFound) {
		http.Error(w, "plan not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("load plan for export", "planId", planID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var bg image.Image
	if p.Src != "" && h.images != nil {
		bg, err = h.images.Decode(r.Context(), p.Src)
		if err != nil {
			h.logger.Warn("decode background", "planId", planID, "src", p.Src, "error", err)
			bg = nil
		}
	}

	cmds, frame, images := Preview(doc, bg, p.Src, scale, h.logger)

	var buf bytes.Buffer
	if err := EncodePNG(&buf, cmds, frame, images); err != nil {
		h.logger.Error("render plan", "planId", planID, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	width, height := frame.Size()
	h.logger.Info("plan exported", "planId", planID, "width", width, "height", height, "commands", len(cmds))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}
