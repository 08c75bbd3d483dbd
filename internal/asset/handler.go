// Package asset stores uploaded floor plan images and reports their
// intrinsic sizes.
package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/plantrace/plantrace/backend-go/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

var ErrNotFound = errors.New("asset not found")

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID     string  `json:"id"`
	URL    string  `json:"url"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Type   string  `json:"type"`
	Name   string  `json:"name"`
}

// Handler serves asset upload and retrieval endpoints.
type Handler struct {
	dir    string
	client *http.Client
}

// NewHandler creates a new asset handler that stores files in dir.
func NewHandler(dir string) *Handler {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir, client: &http.Client{Timeout: 10 * time.Second}}
}

// Upload handles POST /assets/upload (multipart form with "file" field).
// Raster images are stored as PNG; SVG documents are stored as sent.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 10MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	size, err := Sniff(bytes.NewReader(data))
	if err != nil {
		http.Error(w, "only PNG, JPEG, WebP and SVG images are supported", http.StatusBadRequest)
		return
	}

	assetID := typeid.NewAssetID()
	var filename string
	if size.Format == "svg" {
		filename = assetID + ".svg"
		err = os.WriteFile(filepath.Join(h.dir, filename), data, 0644)
	} else {
		filename = assetID + ".png"
		err = h.storePNG(filepath.Join(h.dir, filename), data)
	}
	if err != nil {
		slog.Error("store asset", "error", err, "format", size.Format)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	slog.Info("asset uploaded", "id", assetID, "format", size.Format, "width", size.Width, "height", size.Height)
	writeJSON(w, http.StatusOK, UploadResponse{
		ID:     assetID,
		URL:    "/assets/" + filename,
		Width:  size.Width,
		Height: size.Height,
		Type:   size.Format,
		Name:   header.Filename,
	})
}

func (h *Handler) storePNG(dst string, data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create asset file: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		os.Remove(dst)
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Size handles GET /assets/{file}/size.
func (h *Handler) Size(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["file"]
	if typeid.Validate(strings.TrimSuffix(name, path.Ext(name)), typeid.PrefixAsset) != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	size, err := h.sniffFile(name)
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrUnsupported):
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
	case err != nil:
		slog.Error("sniff asset", "file", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		writeJSON(w, http.StatusOK, size)
	}
}

// Measure reports the size of a background source. Paths under /assets/
// are read from disk; absolute http(s) URLs are fetched.
func (h *Handler) Measure(ctx context.Context, src string) (Size, error) {
	rc, err := h.open(ctx, src)
	if err != nil {
		return Size{}, err
	}
	defer rc.Close()
	return Sniff(rc)
}

// Decode loads a raster background source. SVG sources are reported as
// ErrUnsupported.
func (h *Handler) Decode(ctx context.Context, src string) (image.Image, error) {
	rc, err := h.open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	if isSVG(data[:min(len(data), 512)]) {
		return nil, ErrUnsupported
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return nil, ErrUnsupported
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src, err)
	}
	return img, nil
}

func (h *Handler) open(ctx context.Context, src string) (io.ReadCloser, error) {
	if name, ok := strings.CutPrefix(src, "/assets/"); ok {
		f, err := h.openFile(name)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, src)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s answered %d", ErrNotFound, src, resp.StatusCode)
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, maxUploadSize), resp.Body}, nil
}

func (h *Handler) sniffFile(name string) (Size, error) {
	f, err := h.openFile(name)
	if err != nil {
		return Size{}, err
	}
	defer f.Close()
	return Sniff(f)
}

func (h *Handler) openFile(name string) (*os.File, error) {
	// Clean against a rooted path so ".." cannot leave the asset dir.
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" {
		return nil, ErrNotFound
	}

	f, err := os.Open(filepath.Join(h.dir, filepath.FromSlash(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	return f, nil
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset IDs are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

// Delete removes an asset file from disk.
func (h *Handler) Delete(assetID string) error {
	for _, ext := range []string{".png", ".svg"} {
		if err := os.Remove(filepath.Join(h.dir, assetID+ext)); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, assetID)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
