package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, image.NewGray(image.Rect(0, 0, 64, 48)), nil))

	cases := []struct {
		name string
		data string
		want Size
	}{
		{"png", string(pngBytes(t, 30, 20)), Size{Width: 30, Height: 20, Format: "png"}},
		{"jpeg", jpg.String(), Size{Width: 64, Height: 48, Format: "jpeg"}},
		{"svg width and height", `<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg" width="120px" height="80" viewBox="0 0 10 10"></svg>`,
			Size{Width: 120, Height: 80, Format: "svg"}},
		{"svg viewBox", `<svg viewBox="0,0,800,600"><rect/></svg>`, Size{Width: 800, Height: 600, Format: "svg"}},
		{"svg width only", "\n<svg width='50' viewBox='0 0 640 480'></svg>", Size{Width: 640, Height: 480, Format: "svg"}},
		{"svg no size", `<svg></svg>`, Size{Format: "svg"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Sniff(strings.NewReader(c.data))
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}

	_, err := Sniff(strings.NewReader("plain text, not an image"))
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = Sniff(strings.NewReader(`<html><svg width="1" height="1"/></html>`))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestLeadingFloat(t *testing.T) {
	assert.Equal(t, 120.0, leadingFloat(" 120px"))
	assert.Equal(t, 12.5, leadingFloat("12.5em"))
	assert.Equal(t, 0.0, leadingFloat("auto"))
}

func upload(t *testing.T, h *Handler, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	return rec
}

func TestUploadAndSize(t *testing.T) {
	dir := t.TempDir()
	h := NewHandler(dir)

	rec := upload(t, h, "plan.png", pngBytes(t, 30, 20))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.True(t, strings.HasPrefix(res.ID, "asset_"))
	assert.Equal(t, "/assets/"+res.ID+".png", res.URL)
	assert.Equal(t, 30.0, res.Width)
	assert.Equal(t, "plan.png", res.Name)
	assert.FileExists(t, filepath.Join(dir, res.ID+".png"))

	rec = upload(t, h, "plan.svg", []byte(`<svg viewBox="0 0 800 600"></svg>`))
	require.Equal(t, http.StatusOK, rec.Code)
	var svg UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&svg))
	assert.Equal(t, "svg", svg.Type)
	assert.Equal(t, 800.0, svg.Width)

	rec = upload(t, h, "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	router := mux.NewRouter()
	router.HandleFunc("/assets/{file}/size", h.Size)
	for file, want := range map[string]int{
		res.ID + ".png": http.StatusOK,
		svg.ID + ".svg": http.StatusOK,
		"missing.png":   http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/"+file+"/size", nil))
		assert.Equal(t, want, rec.Code, file)
	}

	size, err := h.Measure(context.Background(), res.URL)
	require.NoError(t, err)
	assert.Equal(t, Size{Width: 30, Height: 20, Format: "png"}, size)

	img, err := h.Decode(context.Background(), res.URL)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(30, 20), img.Bounds().Size())
	_, err = h.Decode(context.Background(), svg.URL)
	assert.ErrorIs(t, err, ErrUnsupported)

	require.NoError(t, h.Delete(res.ID))
	_, err = os.Stat(filepath.Join(dir, res.ID+".png"))
	assert.True(t, os.IsNotExist(err))
	assert.ErrorIs(t, h.Delete(res.ID), ErrNotFound)
}

func TestMeasureRemote(t *testing.T) {
	data := pngBytes(t, 12, 7)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plan.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	h := NewHandler(t.TempDir())
	size, err := h.Measure(context.Background(), srv.URL+"/plan.png")
	require.NoError(t, err)
	assert.Equal(t, 12.0, size.Width)

	_, err = h.Measure(context.Background(), srv.URL+"/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.Measure(context.Background(), "relative/plan.png")
	assert.ErrorIs(t, err, ErrNotFound)
}
