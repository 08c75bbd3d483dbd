package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/engine"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeSample(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(document.NewSampleResponse("plan_1"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestValidate(t *testing.T) {
	out, err := run(t, "", "validate", writeSample(t))
	require.NoError(t, err)

	var res validateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Houses)
	assert.Equal(t, 2, res.Units)
	assert.Contains(t, res.Names, "主卧")
}

func TestValidate_SaveRequestOnStdin(t *testing.T) {
	req, err := document.NewSaveRequest(nil, document.NewSampleDocument())
	require.NoError(t, err)
	data, err := json.Marshal(req)
	require.NoError(t, err)

	out, err := run(t, string(data), "validate", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"houses": 1`)
}

func TestValidate_Failures(t *testing.T) {
	_, err := run(t, `{"Code":1,"Message":"boom"}`, "validate", "-")
	assert.ErrorIs(t, err, document.ErrLoadFailed)

	_, err = run(t, `not json`, "validate", "-")
	assert.Error(t, err)

	_, err = run(t, "", "validate", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestProbe(t *testing.T) {
	out, err := run(t, "", "probe", "sample", "100", "100")
	require.NoError(t, err)

	var report engine.ProbeReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "主卧", report.Name)
	assert.Equal(t, 100, report.X)

	out, err = run(t, "", "probe", "sample", "5", "5")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, engine.CommonAreaName, report.Name)

	_, err = run(t, "", "probe", "sample", "x", "5")
	assert.Error(t, err)
}

func TestSample(t *testing.T) {
	out, err := run(t, "", "sample")
	require.NoError(t, err)

	var resp document.LoadResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	doc, err := resp.Document()
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Len())
}

func TestRender(t *testing.T) {
	dir := t.TempDir()

	bgPath := filepath.Join(dir, "floor.png")
	img := image.NewRGBA(image.Rect(0, 0, 500, 400))
	img.Set(1, 1, color.Black)
	f, err := os.Create(bgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	outPath := filepath.Join(dir, "out.png")
	out, err := run(t, "", "render", "sample", "-o", outPath, "--background", bgPath, "--scale", "0.5")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+outPath)

	rendered, err := os.Open(outPath)
	require.NoError(t, err)
	defer rendered.Close()
	cfg, err := png.DecodeConfig(rendered)
	require.NoError(t, err)
	assert.Equal(t, 290, cfg.Width, "500 * 0.5 plus padding on both sides")
}

func TestFetchFromServer(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/plans/plan_1/data", r.URL.Path)
		json.NewEncoder(w).Encode(document.NewSampleResponse("plan_1"))
	}))
	defer srv.Close()

	t.Setenv("PLANECTL_TOKEN", "secret")
	out, err := run(t, "", "validate", "plan:plan_1", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, `"units": 2`)
	assert.Equal(t, "Bearer secret", auth)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planectl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: http://plans.internal\nlog_level: debug\n"), 0o644))

	cmd := newRootCmd()
	v, err := loadConfig(cmd, path)
	require.NoError(t, err)
	assert.Equal(t, "http://plans.internal", v.GetString(cfgKeyServer))
	assert.Equal(t, defaultScale, v.GetFloat64(cfgKeyScale))

	t.Setenv("PLANECTL_SERVER", "http://override")
	v, err = loadConfig(cmd, path)
	require.NoError(t, err)
	assert.Equal(t, "http://override", v.GetString(cfgKeyServer))
}
