package config

import (
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.True(t, cfg.SaveRequiresAuth)
	assert.Equal(t, "sqlite", cfg.Driver())
	assert.Equal(t, "./data/plantrace.db", cfg.SQLitePath())
	assert.Equal(t, []string{"localhost:5173", "localhost:3000"}, cfg.OriginPatterns())
}

func TestDriver(t *testing.T) {
	assert.Equal(t, "pgx", (&Config{DatabaseURL: "postgres://u:p@db/plans"}).Driver())
	assert.Equal(t, "sqlite", (&Config{DatabaseURL: "/var/lib/plans.db"}).Driver())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "loud"}).Level())
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Options
	}{
		{
			name:  "defaults",
			query: "",
			want:  Options{Size: DefaultMarkerSize},
		},
		{
			name:  "probe with scope",
			query: "mode=1&scope=%20shape_1%20&size=6&src=plan.svg",
			want:  Options{Mode: 1, Scope: "shape_1", Size: 6, Src: "plan.svg"},
		},
		{
			name:  "mode out of range",
			query: "mode=5",
			want:  Options{Size: DefaultMarkerSize},
		},
		{
			name:  "mode not a number",
			query: "mode=probe",
			want:  Options{Size: DefaultMarkerSize},
		},
		{
			name:  "readonly numeric",
			query: "readonly=1",
			want:  Options{ReadOnly: true, Size: DefaultMarkerSize},
		},
		{
			name:  "readonly zero",
			query: "readonly=0",
			want:  Options{Size: DefaultMarkerSize},
		},
		{
			name:  "readonly word",
			query: "readonly=yes",
			want:  Options{ReadOnly: true, Size: DefaultMarkerSize},
		},
		{
			name:  "zero size falls back",
			query: "size=0",
			want:  Options{Size: DefaultMarkerSize},
		},
		{
			name:  "point pair",
			query: "point=12.5,30",
			want:  Options{Size: DefaultMarkerSize, Point: &geom.Point{X: 12.5, Y: 30}},
		},
		{
			name:  "point single",
			query: "point=7",
			want:  Options{Size: DefaultMarkerSize, Point: &geom.Point{X: 7, Y: 7}},
		},
		{
			name:  "point extra parts ignored",
			query: "point=1,2,3",
			want:  Options{Size: DefaultMarkerSize, Point: &geom.Point{X: 1, Y: 2}},
		},
		{
			name:  "point xy",
			query: "pointX=3&pointY=4",
			want:  Options{Size: DefaultMarkerSize, Point: &geom.Point{X: 3, Y: 4}},
		},
		{
			name:  "snap next",
			query: "snap=%20Next",
			want:  Options{Size: DefaultMarkerSize, Snap: SnapNext},
		},
		{
			name:  "snap unknown is nearest",
			query: "snap=corner",
			want:  Options{Size: DefaultMarkerSize},
		},
		{
			name:  "point wins over xy",
			query: "point=1,1&pointX=3&pointY=4",
			want:  Options{Size: DefaultMarkerSize, Point: &geom.Point{X: 1, Y: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ParseOptions(q))
		})
	}
}

func TestOptionsQueryRoundTrip(t *testing.T) {
	opts := Options{Mode: 1, ReadOnly: true, Src: "a.png", Scope: "s", Size: 4, Point: &geom.Point{X: 1, Y: 2}, Snap: SnapNext}
	assert.Equal(t, opts, ParseOptions(opts.Query()))
}
