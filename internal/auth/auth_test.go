package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/plantrace/plantrace/backend-go/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := NewService(st, "test-secret")
	svc.cost = bcrypt.MinCost
	return svc
}

func TestRegisterLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	reg, err := svc.Register(ctx, "a@example.com", "password1", "Ann")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reg.User.ID, "user_"))

	sub, err := svc.ValidateToken(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, sub)

	_, err = svc.Register(ctx, "a@example.com", "password2", "Other")
	assert.ErrorIs(t, err, ErrEmailTaken)

	login, err := svc.Login(ctx, "a@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, reg.User, login.User)

	_, err = svc.Login(ctx, "a@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "b@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	user, err := svc.GetUser(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.DisplayName)
	_, err = svc.GetUser(ctx, "user_missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := newTestService(t)

	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{Subject: "user_1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	cases := map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": sign(jwt.SigningMethodHS256, []byte("other"), valid),
		"expired": sign(jwt.SigningMethodHS256, []byte("test-secret"), jwt.RegisteredClaims{
			Subject: "user_1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}),
		"no expiry":  sign(jwt.SigningMethodHS256, []byte("test-secret"), jwt.RegisteredClaims{Subject: "user_1"}),
		"no subject": sign(jwt.SigningMethodHS256, []byte("test-secret"), jwt.RegisteredClaims{ExpiresAt: valid.ExpiresAt}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	sub, err := svc.ValidateToken(sign(jwt.SigningMethodHS256, []byte("test-secret"), valid))
	require.NoError(t, err)
	assert.Equal(t, "user_1", sub)
}

func TestHandlers(t *testing.T) {
	svc := newTestService(t)
	h := NewHandler(svc)

	post := func(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		return rec
	}

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing name", `{"email":"a@example.com","password":"password1"}`, http.StatusBadRequest},
		{"bad email", `{"email":"nope","password":"password1","displayName":"A"}`, http.StatusBadRequest},
		{"short password", `{"email":"a@example.com","password":"short","displayName":"A"}`, http.StatusBadRequest},
		{"ok", `{"email":" A@Example.com ","password":"password1","displayName":"Ann"}`, http.StatusCreated},
		{"taken", `{"email":"a@example.com","password":"password1","displayName":"Ann"}`, http.StatusConflict},
	}
	for _, c := range cases {
		rec := post(h.Register, c.body)
		assert.Equal(t, c.want, rec.Code, c.name)
	}

	rec := post(h.Login, `{"email":"a@example.com","password":"password1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res AuthResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))

	rec = post(h.Login, `{"email":"a@example.com","password":"password2"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	me := svc.AuthMiddleware(http.HandlerFunc(h.Me))
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rec = httptest.NewRecorder()
	me.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"displayName":"Ann"`)
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)
	reg, err := svc.Register(context.Background(), "a@example.com", "password1", "Ann")
	require.NoError(t, err)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name     string
		header   string
		handler  http.Handler
		want     int
		wantUser string
	}{
		{"required missing", "", svc.AuthMiddleware(next), http.StatusUnauthorized, ""},
		{"required basic", "Basic abc", svc.AuthMiddleware(next), http.StatusUnauthorized, ""},
		{"required bad token", "Bearer abc", svc.AuthMiddleware(next), http.StatusUnauthorized, ""},
		{"required ok", "Bearer " + reg.Token, svc.AuthMiddleware(next), http.StatusNoContent, reg.User.ID},
		{"optional anonymous", "", svc.OptionalAuth(next), http.StatusNoContent, ""},
		{"optional bad token", "Bearer abc", svc.OptionalAuth(next), http.StatusUnauthorized, ""},
		{"optional ok", "Bearer " + reg.Token, svc.OptionalAuth(next), http.StatusNoContent, reg.User.ID},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			rec := httptest.NewRecorder()
			c.handler.ServeHTTP(rec, req)
			assert.Equal(t, c.want, rec.Code)
			assert.Equal(t, c.wantUser, seen)
		})
	}
}
