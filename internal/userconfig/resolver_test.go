package userconfig

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aiostreams/internal/apierror"
	"aiostreams/internal/users"
	"aiostreams/pkg/database"
	"aiostreams/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	users map[string]users.User
	err   error
}

func (f fakeStore) Authenticate(_ context.Context, uuid, password string) (*users.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[uuid]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	if u.PasswordHash != password {
		return nil, users.ErrInvalidPassword
	}
	return &u, nil
}

func newRouter(store Authenticator, seen *Config) *gin.Engine {
	r := gin.New()
	r.Use(apierror.Middleware(zap.NewNop()))
	h := func(c *gin.Context) {
		*seen = FromContext(c)
		c.Status(http.StatusNoContent)
	}
	r.GET("/stremio/manifest.json", Resolve(store), h)
	r.GET("/stremio/:id/manifest.json", Resolve(store), h)
	r.GET("/stremio/:id/:password/manifest.json", Resolve(store), h)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestResolveAnonymous(t *testing.T) {
	t.Parallel()

	var seen Config
	rr := get(newRouter(fakeStore{}, &seen), "/stremio/manifest.json")
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, Anonymous{}, seen)
}

func TestResolveInline(t *testing.T) {
	t.Parallel()

	enc, err := EncodeInline(models.UserData{AddonName: "Inline"})
	require.NoError(t, err)

	var seen Config
	rr := get(newRouter(fakeStore{}, &seen), "/stremio/"+enc+"/manifest.json")
	require.Equal(t, http.StatusNoContent, rr.Code)

	cfg, ok := seen.(Configured)
	require.True(t, ok)
	assert.Equal(t, "Inline", cfg.Data.AddonName)
}

func TestResolveInlineRejectsGarbage(t *testing.T) {
	t.Parallel()

	var seen Config
	r := newRouter(fakeStore{}, &seen)

	rr := get(r, "/stremio/!!notbase64!!/manifest.json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	bad := base64.RawURLEncoding.EncodeToString([]byte(`{"addonLogo":"ftp:nope"}`))
	rr = get(r, "/stremio/"+bad+"/manifest.json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), string(apierror.CodeInvalidConfig))
	assert.Nil(t, seen)
}

func TestResolveStored(t *testing.T) {
	t.Parallel()

	store := fakeStore{users: map[string]users.User{
		"u-1": {UUID: "u-1", PasswordHash: "pw", Config: models.UserData{AddonName: "Stored"}},
	}}

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{name: "ok", path: "/stremio/u-1/pw/manifest.json", wantCode: http.StatusNoContent},
		{name: "bad password", path: "/stremio/u-1/nope/manifest.json", wantCode: http.StatusUnauthorized},
		{name: "unknown user", path: "/stremio/u-2/pw/manifest.json", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var seen Config
			rr := get(newRouter(store, &seen), tt.path)
			require.Equal(t, tt.wantCode, rr.Code)
			if tt.wantCode == http.StatusNoContent {
				cfg, ok := seen.(Configured)
				require.True(t, ok)
				assert.Equal(t, "u-1", cfg.Data.UUID)
				assert.Equal(t, "Stored", cfg.Data.AddonName)
			}
		})
	}
}

func TestResolveStoredBeforeStorageReady(t *testing.T) {
	t.Parallel()

	var seen Config
	rr := get(newRouter(fakeStore{err: database.ErrNotReady}, &seen), "/stremio/u-1/pw/manifest.json")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestDecodeInlineAcceptsStdAlphabet(t *testing.T) {
	t.Parallel()

	std := base64.StdEncoding.EncodeToString([]byte(`{"addonName":"Padded"}`))
	data, err := DecodeInline(std)
	require.NoError(t, err)
	assert.Equal(t, "Padded", data.AddonName)
}
