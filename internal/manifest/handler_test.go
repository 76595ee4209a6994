package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"aiostreams/internal/apierror"
	"aiostreams/internal/engine/mocks"
	"aiostreams/internal/metrics"
	"aiostreams/internal/userconfig"
	"aiostreams/internal/users"
	"aiostreams/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noStore struct{}

func (noStore) Authenticate(context.Context, string, string) (*users.User, error) {
	return nil, users.ErrUserNotFound
}

func newTestRouter(t *testing.T, eng *mocks.MockEngine, m *metrics.Metrics) *gin.Engine {
	t.Helper()

	r := gin.New()
	r.Use(apierror.Middleware(zap.NewNop()))
	h := NewHandler(NewService(baseSettings(), eng), zap.NewNop(), m)
	h.RegisterRoutes(r.Group("/stremio"), noStore{})
	return r
}

func TestManifestAnonymousDoesNotTouchEngine(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	m := metrics.New()

	rr := httptest.NewRecorder()
	newTestRouter(t, eng, m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stremio/manifest.json", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got models.Manifest
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "aio", got.ID)
	assert.True(t, got.BehaviorHints.ConfigurationRequired)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ManifestRequests.WithLabelValues("anonymous")))
}

func TestManifestConfiguredUsesEngine(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)

	data := models.UserData{UUID: "abcdefghijklmnop", AddonName: "Mine"}
	eng.EXPECT().Build(gomock.Any(), data).Return(sampleSnapshot(), nil).Times(1)

	enc, err := userconfig.EncodeInline(data)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	newTestRouter(t, eng, metrics.New()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stremio/"+enc+"/manifest.json", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got models.Manifest
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "aio.abcdefghijkl", got.ID)
	assert.Equal(t, "Mine", got.Name)
	assert.False(t, got.BehaviorHints.ConfigurationRequired)
	assert.Len(t, got.Catalogs, 1)
}

func TestManifestEngineFailureIsOneInternalError(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	m := metrics.New()

	eng.EXPECT().Build(gomock.Any(), gomock.Any()).Return(nil, errors.New("upstream timeout")).Times(1)

	enc, err := userconfig.EncodeInline(models.UserData{UUID: "u"})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	newTestRouter(t, eng, m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stremio/"+enc+"/manifest.json", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body, 1)
	assert.Contains(t, body, "error")
	assert.NotContains(t, rr.Body.String(), "upstream timeout")
	assert.NotContains(t, rr.Body.String(), `"id"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ManifestRequests.WithLabelValues("error")))
}

func TestManifestInvalidConfigSkipsEngine(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)

	rr := httptest.NewRecorder()
	newTestRouter(t, eng, metrics.New()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stremio/@@@/manifest.json", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestManifestMiddlewareRunsFirst(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)

	r := gin.New()
	r.Use(apierror.Middleware(zap.NewNop()))
	h := NewHandler(NewService(baseSettings(), eng), zap.NewNop(), metrics.New())
	h.RegisterRoutes(r.Group("/stremio"), noStore{}, func(c *gin.Context) {
		apierror.Abort(c, apierror.RateLimited())
	})

	enc, err := userconfig.EncodeInline(models.UserData{UUID: "u"})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stremio/"+enc+"/manifest.json", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}
