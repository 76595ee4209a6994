package users

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aiostreams/internal/apierror"
	"aiostreams/pkg/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testTokens = TokenService{Secret: []byte("test-secret"), Issuer: "aio", Duration: time.Hour}

func newRouter(store *database.Handle) *gin.Engine {
	r := gin.New()
	r.Use(apierror.Middleware(zap.NewNop()))
	NewHandler(NewRepo(store), testTokens).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestUserLifecycleOverHTTP(t *testing.T) {
	t.Parallel()
	r := newRouter(newTestStore(t))

	rr := do(t, r, http.MethodPost, "/api/v1/user", "", gin.H{
		"password": "password123",
		"config":   gin.H{"addonName": "Mine"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		UUID  string `json:"uuid"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.NotEmpty(t, created.UUID)
	require.NotEmpty(t, created.Token)

	rr = do(t, r, http.MethodGet, "/api/v1/user", created.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"addonName":"Mine"`)
	assert.Contains(t, rr.Body.String(), created.UUID)

	rr = do(t, r, http.MethodPost, "/api/v1/user/login", "", gin.H{"uuid": created.UUID, "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, r, http.MethodPost, "/api/v1/user/login", "", gin.H{"uuid": created.UUID, "password": "password123"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodPut, "/api/v1/user", created.Token, gin.H{"config": gin.H{"addonName": "Renamed"}})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodDelete, "/api/v1/user", created.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodGet, "/api/v1/user", created.Token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateUserValidation(t *testing.T) {
	t.Parallel()
	r := newRouter(newTestStore(t))

	rr := do(t, r, http.MethodPost, "/api/v1/user", "", gin.H{"password": "short"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, r, http.MethodPost, "/api/v1/user", "", gin.H{
		"password": "password123",
		"config":   gin.H{"addonLogo": "not a url"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), string(apierror.CodeInvalidConfig))
}

func TestUserRoutesNeedToken(t *testing.T) {
	t.Parallel()
	r := newRouter(newTestStore(t))

	rr := do(t, r, http.MethodGet, "/api/v1/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, r, http.MethodGet, "/api/v1/user", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUserRoutesBeforeStorageReady(t *testing.T) {
	t.Parallel()
	r := newRouter(database.NewHandle())

	rr := do(t, r, http.MethodPost, "/api/v1/user", "", gin.H{"password": "password123"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), string(apierror.CodeStorageNotReady))
}
