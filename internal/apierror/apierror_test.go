package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	r := gin.New()
	r.Use(Middleware(zap.NewNop()))
	r.GET("/", h)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(rr, req)
	return rr
}

func TestMiddlewareRendersAPIError(t *testing.T) {
	t.Parallel()

	rr := serve(t, func(c *gin.Context) {
		Abort(c, RateLimited())
	})

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, string(CodeRateLimited), body.Error.Code)
}

func TestMiddlewareHidesInternalCause(t *testing.T) {
	t.Parallel()

	rr := serve(t, func(c *gin.Context) {
		_ = c.Error(errors.New("dial tcp 10.0.0.1: connection refused"))
	})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
	assert.Contains(t, rr.Body.String(), string(CodeInternal))
}

func TestMiddlewareLeavesWrittenResponses(t *testing.T) {
	t.Parallel()

	rr := serve(t, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		_ = c.Error(errors.New("late"))
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}

func TestFromUnwrapsWrapped(t *testing.T) {
	t.Parallel()

	base := UserNotFound()
	wrapped := errors.Join(errors.New("lookup"), base)
	assert.Equal(t, CodeUserNotFound, From(wrapped).Code)
	assert.Equal(t, CodeInternal, From(errors.New("x")).Code)
}
