package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mission-control/pkg/config"
	"mission-control/pkg/errutil"
	"mission-control/pkg/health"
	"mission-control/pkg/httpapi"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type boomRoute struct{}

func (boomRoute) RegisterRoutes(r gin.IRouter) {
	r.GET("/activity", func(c *gin.Context) {
		httpapi.Abort(c, errutil.NotFound("nothing here", nil))
	})
	r.GET("/limited", func(c *gin.Context) {
		if _, err := httpapi.QueryInt(c, "limit", 10); err != nil {
			httpapi.Abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func newEngine() *gin.Engine {
	cfg := &config.Config{}
	return NewEngine(EngineParams{
		Config: cfg,
		Health: health.ProvideHealth(health.HealthParams{}),
		Routes: []httpapi.Route{boomRoute{}},
	})
}

func TestPreflight(t *testing.T) {
	r := newEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/activity", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	r := newEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.NotZero(t, body["timestamp"])
}

func TestRouteErrorsAreRendered(t *testing.T) {
	r := newEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/activity", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "nothing here", body["error"])
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestQueryErrorsCarryDetails(t *testing.T) {
	r := newEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited?limit=ten", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error   string           `json:"error"`
		Details []errutil.Detail `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "limit must be an integer", body.Error)
	require.Equal(t, []errutil.Detail{{Field: "limit", Message: "must be an integer"}}, body.Details)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited?limit=5", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
}
