package plausiblegin_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DockYard/plausible-proxy/plausible"
	"github.com/DockYard/plausible-proxy/plausible/plausiblegin"
)

func newEngine(t *testing.T, providerURL string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	interceptor, err := plausible.New(plausible.Options{ProviderURL: providerURL}, nil)
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(plausiblegin.Middleware(interceptor))

	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "home")
	})
	engine.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "host app not found")
	})

	return engine
}

func TestUnitTestMiddlewarePassesThroughToRoutes(t *testing.T) {
	engine := newEngine(t, "https://plausible.invalid")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "home", rec.Body.String())
}

func TestUnitTestMiddlewareRelaysScript(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/js/script.js", r.URL.Path)
		w.Header().Set("Content-Type", "application/javascript")
		io.WriteString(w, "script")
	}))
	defer provider.Close()

	engine := newEngine(t, provider.URL)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, plausible.DefaultLocalScriptPath, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "script", rec.Body.String())
	assert.Equal(t, "application/javascript", rec.Header().Get("Content-Type"))
}

func TestUnitTestMiddlewareAbortsFailedEvent(t *testing.T) {
	engine := newEngine(t, "https://plausible.invalid")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, plausible.EventPath, strings.NewReader("not json")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, plausible.EventFailureMessage, rec.Body.String())
}
