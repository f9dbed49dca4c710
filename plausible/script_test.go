package plausible_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DockYard/plausible-proxy/plausible"
)

const testScript = `!function(){"use strict";var a=window.location;}();`

func TestUnitTestScriptRelayStreamsProviderScript(t *testing.T) {
	provider := newFakeProvider(t, http.StatusOK, http.Header{
		"Content-Type":  {"application/javascript"},
		"Cache-Control": {"public, max-age=86400"},
	}, testScript)

	interceptor := newTestInterceptor(t, plausible.Options{ProviderURL: provider.URL}, nil)

	req := httptest.NewRequest(http.MethodGet, plausible.DefaultLocalScriptPath, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	req.Header.Set("Fly-Client-IP", "1.2.3.4")

	rec := httptest.NewRecorder()
	rec.Header().Set("content-type", "text/html")
	next := &nextRecorder{}

	interceptor.ServeHTTP(rec, req, next.ServeHTTP)

	require.False(t, next.called, "relayed request must not reach the host app")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testScript, rec.Body.String())
	assert.Equal(t, []string{"application/javascript"}, rec.Header().Values("Content-Type"))
	assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))

	require.Equal(t, int32(1), provider.calls.Load())
	upstreamReq := provider.lastRequest(t)
	assert.Equal(t, http.MethodGet, upstreamReq.Method)
	assert.Equal(t, "/js/script.js", upstreamReq.Path)
	assert.Equal(t, "1.2.3.4", upstreamReq.Header.Get("X-Forwarded-For"))
	assert.Equal(t, "Mozilla/5.0 (X11; Linux x86_64)", upstreamReq.Header.Get("User-Agent"))
}

func TestUnitTestScriptRelayUsesConfiguredPathAndExtension(t *testing.T) {
	provider := newFakeProvider(t, http.StatusOK, nil, testScript)

	interceptor := newTestInterceptor(t, plausible.Options{
		LocalScriptPath: "/assets/stats.js",
		ScriptExtension: "script.hash.outbound-links.js",
		ProviderURL:     provider.URL,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/assets/stats.js", nil)
	req.RemoteAddr = "192.0.2.10:41234"
	rec := httptest.NewRecorder()

	interceptor.ServeHTTP(rec, req, (&nextRecorder{}).ServeHTTP)

	upstreamReq := provider.lastRequest(t)
	assert.Equal(t, "/js/script.hash.outbound-links.js", upstreamReq.Path)
	assert.Equal(t, "192.0.2.10", upstreamReq.Header.Get("X-Forwarded-For"))
}

func TestUnitTestScriptRelayRelaysProviderErrorStatus(t *testing.T) {
	provider := newFakeProvider(t, http.StatusNotFound, http.Header{"Content-Type": {"text/plain"}}, "not found")

	interceptor := newTestInterceptor(t, plausible.Options{
		ScriptExtension: "script.missing.js",
		ProviderURL:     provider.URL,
	}, nil)

	rec := httptest.NewRecorder()
	next := &nextRecorder{}

	interceptor.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, plausible.DefaultLocalScriptPath, nil), next.ServeHTTP)

	assert.False(t, next.called)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", rec.Body.String())
}

func TestUnitTestScriptRelayFailurePassesThrough(t *testing.T) {
	var outboundCalls atomic.Int32
	var logs bytes.Buffer

	interceptor := newTestInterceptor(t, plausible.Options{
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			outboundCalls.Add(1)
			assert.Equal(t, "https://plausible.io/js/script.js", req.URL.String())
			return nil, errors.New("dial tcp: lookup plausible.io: no such host")
		})},
	}, &logs)

	req := httptest.NewRequest(http.MethodGet, plausible.DefaultLocalScriptPath, nil)
	rec := httptest.NewRecorder()
	next := &nextRecorder{}

	interceptor.ServeHTTP(rec, req, next.ServeHTTP)

	require.True(t, next.called, "failed script relay must fall through to the host app")
	assert.Same(t, req, next.request)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "host app", rec.Body.String())
	assert.Equal(t, int32(1), outboundCalls.Load())
	assert.Contains(t, logs.String(), "no such host")
	assert.Contains(t, logs.String(), `"component":"plausible_proxy"`)
}

func TestUnitTestCheckProvider(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		provider := newFakeProvider(t, http.StatusOK, nil, "")
		interceptor := newTestInterceptor(t, plausible.Options{ProviderURL: provider.URL}, nil)

		require.NoError(t, interceptor.CheckProvider(context.Background()))
		assert.Equal(t, http.MethodHead, provider.lastRequest(t).Method)
	})

	t.Run("server error", func(t *testing.T) {
		provider := newFakeProvider(t, http.StatusBadGateway, nil, "")
		interceptor := newTestInterceptor(t, plausible.Options{ProviderURL: provider.URL}, nil)

		assert.ErrorContains(t, interceptor.CheckProvider(context.Background()), "provider responded 502")
	})

	t.Run("unreachable", func(t *testing.T) {
		interceptor := newTestInterceptor(t, plausible.Options{
			HTTPClient: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			})},
		}, nil)

		assert.ErrorIs(t, interceptor.CheckProvider(context.Background()), plausible.ErrUpstreamTransport)
	})
}
