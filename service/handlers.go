package service

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	HealthcheckPath  = "/healthcheck"
	ServicecheckPath = "/servicecheck"
	// providerCheckTimeout bounds the provider probe of the health check
	providerCheckTimeout = 5 * time.Second
)

// createHealthcheckHandler creates a health check handler function that
// will respond 200 ok if the proxy service is able to reach
// the analytics provider
func createHealthcheckHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg("/healthcheck called")

		ctx, cancel := context.WithTimeout(r.Context(), providerCheckTimeout)
		defer cancel()

		err := service.Interceptor.CheckProvider(ctx)
		if err != nil {
			service.Error().
				Err(err).
				Msg("provider healthcheck failed")

			w.WriteHeader(http.StatusInternalServerError)

			w.Write([]byte(fmt.Sprintf("proxy service unable to reach provider: %v", err)))

			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("proxy service is healthy"))
	}
}

// createServicecheckHandler creates a service check handler function that
// will respond 200 ok if the proxy service is running
func createServicecheckHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg("/servicecheck called")

		w.WriteHeader(http.StatusOK)

		w.Write([]byte("proxy service is in service"))
	}
}

// createHostAppHandler creates the handler for every request the interceptor
// passes through, serving files from staticDir or a plain 404 when unset
func createHostAppHandler(staticDir string) http.HandlerFunc {
	if staticDir == "" {
		return http.NotFound
	}

	return http.FileServer(http.Dir(staticDir)).ServeHTTP
}
