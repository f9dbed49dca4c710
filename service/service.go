// package service provides functions and methods
// for creating and running the api of the plausible proxy service
package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/urfave/negroni"

	"github.com/DockYard/plausible-proxy/config"
	"github.com/DockYard/plausible-proxy/logging"
	"github.com/DockYard/plausible-proxy/plausible"
	"github.com/DockYard/plausible-proxy/telemetry"
)

// ProxyService represents an instance of the proxy service API
type ProxyService struct {
	httpProxy   *http.Server
	Interceptor *plausible.Interceptor
	*logging.ServiceLogger
}

// New returns a new ProxyService with the specified config and error (if any)
func New(config config.Config, serviceLogger *logging.ServiceLogger) (ProxyService, error) {
	service := ProxyService{
		ServiceLogger: serviceLogger,
	}

	interceptor, err := plausible.New(plausible.Options{
		LocalScriptPath:     config.PlausibleLocalScriptPath,
		ScriptExtension:     config.PlausibleScriptExtension,
		RemoteIPHeaders:     config.PlausibleRemoteIPHeaders,
		EventCallback:       NewStaticPropsCallback(config.PlausibleEventProps),
		ProviderURL:         config.PlausibleProviderURL,
		RestrictEventMethod: config.PlausibleRestrictEventMethod,
		HTTPClient:          newProviderClient(config),
	}, serviceLogger)

	if err != nil {
		return ProxyService{}, fmt.Errorf("error %w creating plausible interceptor", err)
	}

	service.Interceptor = interceptor

	// the host application the interceptor sits in front of
	router := chi.NewRouter()

	router.Get("/healthcheck", createHealthcheckHandler(&service))
	router.Get("/servicecheck", createServicecheckHandler(&service))
	router.NotFound(createHostAppHandler(config.HostAppStaticDir))

	// create the pipeline every request flows through:
	// recovery -> request logging -> plausible interceptor -> host application
	pipeline := negroni.New()

	recovery := negroni.NewRecovery()
	recovery.PrintStack = false
	recovery.Logger = &recoveryLogger{serviceLogger}

	pipeline.Use(recovery)
	pipeline.Use(createRequestLoggingMiddleware(serviceLogger))
	pipeline.Use(interceptor)
	pipeline.UseHandler(router)

	var handler http.Handler = pipeline
	if config.TracingEnabled {
		handler = telemetry.Handler(pipeline)
	}

	// create an http server for the caller to start at their own discretion
	service.httpProxy = &http.Server{
		Addr:              fmt.Sprintf(":%s", config.ProxyServicePort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return service, nil
}

// Handler returns the handler serving every request of the service
func (p *ProxyService) Handler() http.Handler {
	return p.httpProxy.Handler
}

// Run runs the proxy service, returning error (if any) in the event
// the proxy service stops
func (p *ProxyService) Run() error {
	p.Info().Str("addr", p.httpProxy.Addr).Msg("starting plausible proxy service")

	return p.httpProxy.ListenAndServe()
}

// Shutdown gracefully stops the proxy service, forcing it closed if ctx
// expires first, returning error (if any)
func (p *ProxyService) Shutdown(ctx context.Context) error {
	if err := p.httpProxy.Shutdown(ctx); err != nil {
		p.Error().Err(err).Msg("graceful shutdown failed; forcing close")

		return p.httpProxy.Close()
	}

	return nil
}

// newProviderClient creates the http client used for calls to the provider
func newProviderClient(config config.Config) *http.Client {
	var transport http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	if config.TracingEnabled {
		transport = telemetry.Transport(transport)
	}

	return &http.Client{
		Timeout:   config.PlausibleUpstreamTimeout,
		Transport: transport,
	}
}

// recoveryLogger adapts the service logger for negroni's recovery middleware
type recoveryLogger struct {
	*logging.ServiceLogger
}

// Printf implements negroni.ALogger
func (l *recoveryLogger) Printf(format string, v ...interface{}) {
	l.Error().Msgf(format, v...)
}

// Println implements negroni.ALogger
func (l *recoveryLogger) Println(v ...interface{}) {
	l.Error().Msg(fmt.Sprint(v...))
}
