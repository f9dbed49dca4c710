package plausible

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/DockYard/plausible-proxy/logging"
)

const (
	DefaultLocalScriptPath = "/js/plausible_script.js"
	DefaultScriptExtension = "script.js"
	DefaultProviderURL     = "https://plausible.io"
)

// DefaultRemoteIPHeaders are checked in order when resolving the client ip
var DefaultRemoteIPHeaders = []string{"fly-client-ip", "x-real-ip"}

// Options configures an Interceptor, zero values are replaced by defaults
type Options struct {
	// LocalScriptPath is the path the analytics script is served from
	LocalScriptPath string
	// ScriptExtension selects the provider script variant, e.g. script.outbound-links.js
	ScriptExtension string
	// RemoteIPHeaders are the request headers holding the client ip, in priority order.
	// nil uses DefaultRemoteIPHeaders, an empty slice always uses the peer address.
	RemoteIPHeaders []string
	// EventCallback may add props to every relayed event
	EventCallback EventCallback
	// ProviderURL is the base url of the provider, for self-hosted installs
	ProviderURL string
	// RestrictEventMethod passes through requests to /api/event that are not POSTs
	RestrictEventMethod bool
	// HTTPClient performs the calls to the provider, defaults to http.DefaultClient
	HTTPClient *http.Client
}

// Route is the branch an Interceptor dispatches a request to
type Route int

const (
	RoutePassthrough Route = iota
	RouteScript
	RouteEvent
)

// String implements fmt.Stringer for Route
func (r Route) String() string {
	switch r {
	case RouteScript:
		return "script"
	case RouteEvent:
		return "event"
	default:
		return "passthrough"
	}
}

// Interceptor relays Plausible script and event requests to the provider.
// It is immutable once created and safe for concurrent use.
type Interceptor struct {
	localScriptPath     string
	remoteIPHeaders     []string
	eventCallback       EventCallback
	restrictEventMethod bool
	scriptURL           string
	eventURL            string
	client              *http.Client
	logger              *logging.ServiceLogger
}

// New returns a new Interceptor for the given options and error (if any)
func New(options Options, serviceLogger *logging.ServiceLogger) (*Interceptor, error) {
	if options.LocalScriptPath == "" {
		options.LocalScriptPath = DefaultLocalScriptPath
	}

	if options.ScriptExtension == "" {
		options.ScriptExtension = DefaultScriptExtension
	}

	if options.RemoteIPHeaders == nil {
		options.RemoteIPHeaders = DefaultRemoteIPHeaders
	}

	if options.EventCallback == nil {
		options.EventCallback = DefaultEventCallback
	}

	if options.ProviderURL == "" {
		options.ProviderURL = DefaultProviderURL
	}

	if options.HTTPClient == nil {
		options.HTTPClient = http.DefaultClient
	}

	if !strings.HasPrefix(options.LocalScriptPath, "/") {
		return nil, fmt.Errorf("local script path %q must start with /", options.LocalScriptPath)
	}

	if options.LocalScriptPath == EventPath {
		return nil, errors.New("local script path must not be the event path " + EventPath)
	}

	providerURL, err := url.Parse(options.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("invalid provider url %s: %w", options.ProviderURL, err)
	}

	if !providerURL.IsAbs() || providerURL.Host == "" {
		return nil, fmt.Errorf("provider url %s must be absolute (scheme://host)", options.ProviderURL)
	}

	base := strings.TrimSuffix(providerURL.String(), "/")

	remoteIPHeaders := make([]string, len(options.RemoteIPHeaders))
	copy(remoteIPHeaders, options.RemoteIPHeaders)

	return &Interceptor{
		localScriptPath:     options.LocalScriptPath,
		remoteIPHeaders:     remoteIPHeaders,
		eventCallback:       options.EventCallback,
		restrictEventMethod: options.RestrictEventMethod,
		scriptURL:           base + "/js/" + options.ScriptExtension,
		eventURL:            base + EventPath,
		client:              options.HTTPClient,
		logger:              componentLogger(serviceLogger),
	}, nil
}

func componentLogger(serviceLogger *logging.ServiceLogger) *logging.ServiceLogger {
	if serviceLogger == nil || serviceLogger.Logger == nil {
		nop := zerolog.Nop()
		return &logging.ServiceLogger{Logger: &nop}
	}

	logger := serviceLogger.With().Str("component", "plausible_proxy").Logger()

	return &logging.ServiceLogger{Logger: &logger}
}

// ScriptURL is the provider url the script relay fetches from
func (i *Interceptor) ScriptURL() string {
	return i.scriptURL
}

// EventURL is the provider url the event relay posts to
func (i *Interceptor) EventURL() string {
	return i.eventURL
}

// Match returns the route r is dispatched to, comparing the exact request path
func (i *Interceptor) Match(r *http.Request) Route {
	switch r.URL.Path {
	case i.localScriptPath:
		return RouteScript
	case EventPath:
		if i.restrictEventMethod && r.Method != http.MethodPost {
			return RoutePassthrough
		}
		return RouteEvent
	default:
		return RoutePassthrough
	}
}

// ServeHTTP implements negroni.Handler. Relayed requests are answered here
// and next is not called, any other request is passed to next unchanged.
func (i *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	switch i.Match(r) {
	case RouteScript:
		i.relayScript(w, r, next)
	case RouteEvent:
		i.relayEvent(w, r)
	default:
		next(w, r)
	}
}

// Handler wraps next as a plain net/http middleware
func (i *Interceptor) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i.ServeHTTP(w, r, next.ServeHTTP)
	})
}

// writeUpstreamResponse merges the provider response headers onto w
// and writes the provider status and body verbatim
func (i *Interceptor) writeUpstreamResponse(w http.ResponseWriter, resp *http.Response, upstreamURL string) {
	start := time.Now()

	mergeResponseHeaders(w, resp.Header)
	w.WriteHeader(resp.StatusCode)

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		i.logger.Error().
			Err(err).
			Str("url", upstreamURL).
			Msg("error streaming provider response")
		return
	}

	i.logger.Debug().
		Str("url", upstreamURL).
		Int("status", resp.StatusCode).
		Int64("bytes", written).
		Dur("duration", time.Since(start)).
		Msg("relayed provider response")
}
