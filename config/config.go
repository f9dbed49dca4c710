// package config provides functions and values
// for reading and validating plausible proxy service configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogLevel                     string
	ProxyServicePort             string
	PlausibleLocalScriptPath     string
	PlausibleScriptExtension     string
	PlausibleRemoteIPHeadersRaw  string
	PlausibleRemoteIPHeaders     []string
	PlausibleProviderURL         string
	PlausibleRestrictEventMethod bool
	PlausibleUpstreamTimeout     time.Duration
	PlausibleEventPropsRaw       string
	PlausibleEventProps          map[string]string
	TracingEnabled               bool
	HostAppStaticDir             string
}

const (
	LOG_LEVEL_ENVIRONMENT_KEY                       = "LOG_LEVEL"
	DEFAULT_LOG_LEVEL                               = "INFO"
	PROXY_SERVICE_PORT_ENVIRONMENT_KEY              = "PROXY_SERVICE_PORT"
	DEFAULT_PROXY_SERVICE_PORT                      = "7777"
	PLAUSIBLE_LOCAL_SCRIPT_PATH_ENVIRONMENT_KEY     = "PLAUSIBLE_LOCAL_SCRIPT_PATH"
	DEFAULT_PLAUSIBLE_LOCAL_SCRIPT_PATH             = "/js/plausible_script.js"
	PLAUSIBLE_SCRIPT_EXTENSION_ENVIRONMENT_KEY      = "PLAUSIBLE_SCRIPT_EXTENSION"
	DEFAULT_PLAUSIBLE_SCRIPT_EXTENSION              = "script.js"
	PLAUSIBLE_REMOTE_IP_HEADERS_ENVIRONMENT_KEY     = "PLAUSIBLE_REMOTE_IP_HEADERS"
	DEFAULT_PLAUSIBLE_REMOTE_IP_HEADERS             = "fly-client-ip,x-real-ip"
	PLAUSIBLE_PROVIDER_URL_ENVIRONMENT_KEY          = "PLAUSIBLE_PROVIDER_URL"
	DEFAULT_PLAUSIBLE_PROVIDER_URL                  = "https://plausible.io"
	PLAUSIBLE_RESTRICT_EVENT_METHOD_ENVIRONMENT_KEY = "PLAUSIBLE_RESTRICT_EVENT_METHOD"
	DEFAULT_PLAUSIBLE_RESTRICT_EVENT_METHOD         = false
	PLAUSIBLE_UPSTREAM_TIMEOUT_ENVIRONMENT_KEY      = "PLAUSIBLE_UPSTREAM_TIMEOUT"
	DEFAULT_PLAUSIBLE_UPSTREAM_TIMEOUT              = 10 * time.Second
	PLAUSIBLE_EVENT_PROPS_ENVIRONMENT_KEY           = "PLAUSIBLE_EVENT_PROPS"
	DEFAULT_PLAUSIBLE_EVENT_PROPS                   = ""
	TRACING_ENABLED_ENVIRONMENT_KEY                 = "TRACING_ENABLED"
	DEFAULT_TRACING_ENABLED                         = false
	HOST_APP_STATIC_DIR_ENVIRONMENT_KEY             = "HOST_APP_STATIC_DIR"
	DEFAULT_HOST_APP_STATIC_DIR                     = ""
)

var ErrInvalidEventProps = errors.New("expected event props like <key>=<value>,<key>=<value>")

// EnvOrDefault fetches an environment variable value, or if not set returns the fallback value
func EnvOrDefault(key string, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// EnvOrDefaultBool fetches an environment variable value, or if not set or
// not a valid bool returns the fallback value
func EnvOrDefaultBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// EnvOrDefaultDuration fetches an environment variable value, or if not set
// or not a valid duration returns the fallback value
func EnvOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// ParseRemoteIPHeaders parses a comma separated list of header names,
// an empty value yields an empty (non-nil) list
func ParseRemoteIPHeaders(raw string) []string {
	headers := []string{}

	for _, header := range strings.Split(raw, ",") {
		header = strings.ToLower(strings.TrimSpace(header))
		if header == "" {
			continue
		}
		headers = append(headers, header)
	}

	return headers
}

// ParseEventProps parses static event props of the form
// company=Acme,plan=free into a map, returning error (if any)
func ParseEventProps(raw string) (map[string]string, error) {
	props := map[string]string{}

	if strings.TrimSpace(raw) == "" {
		return props, nil
	}

	for _, entry := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)

		if !found || key == "" {
			return nil, fmt.Errorf("%w, got %q", ErrInvalidEventProps, entry)
		}

		if _, exists := props[key]; exists {
			return nil, fmt.Errorf("duplicate event prop %s", key)
		}

		props[key] = strings.TrimSpace(value)
	}

	return props, nil
}

// ReadConfig attempts to parse service config from environment values
// the returned config may be invalid and should be validated via the `Validate`
// function of the Config package before use
func ReadConfig() Config {
	rawRemoteIPHeaders := EnvOrDefault(PLAUSIBLE_REMOTE_IP_HEADERS_ENVIRONMENT_KEY, DEFAULT_PLAUSIBLE_REMOTE_IP_HEADERS)
	rawEventProps := EnvOrDefault(PLAUSIBLE_EVENT_PROPS_ENVIRONMENT_KEY, DEFAULT_PLAUSIBLE_EVENT_PROPS)

	// best effort, Validate reports the error
	eventProps, _ := ParseEventProps(rawEventProps)

	return Config{
		LogLevel:                     EnvOrDefault(LOG_LEVEL_ENVIRONMENT_KEY, DEFAULT_LOG_LEVEL),
		ProxyServicePort:             EnvOrDefault(PROXY_SERVICE_PORT_ENVIRONMENT_KEY, DEFAULT_PROXY_SERVICE_PORT),
		PlausibleLocalScriptPath:     EnvOrDefault(PLAUSIBLE_LOCAL_SCRIPT_PATH_ENVIRONMENT_KEY, DEFAULT_PLAUSIBLE_LOCAL_SCRIPT_PATH),
		PlausibleScriptExtension:     EnvOrDefault(PLAUSIBLE_SCRIPT_EXTENSION_ENVIRONMENT_KEY, DEFAULT_PLAUSIBLE_SCRIPT_EXTENSION),
		PlausibleRemoteIPHeadersRaw:  rawRemoteIPHeaders,
		PlausibleRemoteIPHeaders:     ParseRemoteIPHeaders(rawRemoteIPHeaders),
		PlausibleProviderURL:         EnvOrDefault(PLAUSIBLE_PROVIDER_URL_ENVIRONMENT_KEY, DEFAULT_PLAUSIBLE_PROVIDER_URL),
		PlausibleRestrictEventMethod: EnvOrDefaultBool(PLAUSIBLE_RESTRICT_EVENT_METHOD_ENVIRONMENT_KEY, DEFAULT_PLAUSIBLE_RESTRICT_EVENT_METHOD),
		PlausibleUpstreamTimeout:     EnvOrDefaultDuration(PLAUSIBLE_UPSTREAM_TIMEOUT_ENVIRONMENT_KEY, DEFAULT_PLAUSIBLE_UPSTREAM_TIMEOUT),
		PlausibleEventPropsRaw:       rawEventProps,
		PlausibleEventProps:          eventProps,
		TracingEnabled:               EnvOrDefaultBool(TRACING_ENABLED_ENVIRONMENT_KEY, DEFAULT_TRACING_ENABLED),
		HostAppStaticDir:             EnvOrDefault(HOST_APP_STATIC_DIR_ENVIRONMENT_KEY, DEFAULT_HOST_APP_STATIC_DIR),
	}
}
