package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/DockYard/plausible-proxy/plausible"
)

var (
	ValidLogLevels = [4]string{"TRACE", "DEBUG", "INFO", "ERROR"}
)

// Validate validates the provided config
// returning a list of errors that can be unwrapped with `errors.Unwrap`
// or nil if the config is valid
func Validate(config Config) error {
	var validLogLevel bool
	var allErrs error

	for _, validLevel := range ValidLogLevels {
		if config.LogLevel == validLevel {
			validLogLevel = true
			break
		}
	}

	if !validLogLevel {
		allErrs = fmt.Errorf("invalid %s specified %s, supported values are %v", LOG_LEVEL_ENVIRONMENT_KEY, config.LogLevel, ValidLogLevels)
	}

	_, err := strconv.Atoi(config.ProxyServicePort)

	if err != nil {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s", PROXY_SERVICE_PORT_ENVIRONMENT_KEY, config.ProxyServicePort))
	}

	if !strings.HasPrefix(config.PlausibleLocalScriptPath, "/") {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must start with /", PLAUSIBLE_LOCAL_SCRIPT_PATH_ENVIRONMENT_KEY, config.PlausibleLocalScriptPath))
	}

	if config.PlausibleLocalScriptPath == plausible.EventPath {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be the event path", PLAUSIBLE_LOCAL_SCRIPT_PATH_ENVIRONMENT_KEY, config.PlausibleLocalScriptPath))
	}

	if config.PlausibleScriptExtension == "" || strings.Contains(config.PlausibleScriptExtension, "/") {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be a non-empty file name", PLAUSIBLE_SCRIPT_EXTENSION_ENVIRONMENT_KEY, config.PlausibleScriptExtension))
	}

	providerURL, err := url.Parse(config.PlausibleProviderURL)

	if err != nil || !providerURL.IsAbs() || providerURL.Host == "" {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be absolute (scheme://host)", PLAUSIBLE_PROVIDER_URL_ENVIRONMENT_KEY, config.PlausibleProviderURL))
	}

	if config.PlausibleUpstreamTimeout < 0 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be negative", PLAUSIBLE_UPSTREAM_TIMEOUT_ENVIRONMENT_KEY, config.PlausibleUpstreamTimeout))
	}

	_, err = ParseEventProps(config.PlausibleEventPropsRaw)

	if err != nil {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s: %w", PLAUSIBLE_EVENT_PROPS_ENVIRONMENT_KEY, config.PlausibleEventPropsRaw, err))
	}

	return allErrs
}
