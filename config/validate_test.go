package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DockYard/plausible-proxy/config"
)

func defaultConfig(t *testing.T) config.Config {
	setDefaultEnv(t)
	return config.ReadConfig()
}

func TestUnitTestValidateConfigReturnsNilErrorForValidConfig(t *testing.T) {
	err := config.Validate(defaultConfig(t))

	assert.Nil(t, err)
}

func TestUnitTestValidateConfigReturnsErrorIfInvalidLogLevel(t *testing.T) {
	testConfig := defaultConfig(t)
	testConfig.LogLevel = "whisper"

	err := config.Validate(testConfig)

	assert.NotNil(t, err)
}

func TestUnitTestValidateConfigReturnsErrorIfInvalidProxyServicePort(t *testing.T) {
	testConfig := defaultConfig(t)
	testConfig.ProxyServicePort = "abc"

	err := config.Validate(testConfig)

	assert.NotNil(t, err)
}

func TestUnitTestValidateConfigReturnsErrorIfRelativeScriptPath(t *testing.T) {
	testConfig := defaultConfig(t)
	testConfig.PlausibleLocalScriptPath = "js/script.js"

	err := config.Validate(testConfig)

	assert.NotNil(t, err)
}

func TestUnitTestValidateConfigReturnsErrorIfScriptPathIsEventPath(t *testing.T) {
	testConfig := defaultConfig(t)
	testConfig.PlausibleLocalScriptPath = "/api/event"

	err := config.Validate(testConfig)

	assert.NotNil(t, err)
}

func TestUnitTestValidateConfigReturnsErrorIfInvalidScriptExtension(t *testing.T) {
	testConfig := defaultConfig(t)

	testConfig.PlausibleScriptExtension = ""
	assert.NotNil(t, config.Validate(testConfig))

	testConfig.PlausibleScriptExtension = "../script.js"
	assert.NotNil(t, config.Validate(testConfig))
}

func TestUnitTestValidateConfigReturnsErrorIfRelativeProviderURL(t *testing.T) {
	testConfig := defaultConfig(t)
	testConfig.PlausibleProviderURL = "plausible.io"

	err := config.Validate(testConfig)

	assert.NotNil(t, err)
}

func TestUnitTestValidateConfigReturnsErrorIfNegativeTimeout(t *testing.T) {
	testConfig := defaultConfig(t)
	testConfig.PlausibleUpstreamTimeout = -1 * time.Second

	err := config.Validate(testConfig)

	assert.NotNil(t, err)
}

func TestUnitTestValidateConfigReturnsErrorIfInvalidEventProps(t *testing.T) {
	testConfig := defaultConfig(t)
	testConfig.PlausibleEventPropsRaw = "company"

	err := config.Validate(testConfig)

	assert.ErrorIs(t, err, config.ErrInvalidEventProps)
}

func TestUnitTestValidateConfigJoinsAllErrors(t *testing.T) {
	testConfig := defaultConfig(t)
	testConfig.LogLevel = "whisper"
	testConfig.ProxyServicePort = "abc"

	err := config.Validate(testConfig)

	assert.ErrorContains(t, err, config.LOG_LEVEL_ENVIRONMENT_KEY)
	assert.ErrorContains(t, err, config.PROXY_SERVICE_PORT_ENVIRONMENT_KEY)
}
