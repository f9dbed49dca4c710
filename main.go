// package main reads & validates configuration for the plausible proxy service
// and if the config is valid starts and monitors an instance of the proxy service
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DockYard/plausible-proxy/config"
	"github.com/DockYard/plausible-proxy/logging"
	"github.com/DockYard/plausible-proxy/service"
	"github.com/DockYard/plausible-proxy/telemetry"
)

const gracefulShutdownTimeout = 10 * time.Second

var (
	serviceConfig config.Config
	serviceLogger logging.ServiceLogger
)

func init() {
	// a missing .env file is fine, the environment is used as is
	_ = godotenv.Load()

	serviceConfig = config.ReadConfig()

	err := config.Validate(serviceConfig)

	if err != nil {
		panic(err)
	}

	serviceLogger, err = logging.New(serviceConfig.LogLevel)

	if err != nil {
		panic(err)
	}
}

func main() {
	serviceLogger.Debug().Msg(fmt.Sprintf("initial config: %+v", serviceConfig))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serviceConfig.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracer(telemetry.ServiceName, os.Stdout, &serviceLogger)
		if err != nil {
			serviceLogger.Panic().Msg(fmt.Sprintf("error %s initializing tracing", err))
		}

		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				serviceLogger.Error().Err(err).Msg("tracer shutdown failed")
			}
		}()
	}

	service, err := service.New(serviceConfig, &serviceLogger)

	if err != nil {
		serviceLogger.Panic().Msg(fmt.Sprintf("%v", errors.Unwrap(err)))
	}

	go func() {
		if err := service.Run(); !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.Panic().Err(err).Msg("proxy service exited unexpectedly")
		}
	}()

	<-ctx.Done()

	serviceLogger.Info().Msg("shutting down plausible proxy service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := service.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error().Err(err).Msg("forced close failed")
	}

	serviceLogger.Info().Msg("proxy service stopped")
}
