package main

import (
	"context"
	"time"

	"github.com/diwise/context-broker/pkg/ngsild/client"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/go-chi/chi"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/diwise/integration-nodos/internal/pkg/application"
	"github.com/diwise/integration-nodos/internal/pkg/application/fiware"
	"github.com/diwise/integration-nodos/internal/pkg/application/lwm2m"
	"github.com/diwise/integration-nodos/internal/pkg/application/pipeline"
	"github.com/diwise/integration-nodos/internal/pkg/infrastructure/config"
	"github.com/diwise/integration-nodos/internal/pkg/infrastructure/metrics"
	"github.com/diwise/integration-nodos/internal/pkg/infrastructure/router"
	"github.com/diwise/integration-nodos/internal/pkg/infrastructure/storage"
)

const serviceName string = "integration-nodos"

func main() {
	// a missing .env file is fine, the environment is used as is
	_ = godotenv.Load()

	serviceVersion := buildinfo.SourceVersion()

	ctx, logger, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion)
	defer cleanup()

	baseUrl := env.GetVariableOrDie(logger, "NODOS_API_URL", "nodos api base url")
	accessToken := env.GetVariableOrDefault(logger, "NODOS_API_TOKEN", "")
	servicePort := env.GetVariableOrDefault(logger, "SERVICE_PORT", "8080")
	configPath := env.GetVariableOrDefault(logger, "CONFIG_PATH", "")
	contextBrokerUrl := env.GetVariableOrDefault(logger, "CONTEXT_BROKER_URL", "")
	lwm2mUrl := env.GetVariableOrDefault(logger, "LWM2M_URL", "")
	dbDriver := env.GetVariableOrDefault(logger, "SNAPSHOT_DB_DRIVER", "")
	dbDSN := env.GetVariableOrDefault(logger, "SNAPSHOT_DB_DSN", "")

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", configPath).Msg("failed to load configuration")
	}

	if interval := env.GetVariableOrDefault(logger, "REFRESH_INTERVAL", ""); interval != "" {
		cfg.RefreshInterval, err = time.ParseDuration(interval)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REFRESH_INTERVAL")
		}
	}

	p, err := pipeline.New(cfg.Pipeline)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create pipeline")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	api := application.NewNodosAPI(baseUrl, accessToken, m)
	app := application.New(api, p, cfg.Application, m)

	publishers := []application.Publisher{}
	if contextBrokerUrl != "" {
		publishers = append(publishers, fiware.NewPublisher(client.NewContextBrokerClient(contextBrokerUrl)))
	}
	if lwm2mUrl != "" {
		publishers = append(publishers, lwm2m.NewPublisher(lwm2mUrl, lwm2m.Send))
	}

	var store application.SnapshotStore

	if dbDriver != "" {
		s, err := storage.Open(dbDriver, dbDSN)
		if err != nil {
			logger.Fatal().Err(err).Str("driver", dbDriver).Msg("failed to open snapshot store")
		}
		defer s.Close()
		store = s
	}

	refresher := application.NewRefresher(app, store, cfg.RefreshInterval, m, publishers...)
	if err := refresher.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to restore node cards from snapshot")
	}

	go refresher.Run(ctx)

	r := router.SetupRouter(chi.NewRouter(), logger, app, refresher, prometheus.DefaultGatherer, p.Location())
	if err := r.Start(servicePort); err != nil {
		logger.Fatal().Err(err).Msg("failed to start router")
	}
}
