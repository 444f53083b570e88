package main

import (
	"sleepdx.com/sdp/api"
	"sleepdx.com/sdp/dataset"
	"sleepdx.com/sdp/logger"
	"sleepdx.com/sdp/pipeline"
	"sleepdx.com/sdp/redis"
	"sleepdx.com/sdp/s3client"
	"sleepdx.com/sdp/types"
	"sleepdx.com/sdp/worker"
	"context"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type Config struct {
	ConfigPath       string `envconfig:"SDP_CONFIG_PATH" default:""`
	DatasetPath      string `envconfig:"SDP_DATASET_PATH" default:"scoring_sleep.xlsx"`
	DatasetS3Key     string `envconfig:"SDP_DATASET_S3_KEY" default:""`
	RestAPIActive    bool   `envconfig:"SDP_REST_API_ACTIVE" default:"true"`
	RestAPIPort      string `envconfig:"SDP_REST_API_PORT" default:"10000"`
	WorkerActive     bool   `envconfig:"SDP_WORKER_ACTIVE" default:"false"`
	RedisStoreActive bool   `envconfig:"SDP_REDIS_STORE_ACTIVE" default:"false"`
}

const pipelineStartMaxRetries = 5

func main() {
	logger.SetupLogging()
	sdpLogger := logger.NewLogger("Main")
	fatalErrLogger := sdpLogger.Fatal().Caller()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		fatalErrLogger.Err(err).Msg("Failed to read environment")
		os.Exit(1)
	}
	cfg, err := types.LoadTrainingConfig(config.ConfigPath)
	if err != nil {
		sdpLogger.Fatal().Err(err).Msg("Failed to load training configuration")
		os.Exit(1)
	}

	sources := []dataset.Source{dataset.NewFileSource(config.DatasetPath)}
	if config.DatasetS3Key != "" {
		s3, err := s3client.New()
		if err != nil {
			sdpLogger.Err(err).Msg("S3 client unavailable, skipping S3 dataset source")
		} else {
			defer s3.Close()
			sources = append([]dataset.Source{dataset.NewS3Source(s3, config.DatasetS3Key)}, sources...)
		}
	}

	var store pipeline.Store
	if config.RedisStoreActive {
		client, err := redis.NewClient(0)
		if err != nil {
			sdpLogger.Fatal().Err(err).Msg("Could not initialize redis snapshot store")
			os.Exit(1)
		}
		if err = client.Ping(context.Background()); err != nil {
			sdpLogger.Warn().Err(err).Msg("Redis is not reachable, snapshots will be retried per reload")
		}
		defer client.Close()
		store = client
	}

	service := pipeline.NewService(dataset.NewProvider(cfg.Synthetic, sources...), pipeline.NewCache(cfg, store))

	// block until the first pipeline is published
	for retry := 0; ; retry++ {
		_, err = service.Reload(context.Background())
		if err == nil {
			break
		}
		if retry+1 == pipelineStartMaxRetries {
			sdpLogger.Fatal().Err(err).Msgf("Could not train pipeline after %d retries, exiting", pipelineStartMaxRetries)
			os.Exit(1)
		}
		sdpLogger.Err(err).Msg("Failed to train pipeline. Retrying in 5 sec")
		time.Sleep(5 * time.Second)
	}
	sdpLogger.Info().Msg("Pipeline loaded")

	go func() {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		for range hup {
			changed, err := service.Reload(context.Background())
			if err != nil {
				sdpLogger.Err(err).Msg("Reload on SIGHUP failed, keeping current pipeline")
				continue
			}
			sdpLogger.Info().Bool("changed", changed).Msg("Reload on SIGHUP finished")
		}
	}()

	if config.RestAPIActive {
		go func() {
			sdpLogger.Info().Msg("Starting API service")
			host := fmt.Sprintf(":%s", config.RestAPIPort)
			sdpLogger.Info().Msgf("REST API on %s", host)
			err := http.ListenAndServe(host, api.NewRouter(api.NewHandler(service)))
			sdpLogger.Fatal().Err(err).Msg("REST API stopped with error")
		}()
	}

	if config.WorkerActive {
		go func() {
			sdpLogger.Info().Msg("Start SDP Worker")
			for {
				rmqWorker, err := worker.New(service)
				if err != nil {
					sdpLogger.Fatal().Err(err).Msg("Could not initialize RMQ worker")
					os.Exit(1)
				}
				err = rmqWorker.StartWorker()
				if err != nil {
					sdpLogger.Err(err).Msg("Worker returned with error. Launching new in 5 seconds")
					time.Sleep(5 * time.Second)
				}
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	sdpLogger.Info().Str("signal", sig.String()).Msg("Shutting down")
}
