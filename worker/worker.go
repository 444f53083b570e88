package worker

import (
	"sleepdx.com/sdp/logger"
	"sleepdx.com/sdp/pipeline"
	"sleepdx.com/sdp/rmq"
	"fmt"
	"github.com/rs/zerolog"
)

// Predictor answers one prediction request.
type Predictor interface {
	Predict(values map[string]interface{}) (pipeline.Prediction, error)
}

type Worker struct {
	rmq       rmqTransactions
	sdpLogger *zerolog.Logger
	predictor Predictor
}

func New(predictor Predictor) (*Worker, error) {
	sdpLogger := logger.NewLogger("Worker")
	worker := Worker{
		sdpLogger: &sdpLogger,
		predictor: predictor,
	}
	if err := worker.refreshRMQClient(); err != nil {
		sdpLogger.Error().Err(err).Msg("Could not create RMQ client")
		return nil, err
	}
	return &worker, nil
}

func (worker *Worker) StartWorker() error {
	defer worker.Close()
	for {
		select {
		case delivery, ok := <-worker.rmq.getDeliveriesCh():
			if ok {
				go worker.processMessage(&delivery)
				continue
			}
			worker.sdpLogger.Error().Msg("Deliveries channel closed, trying to refresh RMQ client")
			if err := worker.refreshRMQClient(); err != nil {
				return fmt.Errorf(
					"rmq deliveries channel has been closed and refresh returned error: %w",
					err,
				)
			}
		case rmqErr := <-worker.rmq.getRespChanErrorsCh():
			if rmqErr == nil {
				continue
			}
			worker.sdpLogger.Err(rmqErr).Msg("Response connection received error, trying to refresh RMQ client")
			if err := worker.refreshRMQClient(); err != nil {
				return fmt.Errorf(
					"response connection received error and refresh failed with: %w",
					err,
				)
			}
		case rmqErr := <-worker.rmq.getReqChanErrorsCh():
			if rmqErr == nil {
				continue
			}
			worker.sdpLogger.Err(rmqErr).Msg("Request connection received error, trying to refresh RMQ client")
			if err := worker.refreshRMQClient(); err != nil {
				return fmt.Errorf(
					"request connection received error and refresh failed with: %w",
					err,
				)
			}
		}
	}
}

func (worker *Worker) Close() {
	if worker.rmq != nil {
		worker.rmq.close()
	}
}

func (worker *Worker) refreshRMQClient() error {
	worker.sdpLogger.Info().Msg("Refreshing RMQ client")
	if oldClient := worker.rmq; oldClient != nil {
		defer oldClient.close()
	}
	rmqClient, err := rmq.NewClient()
	if err != nil {
		worker.sdpLogger.Err(err).Msg("Failed to refresh RMQ client")
		return err
	}
	worker.rmq = &rmqClientWrapper{rmqClient}
	worker.sdpLogger.Info().Msg("Refreshed RMQ client")
	return nil
}
