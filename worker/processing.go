package worker

import (
	"sleepdx.com/sdp/types"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

type Message struct {
	RequestID string                 `json:"request_id"`
	Features  map[string]interface{} `json:"features"`
}

type Result struct {
	RequestID     string             `json:"request_id"`
	Label         string             `json:"label,omitempty"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Error         string             `json:"error,omitempty"`
	SchemaError   *types.SchemaError `json:"schema_error,omitempty"`
	ProcessedAt   *string            `json:"processed_at"`
}

func (worker *Worker) processMessage(delivery *amqp.Delivery) {
	msgLogger := worker.sdpLogger.With().Str("message_id", delivery.MessageId).Logger()
	message, err := parseMessage(delivery.Body)
	if err != nil {
		msgLogger.Err(err).Msg("Failed to parse delivery")
		worker.rmq.rejectDelivery(delivery, &msgLogger)
		return
	}
	reqLogger := msgLogger.With().Str("request_id", message.RequestID).Logger()

	result, err := worker.predict(message)
	if err != nil {
		reqLogger.Err(err).Msg("Prediction failed")
		worker.rmq.rejectDelivery(delivery, &reqLogger)
		return
	}
	body, err := json.Marshal(result)
	if err != nil {
		reqLogger.Err(err).Msg("Failed to encode result")
		worker.rmq.rejectDelivery(delivery, &reqLogger)
		return
	}
	if err = worker.rmq.publishResult(delivery, body); err != nil {
		reqLogger.Err(err).Msg("Got error while publishing result")
		worker.rmq.rejectDelivery(delivery, &reqLogger)
		return
	}
	if err = worker.rmq.acknowledgeDelivery(delivery); err != nil {
		reqLogger.Err(err).Msg("Failed to acknowledge delivery")
	}
	reqLogger.Info().Str("label", result.Label).Bool("rejected", result.SchemaError != nil).Msg("Finished processing RMQ message")
}

func parseMessage(body []byte) (*Message, error) {
	var message Message
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	if message.Features == nil {
		return nil, errors.New("message carries no features")
	}
	if message.RequestID == "" {
		message.RequestID = uuid.NewString()
	}
	return &message, nil
}

// predict answers schema errors with a result. Any other failure is returned
// so the delivery gets requeued.
func (worker *Worker) predict(message *Message) (*Result, error) {
	result := &Result{RequestID: message.RequestID}
	pred, err := worker.predictor.Predict(message.Features)
	var schemaErr *types.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		result.Error = schemaErr.Error()
		result.SchemaError = schemaErr
	case err != nil:
		return nil, err
	default:
		result.Label = pred.Label
		result.Probabilities = pred.Probabilities
	}
	result.ProcessedAt = getFormattedNow()
	return result, nil
}
