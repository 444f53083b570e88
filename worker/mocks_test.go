package worker

import (
	"sleepdx.com/sdp/pipeline"
	"sleepdx.com/sdp/types"
	"errors"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type failingMethod struct {
	fail bool
}

type predictorMock struct {
	config predictorMockConfig
	calls  predictorCall
}

type predictorMockConfig struct {
	fail        bool
	schemaError bool
	prediction  pipeline.Prediction
}

type predictorCall struct {
	predict bool
}

type rmqMock struct {
	config    rmqMockConfig
	calls     rmqMockCalls
	published []byte
}

type rmqMockConfig struct {
	publishResult       failingMethod
	acknowledgeDelivery failingMethod
}

type rmqMockCalls struct {
	publishResult       bool
	acknowledgeDelivery bool
	rejectDelivery      bool
}

func (mock *rmqMock) close() {}

func (mock *predictorMock) Predict(values map[string]interface{}) (pipeline.Prediction, error) {
	mock.calls.predict = true
	if mock.config.schemaError {
		return pipeline.Prediction{}, &types.SchemaError{Missing: []string{types.StressLevel}}
	}
	if mock.config.fail {
		return pipeline.Prediction{}, types.ErrNotTrained
	}
	return mock.config.prediction, nil
}

func (mock *rmqMock) publishResult(delivery *amqp.Delivery, body []byte) error {
	mock.calls.publishResult = true
	if mock.config.publishResult.fail {
		return errors.New("failed to publish result")
	}
	mock.published = body
	return nil
}

func (mock *rmqMock) acknowledgeDelivery(delivery *amqp.Delivery) error {
	mock.calls.acknowledgeDelivery = true
	if mock.config.acknowledgeDelivery.fail {
		return errors.New("failed to acknowledge delivery")
	}
	return nil
}

func (mock *rmqMock) rejectDelivery(delivery *amqp.Delivery, sdpLogger *zerolog.Logger) {
	mock.calls.rejectDelivery = true
}

func (mock *rmqMock) getDeliveriesCh() <-chan amqp.Delivery {
	return nil
}

func (mock *rmqMock) getReqChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) getRespChanErrorsCh() <-chan *amqp.Error {
	return nil
}
