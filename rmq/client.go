package rmq

import (
	"sleepdx.com/sdp/logger"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type Config struct {
	Host                    string `envconfig:"SDP_RMQ_HOST" required:"true"`
	Port                    string `envconfig:"SDP_RMQ_PORT" default:"5672"`
	Username                string `envconfig:"SDP_RMQ_USERNAME" required:"true"`
	Password                string `envconfig:"SDP_RMQ_PASSWORD" required:"true"`
	Exchange                string `envconfig:"SDP_RMQ_EXCHANGE" default:""`
	MaxParallelRequestCount int    `envconfig:"SDP_RMQ_MAX_PARALLEL_REQUESTS" default:"5"`
	PredictQueue            string `envconfig:"SDP_RMQ_PREDICT_QUEUE" default:"sdp.predict"`
	ResultQueue             string `envconfig:"SDP_RMQ_RESULT_QUEUE" default:"sdp.predict.results"`
}

// Client consumes prediction requests on one connection and publishes results
// on another.
type Client struct {
	Deliveries     <-chan amqp.Delivery
	ReqChanErrors  <-chan *amqp.Error
	RespChanErrors <-chan *amqp.Error
	config         Config
	reqConn        *amqp.Connection
	respConn       *amqp.Connection
	respChannel    *amqp.Channel
	sdpLogger      *zerolog.Logger
}

func ReadConfig() (Config, error) {
	var config Config
	err := envconfig.Process("", &config)
	return config, err
}

func NewClient() (*Client, error) {
	sdpLogger := logger.NewLogger("RMQ client")
	config, err := ReadConfig()
	if err != nil {
		sdpLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}

	url := getURL(config)
	respConn, respChannel, err := setup(url)
	if err != nil {
		return nil, fmt.Errorf("failed connection: %w", err)
	}
	reqConn, reqChannel, err := setup(url)
	if err != nil {
		_ = respConn.Close()
		return nil, fmt.Errorf("failed connection: %w", err)
	}

	for _, name := range []string{config.PredictQueue, config.ResultQueue} {
		if _, err := reqChannel.QueueDeclare(
			name,  // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
		if config.Exchange == "" {
			continue
		}
		if err := reqChannel.QueueBind(name, name, config.Exchange, false, nil); err != nil {
			return nil, fmt.Errorf("bind queue %s: %w", name, err)
		}
	}
	if err := reqChannel.Qos(config.MaxParallelRequestCount, 0, false); err != nil {
		return nil, fmt.Errorf("qos: %w", err)
	}

	deliveries, err := reqChannel.Consume(
		config.PredictQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume deliveries: %w", err)
	}
	reqChanErrors := reqChannel.NotifyClose(make(chan *amqp.Error))
	respChanErrors := respChannel.NotifyClose(make(chan *amqp.Error))

	sdpLogger.Info().
		Str("predict_queue", config.PredictQueue).
		Str("result_queue", config.ResultQueue).
		Msg("Consuming prediction requests")
	return &Client{
		Deliveries:     deliveries,
		ReqChanErrors:  reqChanErrors,
		RespChanErrors: respChanErrors,
		config:         config,
		reqConn:        reqConn,
		respConn:       respConn,
		respChannel:    respChannel,
		sdpLogger:      &sdpLogger,
	}, nil
}

// Publish sends msg to the routing key, the result queue when it is empty.
func (c *Client) Publish(routingKey string, msg amqp.Publishing) error {
	if routingKey == "" {
		routingKey = c.config.ResultQueue
	}
	return c.respChannel.Publish(
		c.config.Exchange,
		routingKey,
		false,
		false,
		msg)
}

func (c *Client) Close() {
	_ = c.reqConn.Close()
	_ = c.respConn.Close()
}

func getURL(config Config) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s", config.Username, config.Password, config.Host, config.Port)
}

func setup(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
