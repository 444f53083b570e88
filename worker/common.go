package worker

import (
	"github.com/streadway/amqp"
	"time"
)

const RFC3339Micro = "2006-01-02T15:04:05.000000-07:00"

func getFormattedNow() *string {
	now := time.Now().UTC().Format(RFC3339Micro)
	return &now
}

func resultPublishing(delivery *amqp.Delivery, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: delivery.CorrelationId,
		MessageId:     delivery.MessageId,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	}
}
