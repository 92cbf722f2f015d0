package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recap/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	QueueNameRecordingProcessing = "recording_processing"
	QueueNameRecordingEvents     = "recording_events"
	ExchangeName                 = "recap"
)

// Enqueuer is the in-process queue the AMQP consumer feeds
type Enqueuer interface {
	Enqueue(recordingID string)
}

// RabbitMQ is the edge through which other services submit recordings and
// hear about terminal outcomes. The processing queue itself stays
// in-process; this only feeds it.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	url     string
}

// New RabbitMQ client
func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		ExchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	for _, queueName := range []string{QueueNameRecordingProcessing, QueueNameRecordingEvents} {
		_, err = ch.QueueDeclare(
			queueName, // name
			true,      // durable
			false,     // delete when unused
			false,     // exclusive
			false,     // no-wait
			nil,       // arguments
		)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
		}

		err = ch.QueueBind(
			queueName,    // queue name
			queueName,    // routing key
			ExchangeName, // exchange
			false,
			nil,
		)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue %s: %w", queueName, err)
		}
	}

	logger.Info("RabbitMQ connected successfully")

	return &RabbitMQ{
		conn:    conn,
		channel: ch,
		url:     url,
	}, nil
}

// Publish publishes a message to the queue
func (r *RabbitMQ) Publish(queueName string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := r.channel.PublishWithContext(
		ctx,
		ExchangeName, // exchange
		queueName,    // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logger.Debug("Message published to queue",
		zap.String("queue", queueName),
		zap.Int("size", len(body)))

	return nil
}

// PublishCompletion announces a terminal outcome, best effort
func (r *RabbitMQ) PublishCompletion(event *CompletionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return r.Publish(QueueNameRecordingEvents, body)
}

// ConsumeEnqueueRequests feeds incoming submission messages into the
// in-process processing queue. Blocks until the channel closes.
func (r *RabbitMQ) ConsumeEnqueueRequests(q Enqueuer) error {
	// Set QoS
	err := r.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := r.channel.Consume(
		QueueNameRecordingProcessing, // queue
		"",                           // consumer
		false,                        // auto-ack
		false,                        // exclusive
		false,                        // no-local
		false,                        // no-wait
		nil,                          // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Info("Consuming enqueue requests",
		zap.String("queue", QueueNameRecordingProcessing))

	for msg := range msgs {
		var req EnqueueRequest
		if err := json.Unmarshal(msg.Body, &req); err != nil {
			logger.Error("Failed to decode enqueue request", zap.Error(err))
			// Malformed message, do not requeue
			msg.Nack(false, false)
			continue
		}

		if req.RecordingID == "" {
			logger.Error("Enqueue request missing recording id")
			msg.Nack(false, false)
			continue
		}

		q.Enqueue(req.RecordingID)
		msg.Ack(false)
	}

	return nil
}

// Close RabbitMQ connection
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
