// Package eventsvc publishes domain events.
package eventsvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trezcool/darasa/core"
)

const publishTimeout = 5 * time.Second

type amqpPublisher struct {
	conn     *amqp.Connection
	exchange string
	logger   core.Logger

	mu      sync.Mutex // amqp channels are not safe for concurrent publishing
	channel *amqp.Channel
}

var _ core.EventPublisher = (*amqpPublisher)(nil)

// NewAMQPPublisher publishes events to a durable topic exchange.
func NewAMQPPublisher(conf core.BrokerConfig, logger core.Logger) (core.EventPublisher, error) {
	conn, err := amqp.Dial(conf.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to broker")
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}

	err = channel.ExchangeDeclare(
		conf.Exchange, // name
		"topic",       // type
		true,          // durable
		false,         // auto-deleted
		false,         // internal
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring exchange")
	}

	logger.Info("connected to broker", map[string]interface{}{"exchange": conf.Exchange})
	return &amqpPublisher{conn: conn, channel: channel, exchange: conf.Exchange, logger: logger}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshalling event")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	return errors.Wrap(err, "publishing event")
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.Close(); err != nil {
		p.logger.Warn("closing broker channel", err)
	}
	return errors.Wrap(p.conn.Close(), "closing broker connection")
}
