// Package amqp moves uploads between the enqueue command and background
// workers over a RabbitMQ direct exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/logging"

	"github.com/rabbitmq/amqp091-go"
)

// ErrRetryLater marks a handler error after which the message should be
// redelivered rather than dropped.
var ErrRetryLater = errors.New("retry later")

// requeueDelay slows down redelivery of messages that could not be
// accepted yet.
var requeueDelay = 2 * time.Second

// Handler processes one upload. The message is acknowledged when it returns
// nil, so a worker that dies mid-run leaves the upload on the queue.
type Handler func(ctx context.Context, msg *UploadMessage) error

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       logging.Logger
}

func NewClient(url, exchangeName, queueName string, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
	}

	if err := client.setup(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name.
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return c.SetPrefetch(1)
}

// SetPrefetch bounds how many uploads this consumer holds unacknowledged,
// which is how many it processes at once.
func (c *Client) SetPrefetch(n int) error {
	if n < 1 {
		n = 1
	}
	if err := c.channel.Qos(n, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// PublishUpload publishes an upload as a persistent message.
func (c *Client) PublishUpload(ctx context.Context, msg *UploadMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	c.logger.WithFields(
		logging.Field{Key: logging.FieldProfile, Value: msg.Profile},
		logging.Field{Key: logging.FieldFilename, Value: msg.Filename},
		logging.Field{Key: "exchange", Value: c.exchangeName},
		logging.Field{Key: "queue", Value: c.queueName},
	).Info("Published upload message")

	return nil
}

// ConsumeUploads hands every message to handler, each on its own goroutine,
// until ctx is done or the channel closes. It returns once the handlers
// already started have settled their messages.
func (c *Client) ConsumeUploads(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.WithField("queue", c.queueName).Info("Started consuming upload messages")
	return consume(ctx, msgs, handler, c.logger)
}

func consume(ctx context.Context, msgs <-chan amqp091.Delivery, handler Handler, logger logging.Logger) error {
	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			logger.WithField(logging.FieldReason, ctx.Err().Error()).Info("Stopping message consumption")
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				handleDelivery(ctx, d.Body, d, handler, logger)
			}()
		}
	}
}

// acknowledger is the part of amqp091.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, body []byte, ack acknowledger, handler Handler, logger logging.Logger) {
	msg, err := UploadMessageFromJSON(body)
	if err != nil {
		logger.WithError(err).Error("Failed to decode upload message")
		_ = ack.Nack(false, false)
		return
	}

	log := logger.WithFields(
		logging.Field{Key: logging.FieldProfile, Value: msg.Profile},
		logging.Field{Key: logging.FieldFilename, Value: msg.Filename},
	)

	if err := handler(ctx, msg); err != nil {
		if shouldRequeue(err) {
			log.WithError(err).Warn("Upload not accepted yet, requeueing")
			select {
			case <-time.After(requeueDelay):
			case <-ctx.Done():
			}
			_ = ack.Nack(false, true)
			return
		}
		log.WithError(err).Error("Upload rejected")
		_ = ack.Nack(false, false)
		return
	}

	_ = ack.Ack(false)
	log.Info("Upload processed")
}

func shouldRequeue(err error) bool {
	return errors.Is(err, ErrRetryLater) || errors.Is(err, apperrors.ErrBusy)
}

func (c *Client) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
