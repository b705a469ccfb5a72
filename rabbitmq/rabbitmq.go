package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JayKadi/ecommerce-project/config"
	"github.com/JayKadi/ecommerce-project/models"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Routing key for delayed payment re-checks on the delay exchange.
const paymentCheckKey = "payment_check"

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config

	// delayed is set once the delayed exchange is declared and bound.
	delayed bool
}

func NewRabbitMQ(cfg *config.Config) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel: %w", err)
	}

	return &RabbitMQ{
		Conn:    conn,
		Channel: ch,
		Cfg:     cfg,
	}, nil
}

func (r *RabbitMQ) SetupQueues() error {
	// Dead-letter exchange and queue.
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.DeadLetterQueue+"_exchange",
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	_, err := r.Channel.QueueDeclare(
		r.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-queue-type": "classic",
		},
	)
	if err != nil {
		return err
	}

	if err := r.Channel.QueueBind(
		r.Cfg.DeadLetterQueue,
		r.Cfg.DeadLetterQueue,
		r.Cfg.DeadLetterQueue+"_exchange",
		false,
		nil,
	); err != nil {
		return err
	}

	if err := r.Channel.ExchangeDeclare(
		r.Cfg.OrderExchange,
		"fanout",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	// Order queue with priorities and dead-lettering.
	_, err = r.Channel.QueueDeclare(
		r.Cfg.OrderQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-max-priority":            r.Cfg.MaxPriority,
			"x-dead-letter-exchange":    r.Cfg.DeadLetterQueue + "_exchange",
			"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
		},
	)
	if err != nil {
		return err
	}

	if err := r.Channel.QueueBind(
		r.Cfg.OrderQueue,
		"",
		r.Cfg.OrderExchange,
		false,
		nil,
	); err != nil {
		return err
	}

	// The delayed exchange needs the rabbitmq_delayed_message_exchange plugin.
	// Without it payment re-checks are not scheduled; verification still
	// happens through the redirect and IPN.
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.DelayExchange,
		"x-delayed-message",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "direct"},
	); err != nil {
		log.WithError(err).Warn("Delayed exchange not supported")
		// A failed declare closes the channel.
		ch, chErr := r.Conn.Channel()
		if chErr != nil {
			return chErr
		}
		r.Channel = ch
		return nil
	}

	if err := r.Channel.QueueBind(
		r.Cfg.OrderQueue,
		paymentCheckKey,
		r.Cfg.DelayExchange,
		false,
		nil,
	); err != nil {
		return err
	}
	r.delayed = true
	return nil
}

// DelayedChecks reports whether payment re-checks can be scheduled.
func (r *RabbitMQ) DelayedChecks() bool {
	return r.delayed
}

var largeOrderTotal = decimal.NewFromInt(1000)

// Priority ranks an event on the order queue. Large orders go first, then cancellations.
func Priority(event models.OrderEvent) uint8 {
	priority := uint8(5)
	if event.Status == models.StatusCancelled {
		priority = 8
	}
	if total, err := decimal.NewFromString(event.Total); err == nil && total.GreaterThan(largeOrderTotal) {
		priority = 9
	}
	return priority
}

func (r *RabbitMQ) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: encode event: %w", err)
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		MessageId:    event.EventID,
		Type:         event.Type,
		Body:         body,
		Priority:     Priority(event),
	}

	return r.Channel.PublishWithContext(ctx,
		r.Cfg.OrderExchange,
		"",
		false, // mandatory
		false, // immediate
		msg,
	)
}

// SchedulePaymentCheck publishes a payment_check event that the delayed
// exchange releases to the order queue after delay. Without the delayed
// exchange it does nothing: publishing to a missing exchange would close the
// shared channel.
func (r *RabbitMQ) SchedulePaymentCheck(ctx context.Context, orderID int64, attempt int, delay time.Duration) error {
	if !r.delayed {
		log.WithFields(log.Fields{"order_id": orderID, "attempt": attempt}).
			Debug("Delayed exchange unavailable, payment check not scheduled")
		return nil
	}

	event := models.OrderEvent{
		EventID:  uuid.NewString(),
		OrderID:  orderID,
		Type:     models.EventPaymentCheck,
		Attempt:  attempt,
		Occurred: time.Now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: encode payment check: %w", err)
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		MessageId:    event.EventID,
		Type:         event.Type,
		Body:         body,
		Headers: amqp.Table{
			"x-delay": delay.Milliseconds(),
		},
	}

	return r.Channel.PublishWithContext(ctx,
		r.Cfg.DelayExchange,
		paymentCheckKey,
		false, // mandatory
		false, // immediate
		msg,
	)
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			log.WithError(err).Warn("Failed to close RabbitMQ channel")
		}
	}
	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			log.WithError(err).Warn("Failed to close RabbitMQ connection")
		}
	}
}
