package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/JayKadi/ecommerce-project/config"
	"github.com/JayKadi/ecommerce-project/models"
	"github.com/JayKadi/ecommerce-project/services"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// PaymentVerifier re-checks an order's payment against the gateway.
type PaymentVerifier interface {
	VerifyOrderPayment(ctx context.Context, orderID int64) (*models.Order, error)
}

type Scheduler interface {
	SchedulePaymentCheck(ctx context.Context, orderID int64, attempt int, delay time.Duration) error
}

// OrderConsumer handles events from the order queue.
type OrderConsumer struct {
	verifier    PaymentVerifier
	scheduler   Scheduler
	delay       time.Duration
	maxAttempts int
	timeout     time.Duration
}

func NewOrderConsumer(verifier PaymentVerifier, scheduler Scheduler, cfg *config.Config) *OrderConsumer {
	return &OrderConsumer{
		verifier:    verifier,
		scheduler:   scheduler,
		delay:       cfg.PaymentCheckDelay,
		maxAttempts: cfg.PaymentCheckMaxAttempts,
		timeout:     cfg.GatewayTimeout + 5*time.Second,
	}
}

// Start consumes the order queue and the dead-letter queue until ctx is done.
func (oc *OrderConsumer) Start(ctx context.Context, ch *amqp.Channel, cfg *config.Config) error {
	msgs, err := ch.Consume(
		cfg.OrderQueue,
		"order-service", // consumer tag
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Warn("Order queue delivery channel closed, consumer stopped")
					return
				}
				oc.ProcessOrderMessage(ctx, msg)
			}
		}
	}()

	dlqMsgs, err := ch.Consume(
		cfg.DeadLetterQueue,
		"order-service-dlq", // consumer tag
		false,               // auto-ack
		false,               // exclusive
		false,               // no-local
		false,               // no-wait
		nil,
	)
	if err != nil {
		log.WithError(err).Warn("Failed to register DLQ consumer")
		return nil
	}

	go func() {
		for msg := range dlqMsgs {
			processDeadLetterMessage(msg)
		}
	}()
	return nil
}

// ProcessOrderMessage acks handled events and dead-letters malformed ones or
// payment checks that ran out of attempts.
func (oc *OrderConsumer) ProcessOrderMessage(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Recovered from panic in message processing")
			_ = msg.Nack(false, false)
		}
	}()

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil || event.OrderID <= 0 {
		log.WithField("body", string(msg.Body)).Warn("Invalid message format")
		_ = msg.Nack(false, false)
		return
	}

	entry := log.WithFields(log.Fields{
		"order_id": event.OrderID,
		"type":     event.Type,
		"event_id": event.EventID,
	})
	entry.Info("Processing order event")

	switch event.Type {
	case models.EventPaymentCheck:
		if !oc.handlePaymentCheck(ctx, event) {
			_ = msg.Nack(false, false)
			return
		}
	case models.EventOrderCreated, models.EventStatusUpdated,
		models.EventPaymentCompleted, models.EventPaymentFailed:
		entry.WithFields(log.Fields{
			"status":         event.Status,
			"payment_status": event.PaymentStatus,
		}).Debug("Order event observed")
	default:
		entry.Warn("Unknown event type")
	}

	if err := msg.Ack(false); err != nil {
		entry.WithError(err).Warn("Failed to ack message")
	}
}

// handlePaymentCheck polls the gateway once and reschedules while the payment
// is still pending. It returns false when the message should be dead-lettered.
func (oc *OrderConsumer) handlePaymentCheck(ctx context.Context, event models.OrderEvent) bool {
	ctx, cancel := context.WithTimeout(ctx, oc.timeout)
	defer cancel()

	entry := log.WithFields(log.Fields{"order_id": event.OrderID, "attempt": event.Attempt})

	order, err := oc.verifier.VerifyOrderPayment(ctx, event.OrderID)
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		entry.Warn("Payment check for unknown order")
		return true
	case err != nil:
		entry.WithError(err).Warn("Payment check failed")
		return oc.reschedule(ctx, event)
	case order.PaymentStatus == models.PaymentPending && order.Status != models.StatusCancelled:
		return oc.reschedule(ctx, event)
	default:
		entry.WithField("payment_status", order.PaymentStatus).Info("Payment check settled")
		return true
	}
}

func (oc *OrderConsumer) reschedule(ctx context.Context, event models.OrderEvent) bool {
	attempt := event.Attempt
	if attempt < 1 {
		attempt = 1
	}
	if attempt >= oc.maxAttempts {
		log.WithFields(log.Fields{
			"order_id": event.OrderID,
			"attempts": attempt,
		}).Warn("Payment still unresolved after final check")
		return false
	}
	if err := oc.scheduler.SchedulePaymentCheck(ctx, event.OrderID, attempt+1, oc.delay); err != nil {
		log.WithError(err).WithField("order_id", event.OrderID).Error("Failed to reschedule payment check")
		return false
	}
	return true
}

func processDeadLetterMessage(msg amqp.Delivery) {
	log.WithFields(log.Fields{
		"message_id": msg.MessageId,
		"type":       msg.Type,
		"body":       string(msg.Body),
	}).Warn("Received dead letter")
	if err := msg.Ack(false); err != nil {
		log.WithError(err).Warn("Failed to ack dead letter")
	}
}
