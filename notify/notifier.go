package notify

import (
	"context"
	"fmt"

	"github.com/JayKadi/ecommerce-project/models"
	"github.com/sirupsen/logrus"
)

// OrderLoader resolves the order an event refers to.
type OrderLoader interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
}

const queueSize = 256

// Notifier is an event sink that emails the customer on order creation and
// on every status change. Delivery runs on a single worker; a full queue
// drops the event.
type Notifier struct {
	orders OrderLoader
	mailer Mailer
	shop   string
	log    *logrus.Logger
	queue  chan models.OrderEvent
}

func NewNotifier(orders OrderLoader, mailer Mailer, shop string, log *logrus.Logger) *Notifier {
	return &Notifier{
		orders: orders,
		mailer: mailer,
		shop:   shop,
		log:    log,
		queue:  make(chan models.OrderEvent, queueSize),
	}
}

// PublishOrderEvent queues the event without blocking the caller.
func (n *Notifier) PublishOrderEvent(_ context.Context, event models.OrderEvent) error {
	if event.Type != models.EventOrderCreated && event.Type != models.EventStatusUpdated {
		return nil
	}
	select {
	case n.queue <- event:
		return nil
	default:
		return fmt.Errorf("notification queue full, dropped %s for order %d", event.Type, event.OrderID)
	}
}

// Start runs the delivery worker until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-n.queue:
				if err := n.deliver(ctx, event); err != nil {
					n.log.WithError(err).WithFields(logrus.Fields{
						"order_id": event.OrderID,
						"type":     event.Type,
					}).Warn("Failed to send order notification")
				}
			}
		}
	}()
}

func (n *Notifier) deliver(ctx context.Context, event models.OrderEvent) error {
	order, err := n.orders.GetOrder(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if order.CustomerEmail == "" {
		return nil
	}

	v := view{Shop: n.shop, Order: order, Previous: event.PreviousStatus}
	var subject, body string
	switch event.Type {
	case models.EventOrderCreated:
		subject = fmt.Sprintf("Order Confirmation - Order #%d", order.ID)
		body, err = render(confirmationTmpl, v)
	case models.EventStatusUpdated:
		// The event carries the status at publish time; the stored row may have moved on.
		order.Status = event.Status
		subject = fmt.Sprintf("Order #%d Status Update - %s", order.ID, statusTitle(event.Status))
		body, err = render(statusTmpl, v)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", event.Type, err)
	}

	if err := n.mailer.Send(ctx, order.CustomerEmail, subject, body); err != nil {
		return err
	}
	n.log.WithFields(logrus.Fields{"order_id": order.ID, "type": event.Type}).Info("Order notification sent")
	return nil
}
