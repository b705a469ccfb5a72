package services

import (
	"context"
	"errors"

	"github.com/JayKadi/ecommerce-project/middlewares"
	"github.com/JayKadi/ecommerce-project/models"
	"github.com/JayKadi/ecommerce-project/repository"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Advance moves an order one step along fulfillment, or cancels it.
// Cancelling returns the ordered quantities to stock; no refund is issued.
func (s *OrderService) Advance(ctx context.Context, orderID int64, target models.OrderStatus, actor string) (order *models.Order, err error) {
	ctx, span := s.startSpan(ctx, "OrderService.Advance",
		attribute.Int64("order.id", orderID),
		attribute.String("order.target_status", string(target)),
	)
	defer func() {
		endSpan(span, err)
		middlewares.RecordOrderOperation("update_status", err == nil)
	}()

	var from models.OrderStatus
	err = s.store.InTx(ctx, func(tx *repository.Tx) error {
		state, err := tx.OrderState(ctx, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return orderNotFoundErr()
		}
		if err != nil {
			return err
		}
		from = state.Status

		if !models.CanTransition(state.Status, target) {
			return invalidTransitionErr(string(state.Status), string(target))
		}
		if s.opts.RequirePaid && target != models.StatusCancelled && state.PaymentStatus != models.PaymentCompleted {
			return paymentRequiredErr(string(target))
		}

		now := s.timestamp()
		ok, err := tx.UpdateStatus(ctx, orderID, state.Status, target, now)
		if err != nil {
			return err
		}
		if !ok {
			return invalidTransitionErr(string(state.Status), string(target))
		}
		if err := tx.InsertStatusChange(ctx, models.OrderStatusChange{
			OrderID:   orderID,
			From:      state.Status,
			To:        target,
			Actor:     actor,
			ChangedAt: now,
		}); err != nil {
			return err
		}

		if target == models.StatusCancelled {
			items, err := tx.Items(ctx, orderID)
			if err != nil {
				return err
			}
			for _, it := range items {
				if err := tx.RestoreStock(ctx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err = s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).WithFields(logrus.Fields{
		"order_id": orderID,
		"from":     from,
		"to":       target,
		"actor":    actor,
	}).Info("Order status updated")

	event := models.NewOrderEvent(order, models.EventStatusUpdated, s.timestamp())
	event.PreviousStatus = from
	s.emit(ctx, event)
	return order, nil
}
