package services

import (
	"context"
	"strings"

	"github.com/JayKadi/ecommerce-project/gateway"
	"github.com/JayKadi/ecommerce-project/middlewares"
	"github.com/JayKadi/ecommerce-project/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// VerifyPayment reconciles an order against the gateway. It is safe to call
// any number of times, concurrently, from the redirect, the IPN and the
// delayed re-check. An order that is already settled is returned unchanged
// without contacting the gateway. A still-pending outcome returns the order
// with PaymentStatus pending; callers retry later.
func (s *OrderService) VerifyPayment(ctx context.Context, trackingID, merchantReference string) (order *models.Order, err error) {
	merchantReference = strings.TrimSpace(merchantReference)
	trackingID = strings.TrimSpace(trackingID)

	ctx, span := s.startSpan(ctx, "OrderService.VerifyPayment",
		attribute.String("payment.merchant_reference", merchantReference),
		attribute.String("payment.tracking_id", trackingID),
	)
	defer func() { endSpan(span, err) }()

	orderID, ok := models.ParseMerchantReference(merchantReference)
	if !ok {
		return nil, orderNotFoundErr()
	}
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.MerchantReference != merchantReference {
		return nil, orderNotFoundErr()
	}
	return s.reconcile(ctx, o, trackingID)
}

// VerifyOrderPayment re-checks an order by id using its stored session.
func (s *OrderService) VerifyOrderPayment(ctx context.Context, orderID int64) (*models.Order, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, o, "")
}

func (s *OrderService) reconcile(ctx context.Context, o *models.Order, trackingID string) (*models.Order, error) {
	if o.PaymentStatus != models.PaymentPending {
		return o, nil
	}
	// A stored session is authoritative; a caller-supplied tracking id only
	// matters before the session write landed.
	if o.PaymentReference != "" {
		if trackingID != "" && trackingID != o.PaymentReference {
			s.log.WithContext(ctx).WithFields(logrus.Fields{
				"order_id":    o.ID,
				"tracking_id": trackingID,
			}).Warn("Ignoring tracking id that does not match the order's payment session")
		}
		trackingID = o.PaymentReference
	}
	if trackingID == "" {
		return o, nil
	}

	outcome, err := s.gateway.QueryStatus(ctx, trackingID)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("order_id", o.ID).Warn("Payment status query failed")
		return nil, gatewayQueryErr(err)
	}

	// The provider must attribute the transaction to this order. Without a
	// stored session an unattributed outcome is not trusted either.
	if outcome.MerchantReference != o.MerchantReference &&
		(outcome.MerchantReference != "" || o.PaymentReference == "") {
		s.log.WithContext(ctx).WithFields(logrus.Fields{
			"order_id":           o.ID,
			"tracking_id":        trackingID,
			"merchant_reference": outcome.MerchantReference,
		}).Warn("Payment outcome belongs to another merchant reference")
		middlewares.RecordReconciliation("mismatch")
		return o, nil
	}

	var next models.PaymentStatus
	switch outcome.Kind {
	case gateway.OutcomeCompleted:
		next = models.PaymentCompleted
	case gateway.OutcomeFailed:
		next = models.PaymentFailed
	default:
		middlewares.RecordReconciliation(string(models.PaymentPending))
		return o, nil
	}

	applied, err := s.store.SetPaymentOutcome(ctx, o.ID, next, trackingID, s.timestamp())
	if err != nil {
		return nil, err
	}
	current, err := s.loadOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Another verifier settled it first; report what was stored.
		return current, nil
	}

	middlewares.RecordReconciliation(string(next))
	s.log.WithContext(ctx).WithFields(logrus.Fields{
		"order_id":       current.ID,
		"payment_status": next,
		"description":    outcome.Description,
	}).Info("Payment reconciled")

	eventType := models.EventPaymentCompleted
	if next == models.PaymentFailed {
		eventType = models.EventPaymentFailed
	}
	s.publish(ctx, current, eventType)
	return current, nil
}
