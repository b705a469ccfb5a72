package services

import (
	"context"
	"errors"

	"github.com/JayKadi/ecommerce-project/gateway"
	"github.com/JayKadi/ecommerce-project/middlewares"
	"github.com/JayKadi/ecommerce-project/models"
	"github.com/JayKadi/ecommerce-project/repository"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// PaymentHandle is what the storefront needs to send the customer to checkout.
type PaymentHandle struct {
	OrderID           int64  `json:"order_id"`
	RedirectURL       string `json:"payment_redirect_url"`
	MerchantReference string `json:"merchant_reference"`
	TrackingID        string `json:"tracking_id"`
}

func handleFor(o *models.Order) PaymentHandle {
	return PaymentHandle{
		OrderID:           o.ID,
		RedirectURL:       o.PaymentRedirectURL,
		MerchantReference: o.MerchantReference,
		TrackingID:        o.PaymentReference,
	}
}

func (s *OrderService) loadOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, orderNotFoundErr()
	}
	return o, err
}

// InitiatePayment opens a hosted checkout for the order, at most once.
// A repeated call returns the stored session without contacting the gateway.
func (s *OrderService) InitiatePayment(ctx context.Context, orderID int64) (handle PaymentHandle, err error) {
	ctx, span := s.startSpan(ctx, "OrderService.InitiatePayment", attribute.Int64("order.id", orderID))
	defer func() {
		endSpan(span, err)
		middlewares.RecordOrderOperation("initiate_payment", err == nil)
	}()

	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return PaymentHandle{}, err
	}
	if o.PaymentReference != "" {
		return handleFor(o), nil
	}
	if o.Status == models.StatusCancelled {
		return PaymentHandle{}, notInitiableErr("order is cancelled")
	}
	if o.PaymentStatus != models.PaymentPending {
		return PaymentHandle{}, notInitiableErr("order payment is already " + string(o.PaymentStatus))
	}

	session, err := s.gateway.CreateSession(ctx, gateway.SessionRequest{
		MerchantReference: o.MerchantReference,
		Amount:            o.TotalAmount,
		Currency:          o.Currency,
		Description:       "Order " + o.MerchantReference,
		CustomerID:        o.CustomerID,
		Phone:             o.PhoneNumber,
	})
	if err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("order_id", o.ID).Warn("Payment session creation failed")
		return PaymentHandle{}, gatewayUnavailableErr(err)
	}

	stored, err := s.store.SetPaymentSession(ctx, o.ID, session.TrackingID, session.RedirectURL, s.timestamp())
	if err != nil {
		return PaymentHandle{}, err
	}
	if !stored {
		// A concurrent initiation stored its session first.
		if o, err = s.loadOrder(ctx, orderID); err != nil {
			return PaymentHandle{}, err
		}
		return handleFor(o), nil
	}

	s.log.WithContext(ctx).WithFields(logrus.Fields{
		"order_id":    o.ID,
		"tracking_id": session.TrackingID,
	}).Info("Payment initiated")

	o.PaymentReference = session.TrackingID
	o.PaymentRedirectURL = session.RedirectURL
	return handleFor(o), nil
}
