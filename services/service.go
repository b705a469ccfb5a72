// Package services holds the order lifecycle: building orders from a cart,
// opening payment sessions, reconciling payment outcomes and moving orders
// through fulfillment.
package services

import (
	"context"
	"time"

	"github.com/JayKadi/ecommerce-project/gateway"
	"github.com/JayKadi/ecommerce-project/models"
	"github.com/JayKadi/ecommerce-project/repository"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/JayKadi/ecommerce-project/services"

// ZoneDirectory resolves shipping cities.
type ZoneDirectory interface {
	Lookup(ctx context.Context, city string) (models.DeliveryZone, error)
}

// Publisher receives order events after the state change has committed.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
	SchedulePaymentCheck(ctx context.Context, orderID int64, attempt int, delay time.Duration) error
}

type Options struct {
	Currency          string
	RequirePaid       bool
	PaymentCheckDelay time.Duration
}

type OrderService struct {
	store   *repository.Store
	zones   ZoneDirectory
	gateway gateway.Gateway
	events  Publisher
	opts    Options
	log     *logrus.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewOrderService wires the lifecycle. events may be nil.
func NewOrderService(store *repository.Store, zones ZoneDirectory, gw gateway.Gateway, events Publisher, opts Options, log *logrus.Logger) *OrderService {
	if opts.Currency == "" {
		opts.Currency = "KES"
	}
	return &OrderService{
		store:   store,
		zones:   zones,
		gateway: gw,
		events:  events,
		opts:    opts,
		log:     log,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
}

// timestamp is UTC at microsecond precision, which both databases keep exactly.
func (s *OrderService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *OrderService) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *OrderService) publish(ctx context.Context, o *models.Order, eventType string) {
	s.emit(ctx, models.NewOrderEvent(o, eventType, s.timestamp()))
}

func (s *OrderService) emit(ctx context.Context, event models.OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.log.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
			"order_id": event.OrderID,
			"type":     event.Type,
		}).Warn("Failed to publish order event")
	}
}

func (s *OrderService) schedulePaymentCheck(ctx context.Context, orderID int64, attempt int) {
	if s.events == nil || s.opts.PaymentCheckDelay <= 0 {
		return
	}
	if err := s.events.SchedulePaymentCheck(ctx, orderID, attempt, s.opts.PaymentCheckDelay); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("order_id", orderID).Warn("Failed to schedule payment check")
	}
}
