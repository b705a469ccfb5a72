// Package events fans order events out to every configured sink.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/JayKadi/ecommerce-project/models"
)

type Sink interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

type Scheduler interface {
	SchedulePaymentCheck(ctx context.Context, orderID int64, attempt int, delay time.Duration) error
}

// Fanout delivers each event to all sinks and delegates scheduling.
type Fanout struct {
	sinks     []Sink
	scheduler Scheduler
}

// NewFanout builds a fanout. Nil sinks are skipped; scheduler may be nil.
func NewFanout(scheduler Scheduler, sinks ...Sink) *Fanout {
	f := &Fanout{scheduler: scheduler}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.PublishOrderEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) SchedulePaymentCheck(ctx context.Context, orderID int64, attempt int, delay time.Duration) error {
	if f.scheduler == nil {
		return nil
	}
	return f.scheduler.SchedulePaymentCheck(ctx, orderID, attempt, delay)
}
