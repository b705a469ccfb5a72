package gateway

import (
	"context"
	"time"

	"github.com/JayKadi/ecommerce-project/middlewares"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// circuitBreaker wraps gobreaker with Prometheus state tracking.
type circuitBreaker struct {
	*gobreaker.CircuitBreaker
	name string
}

func newCircuitBreaker(name string) *circuitBreaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			middlewares.SetCircuitState(cbName, stateValue(to))
			log.WithFields(log.Fields{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Circuit breaker state changed")
		},
	})
	middlewares.SetCircuitState(name, 0)
	return &circuitBreaker{CircuitBreaker: cb, name: name}
}

func (cb *circuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cb.CircuitBreaker.Execute(fn)
	if err != nil {
		middlewares.RecordCircuitFailure(cb.name)
	}
	return result, err
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// bulkhead bounds the number of concurrent provider calls.
type bulkhead struct {
	semaphore chan struct{}
	name      string
	wait      time.Duration
}

func newBulkhead(size int, name string, wait time.Duration) *bulkhead {
	if size < 1 {
		size = 1
	}
	return &bulkhead{semaphore: make(chan struct{}, size), name: name, wait: wait}
}

func (b *bulkhead) Execute(ctx context.Context, fn func() error) error {
	timer := time.NewTimer(b.wait)
	defer timer.Stop()

	select {
	case b.semaphore <- struct{}{}:
		middlewares.BulkheadAcquired(b.name)
		defer func() {
			<-b.semaphore
			middlewares.BulkheadReleased(b.name)
		}()
		return fn()
	case <-timer.C:
		middlewares.BulkheadRejected(b.name)
		return ErrBusy
	case <-ctx.Done():
		middlewares.BulkheadRejected(b.name)
		return ctx.Err()
	}
}
