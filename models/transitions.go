package models

import "strings"

// fulfillmentPipeline is the linear happy path.
var fulfillmentPipeline = []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered}

// ParseOrderStatus maps user input to a known fulfillment status.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return status, true
	}
	return "", false
}

// NextStatus returns the immediate successor on the pipeline.
func NextStatus(s OrderStatus) (OrderStatus, bool) {
	for i, step := range fulfillmentPipeline {
		if step == s && i+1 < len(fulfillmentPipeline) {
			return fulfillmentPipeline[i+1], true
		}
	}
	return "", false
}

// CanCancel reports whether goods can still be cancelled from s.
func CanCancel(s OrderStatus) bool {
	return s == StatusPending || s == StatusProcessing
}

// CanTransition allows only the immediate successor or a cancellation from pending/processing.
func CanTransition(from, to OrderStatus) bool {
	if to == StatusCancelled {
		return CanCancel(from)
	}
	next, ok := NextStatus(from)
	return ok && next == to
}

// IsTerminal reports whether no further fulfillment transition exists.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// IsTerminal reports whether the payment outcome is settled.
func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentCompleted || p == PaymentFailed
}
