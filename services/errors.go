package services

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrProductUnavailable  = errors.New("product unavailable")
	ErrUnknownDeliveryZone = errors.New("unknown delivery zone")
	ErrValidation          = errors.New("validation failed")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrPaymentRequired     = errors.New("payment not completed")
	ErrPaymentNotInitiable = errors.New("payment cannot be initiated for this order")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrGatewayQueryFailed  = errors.New("payment status query failed")
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindTransientExternal
)

// Error is a classified failure. It unwraps to one of the sentinels above.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Field     string
	ProductID int64
	err       error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.err }

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindTransientExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func validationErr(field, msg string) *Error {
	return &Error{Kind: KindValidation, Code: "validation_error", Field: field, Message: msg, err: ErrValidation}
}

func emptyCartErr() *Error {
	return &Error{Kind: KindValidation, Code: "empty_cart", Field: "items", Message: "order must contain at least one item", err: ErrEmptyCart}
}

func unknownProductErr(productID int64) *Error {
	return &Error{
		Kind:      KindValidation,
		Code:      "validation_error",
		Field:     "items",
		ProductID: productID,
		Message:   fmt.Sprintf("product %d does not exist or is not for sale", productID),
		err:       ErrValidation,
	}
}

func productUnavailableErr(productID int64, name string) *Error {
	return &Error{
		Kind:      KindConflict,
		Code:      "product_unavailable",
		ProductID: productID,
		Message:   fmt.Sprintf("insufficient stock for %s", name),
		err:       ErrProductUnavailable,
	}
}

func unknownZoneErr(city string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    "unknown_delivery_zone",
		Field:   "shipping_city",
		Message: fmt.Sprintf("we do not deliver to %q", city),
		err:     ErrUnknownDeliveryZone,
	}
}

func orderNotFoundErr() *Error {
	return &Error{Kind: KindNotFound, Code: "order_not_found", Message: "order not found", err: ErrOrderNotFound}
}

func invalidTransitionErr(from, to string) *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    "invalid_transition",
		Message: fmt.Sprintf("cannot move order from %s to %s", from, to),
		err:     ErrInvalidTransition,
	}
}

func paymentRequiredErr(to string) *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    "payment_required",
		Message: fmt.Sprintf("order must be paid before it can be %s", to),
		err:     ErrPaymentRequired,
	}
}

func notInitiableErr(reason string) *Error {
	return &Error{Kind: KindConflict, Code: "payment_not_initiable", Message: reason, err: ErrPaymentNotInitiable}
}

func gatewayUnavailableErr(cause error) *Error {
	return &Error{
		Kind:    KindTransientExternal,
		Code:    "gateway_unavailable",
		Message: "payment gateway is unavailable, please retry",
		err:     fmt.Errorf("%w: %v", ErrGatewayUnavailable, cause),
	}
}

func gatewayQueryErr(cause error) *Error {
	return &Error{
		Kind:    KindTransientExternal,
		Code:    "gateway_query_failed",
		Message: "could not confirm payment status, please retry",
		err:     fmt.Errorf("%w: %v", ErrGatewayQueryFailed, cause),
	}
}
