package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

type PaymentStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"

	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type Order struct {
	ID                    int64           `json:"id"`
	CustomerID            string          `json:"customer_id"`
	ShippingAddress       string          `json:"shipping_address"`
	ShippingCity          string          `json:"shipping_city"`
	ShippingPostalCode    string          `json:"shipping_postal_code"`
	ShippingCountry       string          `json:"shipping_country"`
	PhoneNumber           string          `json:"phone_number"`
	WhatsappNumber        string          `json:"whatsapp_number,omitempty"`
	CustomerEmail         string          `json:"customer_email,omitempty"`
	Items                 []OrderItem     `json:"items"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DeliveryFee           decimal.Decimal `json:"delivery_fee"`
	EstimatedDeliveryDays int             `json:"estimated_delivery_days"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	Currency              string          `json:"currency"`
	Status                OrderStatus     `json:"status"`
	PaymentStatus         PaymentStatus   `json:"payment_status"`
	PaymentReference      string          `json:"payment_reference,omitempty"`
	PaymentRedirectURL    string          `json:"payment_redirect_url,omitempty"`
	MerchantReference     string          `json:"merchant_reference"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

type OrderItem struct {
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// LineTotal is the item's contribution to the order subtotal.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartLine is a caller-supplied cart entry. UnitPrice is what the client last saw
// and is never used for pricing.
type CartLine struct {
	ProductID int64           `json:"product_id" binding:"required,gt=0"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"price"`
}

type ShippingForm struct {
	ShippingAddress    string `json:"shipping_address" binding:"required"`
	ShippingCity       string `json:"shipping_city" binding:"required"`
	ShippingPostalCode string `json:"shipping_postal_code" binding:"required"`
	ShippingCountry    string `json:"shipping_country" binding:"required"`
	PhoneNumber        string `json:"phone_number" binding:"required"`
	WhatsappNumber     string `json:"whatsapp_number"`
	Email              string `json:"email" binding:"omitempty,email"`
}

type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	IsActive bool            `json:"is_active"`
}

type DeliveryZone struct {
	City          string          `json:"city"`
	Fee           decimal.Decimal `json:"fee"`
	EstimatedDays int             `json:"estimated_days"`
}

// OrderStatusChange is one row of the fulfillment audit trail.
type OrderStatusChange struct {
	OrderID   int64       `json:"order_id"`
	From      OrderStatus `json:"from_status"`
	To        OrderStatus `json:"to_status"`
	Actor     string      `json:"actor"`
	ChangedAt time.Time   `json:"changed_at"`
}

type DashboardStats struct {
	TotalOrders   int             `json:"total_orders"`
	PendingOrders int             `json:"pending_orders"`
	TodayOrders   int             `json:"today_orders"`
	TodayRevenue  decimal.Decimal `json:"today_revenue"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	LowStockItems int             `json:"low_stock_items"`
}

type OrderEvent struct {
	EventID    string      `json:"event_id"`
	OrderID    int64       `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Type       string      `json:"type"`
	Status     OrderStatus `json:"status"`
	// PreviousStatus is set on status_updated events.
	PreviousStatus OrderStatus   `json:"previous_status,omitempty"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	Total          string        `json:"total"`
	Attempt        int           `json:"attempt,omitempty"`
	Occurred       time.Time     `json:"occurred"`
}

// Event types.
const (
	EventOrderCreated     = "created"
	EventStatusUpdated    = "status_updated"
	EventPaymentCompleted = "payment_completed"
	EventPaymentFailed    = "payment_failed"
	EventPaymentCheck     = "payment_check"
)

// NewOrderEvent snapshots the order for an outgoing event.
func NewOrderEvent(o *Order, eventType string, at time.Time) OrderEvent {
	return OrderEvent{
		EventID:       uuid.NewString(),
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		Type:          eventType,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.TotalAmount.StringFixed(2),
		Occurred:      at,
	}
}
