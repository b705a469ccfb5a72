package services

import (
	"context"
	"fmt"
	"time"

	"github.com/JayKadi/ecommerce-project/models"
	"github.com/tealeg/xlsx"
	"go.opentelemetry.io/otel/attribute"
)

// LowStockThreshold is the stock level at or below which a product is flagged.
const LowStockThreshold = 2

// Requester is the authenticated caller of a read.
type Requester struct {
	ID       string
	Operator bool
}

// GetOrder returns the order if the requester owns it or is an operator.
// Anyone else gets ErrOrderNotFound, so existence is not revealed.
func (s *OrderService) GetOrder(ctx context.Context, id int64, who Requester) (order *models.Order, err error) {
	ctx, span := s.startSpan(ctx, "OrderService.GetOrder", attribute.Int64("order.id", id))
	defer func() { endSpan(span, err) }()

	o, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.Operator && o.CustomerID != who.ID {
		return nil, orderNotFoundErr()
	}
	return o, nil
}

// ListCustomerOrders returns the customer's own orders, newest first.
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID string) ([]*models.Order, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

// ListOrders returns every order for operators, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, status string) ([]*models.Order, error) {
	if status == "" {
		return s.store.ListAll(ctx, "")
	}
	parsed, ok := models.ParseOrderStatus(status)
	if !ok {
		return nil, validationErr("status", fmt.Sprintf("unknown status %q", status))
	}
	return s.store.ListAll(ctx, parsed)
}

// OrderHistory returns the fulfillment audit trail of an order.
func (s *OrderService) OrderHistory(ctx context.Context, id int64) ([]models.OrderStatusChange, error) {
	if _, err := s.loadOrder(ctx, id); err != nil {
		return nil, err
	}
	return s.store.StatusHistory(ctx, id)
}

// DashboardStats summarises orders for the operator dashboard. Revenue counts
// completed payments only; "today" starts at UTC midnight of now.
func (s *OrderService) DashboardStats(ctx context.Context, now time.Time) (models.DashboardStats, error) {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stats, err := s.store.Stats(ctx, dayStart)
	if err != nil {
		return stats, err
	}
	if stats.LowStockItems, err = s.store.CountLowStock(ctx, LowStockThreshold); err != nil {
		return stats, err
	}
	return stats, nil
}

var exportHeaders = []string{
	"Order ID", "Merchant Reference", "Customer", "City", "Phone", "Items",
	"Subtotal", "Delivery Fee", "Total", "Currency", "Status", "Payment Status",
	"Payment Reference", "Created At",
}

// ExportOrders renders every order as a spreadsheet.
func (s *OrderService) ExportOrders(ctx context.Context) (*xlsx.File, error) {
	orders, err := s.store.ListAll(ctx, "")
	if err != nil {
		return nil, err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return nil, fmt.Errorf("services: export sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetValue(h)
	}

	for _, o := range orders {
		units := 0
		for _, it := range o.Items {
			units += it.Quantity
		}
		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID)
		row.AddCell().SetValue(o.MerchantReference)
		row.AddCell().SetValue(o.CustomerID)
		row.AddCell().SetValue(o.ShippingCity)
		row.AddCell().SetValue(o.PhoneNumber)
		row.AddCell().SetValue(units)
		row.AddCell().SetValue(o.Subtotal.StringFixed(2))
		row.AddCell().SetValue(o.DeliveryFee.StringFixed(2))
		row.AddCell().SetValue(o.TotalAmount.StringFixed(2))
		row.AddCell().SetValue(o.Currency)
		row.AddCell().SetValue(string(o.Status))
		row.AddCell().SetValue(string(o.PaymentStatus))
		row.AddCell().SetValue(o.PaymentReference)
		row.AddCell().SetValue(o.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return file, nil
}
