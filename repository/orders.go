package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JayKadi/ecommerce-project/models"
)

const orderColumns = `id, customer_id, shipping_address, shipping_city, shipping_postal_code,
	shipping_country, phone_number, whatsapp_number, customer_email, subtotal, delivery_fee,
	estimated_delivery_days, total_amount, currency, status, payment_status,
	payment_reference, payment_redirect_url, merchant_reference, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	var (
		o                  models.Order
		ref, redirect      sql.NullString
		createdAt, updated sqlTime
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.ShippingAddress, &o.ShippingCity, &o.ShippingPostalCode,
		&o.ShippingCountry, &o.PhoneNumber, &o.WhatsappNumber, &o.CustomerEmail, &o.Subtotal, &o.DeliveryFee,
		&o.EstimatedDeliveryDays, &o.TotalAmount, &o.Currency, &o.Status, &o.PaymentStatus,
		&ref, &redirect, &o.MerchantReference, &createdAt, &updated,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentReference = fromNull(ref)
	o.PaymentRedirectURL = fromNull(redirect)
	o.CreatedAt = createdAt.Time
	o.UpdatedAt = updated.Time
	return &o, nil
}

// InsertOrder writes the order header and sets its id. The merchant reference
// needs the id, so it is stored separately with SetMerchantReference.
func (t *Tx) InsertOrder(ctx context.Context, o *models.Order) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (customer_id, shipping_address, shipping_city, shipping_postal_code,
			shipping_country, phone_number, whatsapp_number, customer_email, subtotal, delivery_fee,
			estimated_delivery_days, total_amount, currency, status, payment_status,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.CustomerID, o.ShippingAddress, o.ShippingCity, o.ShippingPostalCode,
		o.ShippingCountry, o.PhoneNumber, o.WhatsappNumber, o.CustomerEmail, o.Subtotal, o.DeliveryFee,
		o.EstimatedDeliveryDays, o.TotalAmount, o.Currency, string(o.Status), string(o.PaymentStatus),
		o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("repository: insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("repository: order id: %w", err)
	}
	o.ID = id
	return nil
}

func (t *Tx) SetMerchantReference(ctx context.Context, orderID int64, ref string) error {
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE orders SET merchant_reference = ? WHERE id = ?`, ref, orderID,
	); err != nil {
		return fmt.Errorf("repository: set merchant reference %d: %w", orderID, err)
	}
	return nil
}

func (t *Tx) InsertItems(ctx context.Context, orderID int64, items []models.OrderItem) error {
	for i := range items {
		it := &items[i]
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			orderID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice,
		); err != nil {
			return fmt.Errorf("repository: insert item for order %d: %w", orderID, err)
		}
		it.OrderID = orderID
	}
	return nil
}

func loadItems(ctx context.Context, q querier, orderID int64) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT order_id, product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = ? ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: items for order %d: %w", orderID, err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("repository: scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Items returns the order's lines inside the transaction.
func (t *Tx) Items(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return loadItems(ctx, t.tx, orderID)
}

// GetOrder loads the order with its items.
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get order %d: %w", id, err)
	}
	if o.Items, err = loadItems(ctx, s.db, id); err != nil {
		return nil, err
	}
	return o, nil
}

// ListByCustomer returns the customer's orders, newest first.
func (s *Store) ListByCustomer(ctx context.Context, customerID string) ([]*models.Order, error) {
	return s.listOrders(ctx, `WHERE customer_id = ?`, customerID)
}

// ListAll returns every order, newest first, optionally filtered by status.
func (s *Store) ListAll(ctx context.Context, status models.OrderStatus) ([]*models.Order, error) {
	if status == "" {
		return s.listOrders(ctx, ``)
	}
	return s.listOrders(ctx, `WHERE status = ?`, string(status))
}

func (s *Store) listOrders(ctx context.Context, where string, args ...any) ([]*models.Order, error) {
	query := strings.TrimSpace(`SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY created_at DESC, id DESC`)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: list orders: %w", err)
	}

	orders := []*models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("repository: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the connection before loading items; SQLite runs with one.
	rows.Close()

	for _, o := range orders {
		if o.Items, err = loadItems(ctx, s.db, o.ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// SetPaymentSession stores the gateway session once. It reports false when a
// session was already stored.
func (s *Store) SetPaymentSession(ctx context.Context, orderID int64, trackingID, redirectURL string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET payment_reference = ?, payment_redirect_url = ?, updated_at = ?
		WHERE id = ? AND payment_reference IS NULL`,
		nullString(trackingID), nullString(redirectURL), now.UTC(), orderID,
	)
	if err != nil {
		return false, fmt.Errorf("repository: set payment session %d: %w", orderID, err)
	}
	return affected(res)
}

// SetPaymentOutcome moves payment_status out of pending. It reports false when
// the order was no longer pending.
func (s *Store) SetPaymentOutcome(ctx context.Context, orderID int64, status models.PaymentStatus, trackingID string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = ?, payment_reference = COALESCE(payment_reference, ?), updated_at = ?
		WHERE id = ? AND payment_status = ?`,
		string(status), nullString(trackingID), now.UTC(), orderID, string(models.PaymentPending),
	)
	if err != nil {
		return false, fmt.Errorf("repository: set payment outcome %d: %w", orderID, err)
	}
	return affected(res)
}

// OrderState is the part of an order the fulfillment machine reads.
type OrderState struct {
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
}

func (t *Tx) OrderState(ctx context.Context, orderID int64) (OrderState, error) {
	var st OrderState
	err := t.tx.QueryRowContext(ctx,
		`SELECT status, payment_status FROM orders WHERE id = ?`, orderID,
	).Scan(&st.Status, &st.PaymentStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return st, ErrNotFound
	}
	if err != nil {
		return st, fmt.Errorf("repository: order state %d: %w", orderID, err)
	}
	return st, nil
}

// UpdateStatus applies from -> to only if the order is still in from.
func (t *Tx) UpdateStatus(ctx context.Context, orderID int64, from, to models.OrderStatus, now time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), now.UTC(), orderID, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("repository: update status %d: %w", orderID, err)
	}
	return affected(res)
}

func (t *Tx) InsertStatusChange(ctx context.Context, c models.OrderStatusChange) error {
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, from_status, to_status, actor, changed_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.OrderID, string(c.From), string(c.To), c.Actor, c.ChangedAt.UTC(),
	); err != nil {
		return fmt.Errorf("repository: insert status change %d: %w", c.OrderID, err)
	}
	return nil
}

// StatusHistory returns the audit trail for an order, oldest first.
func (s *Store) StatusHistory(ctx context.Context, orderID int64) ([]models.OrderStatusChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, from_status, to_status, actor, changed_at
		FROM order_status_history WHERE order_id = ? ORDER BY changed_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: status history %d: %w", orderID, err)
	}
	defer rows.Close()

	history := []models.OrderStatusChange{}
	for rows.Next() {
		var (
			c  models.OrderStatusChange
			at sqlTime
		)
		if err := rows.Scan(&c.OrderID, &c.From, &c.To, &c.Actor, &at); err != nil {
			return nil, fmt.Errorf("repository: scan status change: %w", err)
		}
		c.ChangedAt = at.Time
		history = append(history, c)
	}
	return history, rows.Err()
}

// Stats aggregates order counts and completed-payment revenue. Orders created
// at or after dayStart count as today's.
func (s *Store) Stats(ctx context.Context, dayStart time.Time) (models.DashboardStats, error) {
	var st models.DashboardStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? AND payment_status = ? THEN total_amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN payment_status = ? THEN total_amount ELSE 0 END), 0)
		FROM orders`,
		string(models.StatusPending),
		dayStart.UTC(),
		dayStart.UTC(), string(models.PaymentCompleted),
		string(models.PaymentCompleted),
	).Scan(&st.TotalOrders, &st.PendingOrders, &st.TodayOrders, &st.TodayRevenue, &st.TotalRevenue)
	if err != nil {
		return st, fmt.Errorf("repository: order stats: %w", err)
	}
	st.TodayRevenue = st.TodayRevenue.Round(2)
	st.TotalRevenue = st.TotalRevenue.Round(2)
	return st, nil
}
