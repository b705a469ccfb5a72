package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JayKadi/ecommerce-project/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, price, stock, is_active`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.IsActive); err != nil {
		return nil, err
	}
	return &p, nil
}

func getProduct(ctx context.Context, q querier, id int64) (*models.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get product %d: %w", id, err)
	}
	return p, nil
}

// GetProduct reads the authoritative catalog row.
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return getProduct(ctx, s.db, id)
}

// GetProduct reads the catalog row inside the transaction.
func (t *Tx) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return getProduct(ctx, t.tx, id)
}

// DecrementStock removes qty units only if at least qty are available.
// It reports false when the stock was insufficient.
func (t *Tx) DecrementStock(ctx context.Context, productID int64, qty int) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
		qty, productID, qty,
	)
	if err != nil {
		return false, fmt.Errorf("repository: decrement stock %d: %w", productID, err)
	}
	return affected(res)
}

// RestoreStock returns qty units to the product.
func (t *Tx) RestoreStock(ctx context.Context, productID int64, qty int) error {
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE products SET stock = stock + ? WHERE id = ?`, qty, productID,
	); err != nil {
		return fmt.Errorf("repository: restore stock %d: %w", productID, err)
	}
	return nil
}

// CreateProduct inserts a catalog row and sets its id.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (name, price, stock, is_active) VALUES (?, ?, ?, ?)`,
		p.Name, p.Price, p.Stock, p.IsActive,
	)
	if err != nil {
		return fmt.Errorf("repository: create product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("repository: product id: %w", err)
	}
	p.ID = id
	return nil
}

// SetProductPrice changes the live catalog price.
func (s *Store) SetProductPrice(ctx context.Context, id int64, price decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `UPDATE products SET price = ? WHERE id = ?`, price, id)
	if err != nil {
		return fmt.Errorf("repository: set price %d: %w", id, err)
	}
	return nil
}

// CountLowStock counts active products at or below threshold.
func (s *Store) CountLowStock(ctx context.Context, threshold int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE is_active = ? AND stock <= ?`, true, threshold,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("repository: count low stock: %w", err)
	}
	return n, nil
}
