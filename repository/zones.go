package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JayKadi/ecommerce-project/models"
)

// GetZone matches city exactly; callers normalise it first.
func (s *Store) GetZone(ctx context.Context, city string) (*models.DeliveryZone, error) {
	var z models.DeliveryZone
	err := s.db.QueryRowContext(ctx,
		`SELECT city, fee, estimated_days FROM delivery_zones WHERE city = ?`, city,
	).Scan(&z.City, &z.Fee, &z.EstimatedDays)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get zone %q: %w", city, err)
	}
	return &z, nil
}

func (s *Store) ListZones(ctx context.Context) ([]models.DeliveryZone, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT city, fee, estimated_days FROM delivery_zones ORDER BY city ASC`)
	if err != nil {
		return nil, fmt.Errorf("repository: list zones: %w", err)
	}
	defer rows.Close()

	zones := []models.DeliveryZone{}
	for rows.Next() {
		var z models.DeliveryZone
		if err := rows.Scan(&z.City, &z.Fee, &z.EstimatedDays); err != nil {
			return nil, fmt.Errorf("repository: scan zone: %w", err)
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// UpsertZone seeds or replaces a zone. Used by fixtures and local setup.
func (s *Store) UpsertZone(ctx context.Context, z models.DeliveryZone) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM delivery_zones WHERE city = ?`, z.City); err != nil {
		return fmt.Errorf("repository: upsert zone %q: %w", z.City, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_zones (city, fee, estimated_days) VALUES (?, ?, ?)`,
		z.City, z.Fee, z.EstimatedDays,
	); err != nil {
		return fmt.Errorf("repository: upsert zone %q: %w", z.City, err)
	}
	return nil
}
