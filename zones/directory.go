// Package zones resolves a shipping city to its delivery fee and lead time.
package zones

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JayKadi/ecommerce-project/cache"
	"github.com/JayKadi/ecommerce-project/models"
	"github.com/JayKadi/ecommerce-project/repository"
	"github.com/sirupsen/logrus"
)

// ErrUnknownZone is returned for a city with no configured zone.
var ErrUnknownZone = errors.New("zones: unknown delivery zone")

type Store interface {
	GetZone(ctx context.Context, city string) (*models.DeliveryZone, error)
	ListZones(ctx context.Context) ([]models.DeliveryZone, error)
}

type Directory struct {
	store Store
	cache cache.Cache
	ttl   time.Duration
	log   *logrus.Logger
}

// NewDirectory builds a directory. c may be nil, in which case every lookup
// reads the store.
func NewDirectory(store Store, c cache.Cache, ttl time.Duration, log *logrus.Logger) *Directory {
	return &Directory{store: store, cache: c, ttl: ttl, log: log}
}

// Normalize trims and lower-cases a city name.
func Normalize(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// Lookup resolves city case-insensitively. An unknown city is an error, never a zero fee.
func (d *Directory) Lookup(ctx context.Context, city string) (models.DeliveryZone, error) {
	key := Normalize(city)
	if key == "" {
		return models.DeliveryZone{}, ErrUnknownZone
	}

	if z, ok := d.cached(ctx, key); ok {
		return z, nil
	}

	z, err := d.store.GetZone(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return models.DeliveryZone{}, ErrUnknownZone
	}
	if err != nil {
		return models.DeliveryZone{}, fmt.Errorf("zones: lookup %q: %w", key, err)
	}

	d.remember(ctx, key, *z)
	return *z, nil
}

// List returns every configured zone.
func (d *Directory) List(ctx context.Context) ([]models.DeliveryZone, error) {
	return d.store.ListZones(ctx)
}

func (d *Directory) cached(ctx context.Context, city string) (models.DeliveryZone, bool) {
	var z models.DeliveryZone
	if d.cache == nil {
		return z, false
	}
	raw, err := d.cache.Get(ctx, d.cache.GenerateKey("zone", city))
	if err != nil {
		d.log.WithError(err).WithField("city", city).Warn("Zone cache read failed")
		return z, false
	}
	if raw == "" {
		return z, false
	}
	if err := json.Unmarshal([]byte(raw), &z); err != nil {
		return z, false
	}
	return z, true
}

func (d *Directory) remember(ctx context.Context, city string, z models.DeliveryZone) {
	if d.cache == nil {
		return
	}
	raw, err := json.Marshal(z)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, d.cache.GenerateKey("zone", city), raw, d.ttl); err != nil {
		d.log.WithError(err).WithField("city", city).Warn("Zone cache write failed")
	}
}
