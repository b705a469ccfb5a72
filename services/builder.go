package services

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"

	"github.com/JayKadi/ecommerce-project/models"
	"github.com/JayKadi/ecommerce-project/repository"
	"github.com/JayKadi/ecommerce-project/zones"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var phonePattern = regexp.MustCompile(`^(\+?\d{1,3}|0)\d{6,12}$`)

func validPhone(p string) bool {
	p = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(p))
	return phonePattern.MatchString(p)
}

// mergeCart validates quantities and folds repeated products into one line,
// keeping first-seen order.
func mergeCart(cart []models.CartLine) ([]models.CartLine, error) {
	if len(cart) == 0 {
		return nil, emptyCartErr()
	}
	merged := make([]models.CartLine, 0, len(cart))
	index := make(map[int64]int, len(cart))
	for _, line := range cart {
		if line.ProductID <= 0 {
			return nil, validationErr("items", "product_id must be positive")
		}
		if line.Quantity < 1 {
			return nil, validationErr("items", "quantity must be at least 1")
		}
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

func validateShipping(f models.ShippingForm) error {
	required := []struct{ field, value string }{
		{"shipping_address", f.ShippingAddress},
		{"shipping_city", f.ShippingCity},
		{"shipping_postal_code", f.ShippingPostalCode},
		{"shipping_country", f.ShippingCountry},
		{"phone_number", f.PhoneNumber},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return validationErr(r.field, "is required")
		}
	}
	if !validPhone(f.PhoneNumber) {
		return validationErr("phone_number", "is not a valid phone number")
	}
	if strings.TrimSpace(f.WhatsappNumber) != "" && !validPhone(f.WhatsappNumber) {
		return validationErr("whatsapp_number", "is not a valid phone number")
	}
	if email := strings.TrimSpace(f.Email); email != "" {
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			return validationErr("email", "is not a valid email address")
		}
	}
	return nil
}

// CreateOrder turns a cart snapshot into a persisted pending order. Prices come
// from the catalog, stock is reserved, and nothing is written unless every
// line succeeds.
func (s *OrderService) CreateOrder(ctx context.Context, customerID string, cart []models.CartLine, shipping models.ShippingForm) (order *models.Order, err error) {
	ctx, span := s.startSpan(ctx, "OrderService.CreateOrder",
		attribute.String("customer.id", customerID),
		attribute.Int("cart.lines", len(cart)),
	)
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(customerID) == "" {
		return nil, validationErr("customer_id", "is required")
	}
	lines, err := mergeCart(cart)
	if err != nil {
		return nil, err
	}
	if err := validateShipping(shipping); err != nil {
		return nil, err
	}

	zone, err := s.zones.Lookup(ctx, shipping.ShippingCity)
	if errors.Is(err, zones.ErrUnknownZone) {
		return nil, unknownZoneErr(shipping.ShippingCity)
	}
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	order = &models.Order{
		CustomerID:            customerID,
		ShippingAddress:       strings.TrimSpace(shipping.ShippingAddress),
		ShippingCity:          zone.City,
		ShippingPostalCode:    strings.TrimSpace(shipping.ShippingPostalCode),
		ShippingCountry:       strings.TrimSpace(shipping.ShippingCountry),
		PhoneNumber:           strings.TrimSpace(shipping.PhoneNumber),
		WhatsappNumber:        strings.TrimSpace(shipping.WhatsappNumber),
		CustomerEmail:         strings.TrimSpace(shipping.Email),
		DeliveryFee:           zone.Fee,
		EstimatedDeliveryDays: zone.EstimatedDays,
		Currency:              s.opts.Currency,
		Status:                models.StatusPending,
		PaymentStatus:         models.PaymentPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err = s.store.InTx(ctx, func(tx *repository.Tx) error {
		items := make([]models.OrderItem, 0, len(lines))
		subtotal := decimal.Zero

		for _, line := range lines {
			product, err := tx.GetProduct(ctx, line.ProductID)
			if errors.Is(err, repository.ErrNotFound) {
				return unknownProductErr(line.ProductID)
			}
			if err != nil {
				return err
			}
			if !product.IsActive {
				return unknownProductErr(line.ProductID)
			}
			if !line.UnitPrice.IsZero() && !line.UnitPrice.Equal(product.Price) {
				s.log.WithContext(ctx).WithFields(logrus.Fields{
					"product_id":   product.ID,
					"client_price": line.UnitPrice.String(),
					"price":        product.Price.String(),
				}).Warn("Client price differs from catalog, using catalog price")
			}

			ok, err := tx.DecrementStock(ctx, product.ID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return productUnavailableErr(product.ID, product.Name)
			}

			item := models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   product.Price,
			}
			subtotal = subtotal.Add(item.LineTotal())
			items = append(items, item)
		}

		order.Subtotal = subtotal
		order.TotalAmount = subtotal.Add(order.DeliveryFee)

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		order.MerchantReference = models.MerchantReference(order.ID, order.CreatedAt)
		if err := tx.SetMerchantReference(ctx, order.ID, order.MerchantReference); err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, order.ID, items); err != nil {
			return err
		}
		order.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).WithFields(logrus.Fields{
		"order_id":           order.ID,
		"merchant_reference": order.MerchantReference,
		"total":              order.TotalAmount.StringFixed(2),
	}).Info("Order created")

	s.publish(ctx, order, models.EventOrderCreated)
	s.schedulePaymentCheck(ctx, order.ID, 1)
	return order, nil
}
