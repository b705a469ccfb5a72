// Package gateway talks to the external payment provider: it opens hosted
// checkout sessions, queries transaction status and registers the IPN callback.
package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrProvider is a well-formed response carrying a provider error.
	ErrProvider = errors.New("gateway: provider error")
	// ErrBusy is returned when the bulkhead cannot admit the call in time.
	ErrBusy = errors.New("gateway: too many concurrent calls")
)

// Gateway is the payment provider as seen by the order core.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	QueryStatus(ctx context.Context, trackingID string) (Outcome, error)
	RegisterIPN(ctx context.Context, url string) (IPNRegistration, error)
}

type SessionRequest struct {
	MerchantReference string
	Amount            decimal.Decimal
	Currency          string
	Description       string
	CustomerID        string
	Email             string
	Phone             string
	FirstName         string
	LastName          string
}

// Session is a hosted checkout the customer is redirected to.
type Session struct {
	TrackingID  string
	RedirectURL string
}

type OutcomeKind int

const (
	OutcomePending OutcomeKind = iota
	OutcomeCompleted
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Outcome is the provider's verdict on a transaction. MerchantReference is
// the order reference the provider holds for the tracking id.
type Outcome struct {
	Kind              OutcomeKind
	TrackingID        string
	MerchantReference string
	Description       string
}

// OutcomeFromStatusCode maps the provider's numeric status: 1 is completed,
// 2 (failed) and 3 (reversed) are failed, anything else is still pending.
func OutcomeFromStatusCode(code int) OutcomeKind {
	switch code {
	case 1:
		return OutcomeCompleted
	case 2, 3:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

type IPNRegistration struct {
	IPNID  string `json:"ipn_id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// NormalizePhone converts a local number to international form without the
// plus sign: "+254712..." and "0712..." both become "254712...".
func NormalizePhone(phone, countryCode string) string {
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	p = strings.TrimPrefix(p, "+")
	switch {
	case p == "":
		return p
	case strings.HasPrefix(p, "0"):
		return countryCode + p[1:]
	case strings.HasPrefix(p, countryCode):
		return p
	default:
		return countryCode + p
	}
}
