package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/JayKadi/ecommerce-project/cache"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

const (
	tokenPath    = "/api/Auth/RequestToken"
	submitPath   = "/api/Transactions/SubmitOrderRequest"
	statusPath   = "/api/Transactions/GetTransactionStatus"
	registerPath = "/api/URLSetup/RegisterIPN"

	// Provider tokens live five minutes; refresh a little early.
	defaultTokenTTL = 4 * time.Minute
	breakerName     = "payment-gateway"
)

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	IPNID          string
	CallbackURL    string
	CountryCode    string
	BillingCountry string
	Timeout        time.Duration
	MaxConcurrency int
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	http     *resty.Client
	cfg      Config
	breaker  *circuitBreaker
	bulkhead *bulkhead
	cache    cache.Cache

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient builds a client. tokenCache may be nil.
func NewClient(cfg Config, tokenCache cache.Cache) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BillingCountry == "" {
		cfg.BillingCountry = "KE"
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetRetryCount(0).
			SetHeader("Accept", "application/json").
			SetHeader("Content-Type", "application/json"),
		cfg:      cfg,
		breaker:  newCircuitBreaker(breakerName),
		bulkhead: newBulkhead(cfg.MaxConcurrency, breakerName, cfg.Timeout),
		cache:    tokenCache,
	}
}

type providerError struct {
	ErrorType string `json:"error_type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func (e *providerError) present() bool {
	return e != nil && (e.Code != "" || e.Message != "")
}

func (e *providerError) err(op string) error {
	return fmt.Errorf("%w: %s: %s (%s)", ErrProvider, op, e.Message, e.Code)
}

type tokenResponse struct {
	Token      string         `json:"token"`
	ExpiryDate string         `json:"expiryDate"`
	Error      *providerError `json:"error"`
	Status     string         `json:"status"`
}

type billingAddress struct {
	EmailAddress string `json:"email_address"`
	PhoneNumber  string `json:"phone_number"`
	CountryCode  string `json:"country_code"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
}

type submitRequest struct {
	ID             string         `json:"id"`
	Currency       string         `json:"currency"`
	Amount         float64        `json:"amount"`
	Description    string         `json:"description"`
	CallbackURL    string         `json:"callback_url"`
	NotificationID string         `json:"notification_id"`
	BillingAddress billingAddress `json:"billing_address"`
}

type submitResponse struct {
	OrderTrackingID   string         `json:"order_tracking_id"`
	MerchantReference string         `json:"merchant_reference"`
	RedirectURL       string         `json:"redirect_url"`
	Error             *providerError `json:"error"`
	Status            string         `json:"status"`
}

type statusResponse struct {
	PaymentMethod            string         `json:"payment_method"`
	StatusCode               int            `json:"status_code"`
	PaymentStatusDescription string         `json:"payment_status_description"`
	MerchantReference        string         `json:"merchant_reference"`
	ConfirmationCode         string         `json:"confirmation_code"`
	Error                    *providerError `json:"error"`
	Status                   string         `json:"status"`
}

type registerRequest struct {
	URL                 string `json:"url"`
	IPNNotificationType string `json:"ipn_notification_type"`
}

type registerResponse struct {
	IPNRegistration
	Error *providerError `json:"error"`
}

// CreateSession submits the order and returns the hosted checkout.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	body := submitRequest{
		ID:             req.MerchantReference,
		Currency:       req.Currency,
		Amount:         req.Amount.InexactFloat64(),
		Description:    req.Description,
		CallbackURL:    c.cfg.CallbackURL,
		NotificationID: c.cfg.IPNID,
		BillingAddress: billingAddress{
			EmailAddress: req.Email,
			PhoneNumber:  NormalizePhone(req.Phone, c.cfg.CountryCode),
			CountryCode:  c.cfg.BillingCountry,
			FirstName:    orDefault(req.FirstName, "Customer"),
			LastName:     orDefault(req.LastName, "User"),
		},
	}

	var out submitResponse
	err := c.call(ctx, "submit order", func(ctx context.Context, token string) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetBody(body).
			SetResult(&out).
			Post(submitPath)
	})
	if err != nil {
		return Session{}, err
	}
	if out.Error.present() {
		return Session{}, out.Error.err("submit order")
	}
	if out.OrderTrackingID == "" || out.RedirectURL == "" {
		return Session{}, fmt.Errorf("%w: submit order: empty session", ErrProvider)
	}

	log.WithFields(log.Fields{
		"merchant_reference": req.MerchantReference,
		"tracking_id":        out.OrderTrackingID,
	}).Info("Payment session created")
	return Session{TrackingID: out.OrderTrackingID, RedirectURL: out.RedirectURL}, nil
}

// QueryStatus asks the provider for the current state of a transaction.
func (c *Client) QueryStatus(ctx context.Context, trackingID string) (Outcome, error) {
	var out statusResponse
	err := c.call(ctx, "transaction status", func(ctx context.Context, token string) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParam("orderTrackingId", trackingID).
			SetResult(&out).
			Get(statusPath)
	})
	if err != nil {
		return Outcome{}, err
	}

	// The provider reports an unpaid checkout as an error with status_code 0.
	if out.Error.present() && out.StatusCode == 0 {
		return Outcome{
			Kind:              OutcomePending,
			TrackingID:        trackingID,
			MerchantReference: out.MerchantReference,
			Description:       out.Error.Message,
		}, nil
	}
	return Outcome{
		Kind:              OutcomeFromStatusCode(out.StatusCode),
		TrackingID:        trackingID,
		MerchantReference: out.MerchantReference,
		Description:       out.PaymentStatusDescription,
	}, nil
}

// RegisterIPN registers the notification URL and returns its id.
func (c *Client) RegisterIPN(ctx context.Context, url string) (IPNRegistration, error) {
	var out registerResponse
	err := c.call(ctx, "register ipn", func(ctx context.Context, token string) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetBody(registerRequest{URL: url, IPNNotificationType: http.MethodGet}).
			SetResult(&out).
			Post(registerPath)
	})
	if err != nil {
		return IPNRegistration{}, err
	}
	if out.Error.present() {
		return IPNRegistration{}, out.Error.err("register ipn")
	}
	return out.IPNRegistration, nil
}

// call runs one authenticated request under the timeout, the bulkhead and the breaker.
func (c *Client) call(ctx context.Context, op string, do func(ctx context.Context, token string) (*resty.Response, error)) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	return c.bulkhead.Execute(ctx, func() error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			token, err := c.accessToken(ctx)
			if err != nil {
				return nil, err
			}
			resp, err := do(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("gateway: %s: %w", op, err)
			}
			if resp.StatusCode() == http.StatusUnauthorized {
				c.dropToken(ctx)
			}
			if resp.IsError() {
				return nil, fmt.Errorf("gateway: %s: unexpected status %d", op, resp.StatusCode())
			}
			return nil, nil
		})
		return err
	})
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	if c.cache != nil {
		if token, err := c.cache.Get(ctx, c.cache.GenerateKey("gateway", "token")); err == nil && token != "" {
			c.remember(token, time.Now().Add(time.Minute))
			return token, nil
		}
	}

	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"consumer_key":    c.cfg.ConsumerKey,
			"consumer_secret": c.cfg.ConsumerSecret,
		}).
		SetResult(&out).
		Post(tokenPath)
	if err != nil {
		return "", fmt.Errorf("gateway: request token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("gateway: request token: unexpected status %d", resp.StatusCode())
	}
	if out.Error.present() {
		return "", out.Error.err("request token")
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: request token: empty token", ErrProvider)
	}

	ttl := defaultTokenTTL
	if exp, err := time.Parse(time.RFC3339Nano, out.ExpiryDate); err == nil {
		if until := time.Until(exp) - 30*time.Second; until > 0 && until < ttl {
			ttl = until
		}
	}
	c.remember(out.Token, time.Now().Add(ttl))
	if c.cache != nil {
		if err := c.cache.Set(ctx, c.cache.GenerateKey("gateway", "token"), out.Token, ttl); err != nil {
			log.WithError(err).Warn("Failed to cache gateway token")
		}
	}
	return out.Token, nil
}

func (c *Client) remember(token string, exp time.Time) {
	c.mu.Lock()
	c.token, c.tokenExp = token, exp
	c.mu.Unlock()
}

func (c *Client) dropToken(ctx context.Context) {
	c.remember("", time.Time{})
	if c.cache != nil {
		_ = c.cache.Delete(ctx, c.cache.GenerateKey("gateway", "token"))
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
