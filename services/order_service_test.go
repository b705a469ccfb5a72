package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/JayKadi/ecommerce-project/database"
	"github.com/JayKadi/ecommerce-project/gateway"
	"github.com/JayKadi/ecommerce-project/models"
	"github.com/JayKadi/ecommerce-project/repository"
	"github.com/JayKadi/ecommerce-project/zones"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tealeg/xlsx"
)

type fakeGateway struct {
	mu          sync.Mutex
	createCalls int
	queryCalls  int
	createErr   error
	queryErr    error
	outcome     gateway.OutcomeKind
	sessions    int
	// refs maps tracking ids to the merchant reference they were opened for.
	refs    map[string]string
	foreign map[string]gateway.Outcome
	queried []string
}

func (f *fakeGateway) CreateSession(_ context.Context, req gateway.SessionRequest) (gateway.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return gateway.Session{}, f.createErr
	}
	f.sessions++
	trackingID := fmt.Sprintf("track-%d", f.sessions)
	if f.refs == nil {
		f.refs = make(map[string]string)
	}
	f.refs[trackingID] = req.MerchantReference
	return gateway.Session{
		TrackingID:  trackingID,
		RedirectURL: "https://pay.example/checkout/" + req.MerchantReference,
	}, nil
}

func (f *fakeGateway) QueryStatus(_ context.Context, trackingID string) (gateway.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	f.queried = append(f.queried, trackingID)
	if f.queryErr != nil {
		return gateway.Outcome{}, f.queryErr
	}
	if out, ok := f.foreign[trackingID]; ok {
		return out, nil
	}
	return gateway.Outcome{Kind: f.outcome, TrackingID: trackingID, MerchantReference: f.refs[trackingID]}, nil
}

func (f *fakeGateway) RegisterIPN(_ context.Context, url string) (gateway.IPNRegistration, error) {
	return gateway.IPNRegistration{IPNID: "ipn-1", URL: url}, nil
}

func (f *fakeGateway) set(fn func(f *fakeGateway)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeGateway) counts() (create, query int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.queryCalls
}

type fakePublisher struct {
	mu        sync.Mutex
	events    []models.OrderEvent
	scheduled []int64
}

func (p *fakePublisher) PublishOrderEvent(_ context.Context, e models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) SchedulePaymentCheck(_ context.Context, orderID int64, _ int, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduled = append(p.scheduled, orderID)
	return nil
}

func (p *fakePublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	svc   *OrderService
	store *repository.Store
	gw    *fakeGateway
	pub   *fakePublisher
	dress int64
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("Expected sqlite to open, got %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := repository.NewStore(db)
	for _, z := range []models.DeliveryZone{
		{City: "nairobi", Fee: decimal.NewFromInt(200), EstimatedDays: 1},
		{City: "mombasa", Fee: decimal.NewFromInt(400), EstimatedDays: 3},
	} {
		if err := store.UpsertZone(ctx, z); err != nil {
			t.Fatalf("Expected zone seed, got %v", err)
		}
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	if opts.PaymentCheckDelay == 0 {
		opts.PaymentCheckDelay = time.Minute
	}
	gw := &fakeGateway{}
	pub := &fakePublisher{}
	f := &fixture{
		svc:   NewOrderService(store, zones.NewDirectory(store, nil, time.Minute, log), gw, pub, opts, log),
		store: store,
		gw:    gw,
		pub:   pub,
	}
	f.dress = f.product(t, "Ankara Dress", "500", 10)
	return f
}

func (f *fixture) product(t *testing.T, name, price string, stock int) int64 {
	t.Helper()
	p := &models.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock, IsActive: true}
	if err := f.store.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("Expected product, got %v", err)
	}
	return p.ID
}

func (f *fixture) stock(t *testing.T, id int64) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("Expected product %d, got %v", id, err)
	}
	return p.Stock
}

func shippingTo(city string) models.ShippingForm {
	return models.ShippingForm{
		ShippingAddress:    "Kenyatta Avenue 12",
		ShippingCity:       city,
		ShippingPostalCode: "00100",
		ShippingCountry:    "Kenya",
		PhoneNumber:        "0712345678",
	}
}

func (f *fixture) order(t *testing.T, customer string, qty int) *models.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), customer,
		[]models.CartLine{{ProductID: f.dress, Quantity: qty}}, shippingTo("Nairobi"))
	if err != nil {
		t.Fatalf("Expected order, got %v", err)
	}
	return o
}

func kindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func TestCreateOrderNairobi(t *testing.T) {
	f := newFixture(t, Options{})

	o, err := f.svc.CreateOrder(context.Background(), "cust-1",
		[]models.CartLine{{ProductID: f.dress, Quantity: 2, UnitPrice: decimal.NewFromInt(500)}},
		shippingTo("Nairobi"))
	if err != nil {
		t.Fatalf("Expected order, got %v", err)
	}

	if !o.Subtotal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("Expected subtotal 1000, got %s", o.Subtotal)
	}
	if !o.DeliveryFee.Equal(decimal.NewFromInt(200)) || o.EstimatedDeliveryDays != 1 {
		t.Fatalf("Expected fee 200 and 1 day, got %s and %d", o.DeliveryFee, o.EstimatedDeliveryDays)
	}
	if !o.TotalAmount.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("Expected total 1200, got %s", o.TotalAmount)
	}
	if o.Status != models.StatusPending || o.PaymentStatus != models.PaymentPending {
		t.Fatalf("Expected pending/pending, got %s/%s", o.Status, o.PaymentStatus)
	}
	if id, ok := models.ParseMerchantReference(o.MerchantReference); !ok || id != o.ID {
		t.Fatalf("Expected merchant reference for order %d, got %q", o.ID, o.MerchantReference)
	}
	if got := f.stock(t, f.dress); got != 8 {
		t.Fatalf("Expected stock 8, got %d", got)
	}

	stored, err := f.store.GetOrder(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("Expected stored order, got %v", err)
	}
	if !stored.TotalAmount.Equal(stored.Subtotal.Add(stored.DeliveryFee)) {
		t.Fatalf("Expected total = subtotal + fee, got %s", stored.TotalAmount)
	}
	if stored.MerchantReference != o.MerchantReference {
		t.Fatalf("Expected stored reference %s, got %s", o.MerchantReference, stored.MerchantReference)
	}
	if f.pub.count(models.EventOrderCreated) != 1 || len(f.pub.scheduled) != 1 {
		t.Fatalf("Expected created event and a scheduled payment check")
	}
}

func TestCreateOrderRepricesFromCatalog(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	o, err := f.svc.CreateOrder(ctx, "cust-1",
		[]models.CartLine{{ProductID: f.dress, Quantity: 1, UnitPrice: decimal.NewFromInt(1)}},
		shippingTo("mombasa"))
	if err != nil {
		t.Fatalf("Expected order, got %v", err)
	}
	if !o.Items[0].UnitPrice.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("Expected catalog price 500, got %s", o.Items[0].UnitPrice)
	}
	if !o.TotalAmount.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("Expected total 900, got %s", o.TotalAmount)
	}

	if err := f.store.SetProductPrice(ctx, f.dress, decimal.NewFromInt(750)); err != nil {
		t.Fatalf("Expected price update, got %v", err)
	}
	stored, _ := f.store.GetOrder(ctx, o.ID)
	if !stored.Items[0].UnitPrice.Equal(decimal.NewFromInt(500)) || !stored.TotalAmount.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("Expected captured price and total unchanged, got %s and %s", stored.Items[0].UnitPrice, stored.TotalAmount)
	}
}

func TestCreateOrderMergesDuplicateLines(t *testing.T) {
	f := newFixture(t, Options{})

	o, err := f.svc.CreateOrder(context.Background(), "cust-1", []models.CartLine{
		{ProductID: f.dress, Quantity: 1},
		{ProductID: f.dress, Quantity: 2},
	}, shippingTo("nairobi"))
	if err != nil {
		t.Fatalf("Expected order, got %v", err)
	}
	if len(o.Items) != 1 || o.Items[0].Quantity != 3 {
		t.Fatalf("Expected one line of 3, got %+v", o.Items)
	}
	if !o.Subtotal.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("Expected subtotal 1500, got %s", o.Subtotal)
	}
}

func TestCreateOrderRejectsBadInput(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	badPhone := shippingTo("nairobi")
	badPhone.PhoneNumber = "call me"
	noAddress := shippingTo("nairobi")
	noAddress.ShippingAddress = " "

	cases := []struct {
		name     string
		customer string
		cart     []models.CartLine
		shipping models.ShippingForm
		want     error
	}{
		{"empty cart", "cust-1", nil, shippingTo("nairobi"), ErrEmptyCart},
		{"zero quantity", "cust-1", []models.CartLine{{ProductID: f.dress, Quantity: 0}}, shippingTo("nairobi"), ErrValidation},
		{"unknown product", "cust-1", []models.CartLine{{ProductID: 9999, Quantity: 1}}, shippingTo("nairobi"), ErrValidation},
		{"unknown city", "cust-1", []models.CartLine{{ProductID: f.dress, Quantity: 1}}, shippingTo("Atlantis"), ErrUnknownDeliveryZone},
		{"bad phone", "cust-1", []models.CartLine{{ProductID: f.dress, Quantity: 1}}, badPhone, ErrValidation},
		{"missing address", "cust-1", []models.CartLine{{ProductID: f.dress, Quantity: 1}}, noAddress, ErrValidation},
		{"no customer", "", []models.CartLine{{ProductID: f.dress, Quantity: 1}}, shippingTo("nairobi"), ErrValidation},
	}
	for _, tc := range cases {
		_, err := f.svc.CreateOrder(ctx, tc.customer, tc.cart, tc.shipping)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if kindOf(err) != KindValidation {
			t.Fatalf("%s: expected validation kind, got %v", tc.name, kindOf(err))
		}
	}

	all, _ := f.store.ListAll(ctx, "")
	if len(all) != 0 {
		t.Fatalf("Expected no orders persisted, got %d", len(all))
	}
	if got := f.stock(t, f.dress); got != 10 {
		t.Fatalf("Expected stock untouched, got %d", got)
	}
}

func TestCreateOrderUnknownProductCarriesID(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.svc.CreateOrder(context.Background(), "cust-1",
		[]models.CartLine{{ProductID: 4242, Quantity: 1}}, shippingTo("nairobi"))
	var se *Error
	if !errors.As(err, &se) || se.ProductID != 4242 || se.Field != "items" {
		t.Fatalf("Expected items error for product 4242, got %v", err)
	}
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t, Options{})
	scarce := f.product(t, "Kitenge Scarf", "300", 1)

	_, err := f.svc.CreateOrder(context.Background(), "cust-1", []models.CartLine{
		{ProductID: f.dress, Quantity: 2},
		{ProductID: scarce, Quantity: 2},
	}, shippingTo("nairobi"))
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("Expected ErrProductUnavailable, got %v", err)
	}
	var se *Error
	if !errors.As(err, &se) || se.ProductID != scarce || se.Code != "product_unavailable" {
		t.Fatalf("Expected product_unavailable for %d, got %+v", scarce, se)
	}
	if got := f.stock(t, f.dress); got != 10 {
		t.Fatalf("Expected first line's stock restored to 10, got %d", got)
	}
	if got := f.stock(t, scarce); got != 1 {
		t.Fatalf("Expected scarce stock 1, got %d", got)
	}
}

func TestConcurrentCheckoutOfLastUnit(t *testing.T) {
	f := newFixture(t, Options{})
	last := f.product(t, "Last Dress", "500", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateOrder(context.Background(), fmt.Sprintf("cust-%d", i),
				[]models.CartLine{{ProductID: last, Quantity: 1}}, shippingTo("nairobi"))
		}(i)
	}
	wg.Wait()

	succeeded, unavailable := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrProductUnavailable):
			unavailable++
		default:
			t.Fatalf("Expected success or ErrProductUnavailable, got %v", err)
		}
	}
	if succeeded != 1 || unavailable != 1 {
		t.Fatalf("Expected one success and one unavailable, got %d and %d", succeeded, unavailable)
	}
	if got := f.stock(t, last); got != 0 {
		t.Fatalf("Expected stock 0, got %d", got)
	}
}

func TestInitiatePaymentIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	o := f.order(t, "cust-1", 1)

	first, err := f.svc.InitiatePayment(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("Expected handle, got %v", err)
	}
	second, err := f.svc.InitiatePayment(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("Expected handle, got %v", err)
	}
	if first != second {
		t.Fatalf("Expected identical handles, got %+v and %+v", first, second)
	}
	if create, _ := f.gw.counts(); create != 1 {
		t.Fatalf("Expected one gateway session, got %d", create)
	}
	if first.MerchantReference != o.MerchantReference || first.RedirectURL == "" {
		t.Fatalf("Expected handle for %s, got %+v", o.MerchantReference, first)
	}
}

func TestInitiatePaymentGatewayUnavailable(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	o := f.order(t, "cust-1", 1)
	f.gw.set(func(g *fakeGateway) { g.createErr = errors.New("connection refused") })

	_, err := f.svc.InitiatePayment(ctx, o.ID)
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("Expected ErrGatewayUnavailable, got %v", err)
	}
	if kindOf(err) != KindTransientExternal {
		t.Fatalf("Expected transient kind, got %v", kindOf(err))
	}
	stored, _ := f.store.GetOrder(ctx, o.ID)
	if stored.Status != models.StatusPending || stored.PaymentStatus != models.PaymentPending || stored.PaymentReference != "" {
		t.Fatalf("Expected untouched pending order, got %s/%s %q", stored.Status, stored.PaymentStatus, stored.PaymentReference)
	}

	f.gw.set(func(g *fakeGateway) { g.createErr = nil })
	if _, err := f.svc.InitiatePayment(ctx, o.ID); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
}

func TestInitiatePaymentRejectsCancelledOrder(t *testing.T) {
	f := newFixture(t, Options{})
	o := f.order(t, "cust-1", 1)
	if _, err := f.svc.Advance(context.Background(), o.ID, models.StatusCancelled, "admin"); err != nil {
		t.Fatalf("Expected cancel, got %v", err)
	}

	if _, err := f.svc.InitiatePayment(context.Background(), o.ID); !errors.Is(err, ErrPaymentNotInitiable) {
		t.Fatalf("Expected ErrPaymentNotInitiable, got %v", err)
	}
	if _, err := f.svc.InitiatePayment(context.Background(), o.ID+100); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("Expected ErrOrderNotFound, got %v", err)
	}
}

func (f *fixture) initiated(t *testing.T, customer string) (*models.Order, PaymentHandle) {
	t.Helper()
	o := f.order(t, customer, 1)
	h, err := f.svc.InitiatePayment(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("Expected handle, got %v", err)
	}
	return o, h
}

func TestVerifyPaymentCompletesOnce(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, h := f.initiated(t, "cust-1")
	f.gw.set(func(g *fakeGateway) { g.outcome = gateway.OutcomeCompleted })

	o, err := f.svc.VerifyPayment(ctx, h.TrackingID, h.MerchantReference)
	if err != nil {
		t.Fatalf("Expected verification, got %v", err)
	}
	if o.PaymentStatus != models.PaymentCompleted {
		t.Fatalf("Expected completed, got %s", o.PaymentStatus)
	}

	_, queriesBefore := f.gw.counts()
	again, err := f.svc.VerifyPayment(ctx, h.TrackingID, h.MerchantReference)
	if err != nil || again.PaymentStatus != models.PaymentCompleted {
		t.Fatalf("Expected completed again, got %v %v", again, err)
	}
	if _, q := f.gw.counts(); q != queriesBefore {
		t.Fatalf("Expected no gateway call for a settled order, got %d calls", q-queriesBefore)
	}
	if !again.UpdatedAt.Equal(o.UpdatedAt) {
		t.Fatalf("Expected no mutation on repeat, updated_at moved from %v to %v", o.UpdatedAt, again.UpdatedAt)
	}
	if n := f.pub.count(models.EventPaymentCompleted); n != 1 {
		t.Fatalf("Expected one payment_completed event, got %d", n)
	}
}

func TestVerifyPaymentConcurrent(t *testing.T) {
	f := newFixture(t, Options{})
	_, h := f.initiated(t, "cust-1")
	f.gw.set(func(g *fakeGateway) { g.outcome = gateway.OutcomeCompleted })

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*models.Order, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.VerifyPayment(context.Background(), h.TrackingID, h.MerchantReference)
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("Expected no error, got %v", errs[i])
		}
		if results[i].PaymentStatus != models.PaymentCompleted {
			t.Fatalf("Expected completed for every caller, got %s", results[i].PaymentStatus)
		}
	}
	if n := f.pub.count(models.EventPaymentCompleted); n != 1 {
		t.Fatalf("Expected exactly one transition event, got %d", n)
	}
}

func TestVerifyPaymentUnknownReference(t *testing.T) {
	f := newFixture(t, Options{})
	o, h := f.initiated(t, "cust-1")

	refs := []string{
		"garbage",
		"ORD-999-1760000000",
		fmt.Sprintf("ORD-%d-%d", o.ID, o.CreatedAt.Unix()+1),
		"",
	}
	for _, ref := range refs {
		if _, err := f.svc.VerifyPayment(context.Background(), h.TrackingID, ref); !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("Expected ErrOrderNotFound for %q, got %v", ref, err)
		}
	}
	if _, q := f.gw.counts(); q != 0 {
		t.Fatalf("Expected no gateway queries, got %d", q)
	}
}

func TestVerifyPaymentPendingAndQueryFailure(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, h := f.initiated(t, "cust-1")

	o, err := f.svc.VerifyPayment(ctx, h.TrackingID, h.MerchantReference)
	if err != nil {
		t.Fatalf("Expected pending result, got %v", err)
	}
	if o.PaymentStatus != models.PaymentPending {
		t.Fatalf("Expected pending, got %s", o.PaymentStatus)
	}

	f.gw.set(func(g *fakeGateway) { g.queryErr = errors.New("timeout") })
	if _, err := f.svc.VerifyPayment(ctx, h.TrackingID, h.MerchantReference); !errors.Is(err, ErrGatewayQueryFailed) {
		t.Fatalf("Expected ErrGatewayQueryFailed, got %v", err)
	}
	stored, _ := f.store.GetOrder(ctx, o.ID)
	if stored.PaymentStatus != models.PaymentPending {
		t.Fatalf("Expected still pending, got %s", stored.PaymentStatus)
	}
}

func TestVerifyPaymentFailedIsTerminal(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, h := f.initiated(t, "cust-1")

	f.gw.set(func(g *fakeGateway) { g.outcome = gateway.OutcomeFailed })
	o, err := f.svc.VerifyPayment(ctx, h.TrackingID, h.MerchantReference)
	if err != nil || o.PaymentStatus != models.PaymentFailed {
		t.Fatalf("Expected failed, got %v %v", o, err)
	}

	f.gw.set(func(g *fakeGateway) { g.outcome = gateway.OutcomeCompleted })
	o, err = f.svc.VerifyPayment(ctx, h.TrackingID, h.MerchantReference)
	if err != nil || o.PaymentStatus != models.PaymentFailed {
		t.Fatalf("Expected failed to stick, got %v %v", o, err)
	}
}

func TestVerifyPaymentUsesStoredSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, h := f.initiated(t, "cust-1")
	cheap := f.order(t, "cust-2", 1)

	// Another order's settled session must not pay for this one.
	f.gw.set(func(g *fakeGateway) {
		g.foreign = map[string]gateway.Outcome{
			"other-paid-session": {Kind: gateway.OutcomeCompleted, TrackingID: "other-paid-session", MerchantReference: cheap.MerchantReference},
		}
	})

	o, err := f.svc.VerifyPayment(ctx, "other-paid-session", h.MerchantReference)
	if err != nil {
		t.Fatalf("Expected pending result, got %v", err)
	}
	if o.PaymentStatus != models.PaymentPending {
		t.Fatalf("Expected payment to stay pending, got %s", o.PaymentStatus)
	}
	f.gw.mu.Lock()
	queried := append([]string(nil), f.gw.queried...)
	f.gw.mu.Unlock()
	if len(queried) != 1 || queried[0] != h.TrackingID {
		t.Fatalf("Expected only the stored session %s to be queried, got %v", h.TrackingID, queried)
	}
	if n := f.pub.count(models.EventPaymentCompleted); n != 0 {
		t.Fatalf("Expected no payment_completed event, got %d", n)
	}
}

func TestVerifyPaymentWithoutSessionChecksMerchantReference(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	victim := f.order(t, "cust-1", 1)
	other := f.order(t, "cust-2", 1)

	f.gw.set(func(g *fakeGateway) {
		g.foreign = map[string]gateway.Outcome{
			"other-session":  {Kind: gateway.OutcomeCompleted, MerchantReference: other.MerchantReference},
			"unattributed":   {Kind: gateway.OutcomeCompleted},
			"victim-session": {Kind: gateway.OutcomeCompleted, MerchantReference: victim.MerchantReference},
		}
	})

	for _, tracking := range []string{"other-session", "unattributed"} {
		o, err := f.svc.VerifyPayment(ctx, tracking, victim.MerchantReference)
		if err != nil {
			t.Fatalf("Expected pending result for %s, got %v", tracking, err)
		}
		if o.PaymentStatus != models.PaymentPending {
			t.Fatalf("Expected pending for %s, got %s", tracking, o.PaymentStatus)
		}
	}

	o, err := f.svc.VerifyPayment(ctx, "victim-session", victim.MerchantReference)
	if err != nil || o.PaymentStatus != models.PaymentCompleted {
		t.Fatalf("Expected completed for the order's own session, got %v %v", o, err)
	}
	if o.PaymentReference != "victim-session" {
		t.Fatalf("Expected tracking id to be recorded, got %q", o.PaymentReference)
	}
}

func TestVerifyOrderPaymentWithoutSession(t *testing.T) {
	f := newFixture(t, Options{})
	o := f.order(t, "cust-1", 1)

	got, err := f.svc.VerifyOrderPayment(context.Background(), o.ID)
	if err != nil || got.PaymentStatus != models.PaymentPending {
		t.Fatalf("Expected pending order, got %v %v", got, err)
	}
	if _, q := f.gw.counts(); q != 0 {
		t.Fatalf("Expected no gateway query without a session, got %d", q)
	}
}

func TestAdvanceCancellationRules(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	shipped := f.order(t, "cust-1", 2)
	for _, s := range []models.OrderStatus{models.StatusProcessing, models.StatusShipped} {
		if _, err := f.svc.Advance(ctx, shipped.ID, s, "admin"); err != nil {
			t.Fatalf("Expected advance to %s, got %v", s, err)
		}
	}
	if _, err := f.svc.Advance(ctx, shipped.ID, models.StatusCancelled, "admin"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition cancelling a shipped order, got %v", err)
	}

	pending := f.order(t, "cust-2", 3)
	if got := f.stock(t, f.dress); got != 5 {
		t.Fatalf("Expected stock 5 before cancel, got %d", got)
	}
	cancelled, err := f.svc.Advance(ctx, pending.ID, models.StatusCancelled, "admin")
	if err != nil {
		t.Fatalf("Expected cancel, got %v", err)
	}
	if cancelled.Status != models.StatusCancelled {
		t.Fatalf("Expected cancelled, got %s", cancelled.Status)
	}
	if got := f.stock(t, f.dress); got != 8 {
		t.Fatalf("Expected stock restored to 8, got %d", got)
	}

	history, err := f.svc.OrderHistory(ctx, shipped.ID)
	if err != nil {
		t.Fatalf("Expected history, got %v", err)
	}
	if len(history) != 2 || history[1].From != models.StatusProcessing || history[1].To != models.StatusShipped {
		t.Fatalf("Expected two audit rows ending processing -> shipped, got %+v", history)
	}
}

func TestAdvancePublishesPreviousStatus(t *testing.T) {
	f := newFixture(t, Options{})
	o := f.order(t, "cust-1", 1)

	if _, err := f.svc.Advance(context.Background(), o.ID, models.StatusProcessing, "admin"); err != nil {
		t.Fatalf("Expected advance, got %v", err)
	}

	f.pub.mu.Lock()
	defer f.pub.mu.Unlock()
	var got *models.OrderEvent
	for i := range f.pub.events {
		if f.pub.events[i].Type == models.EventStatusUpdated {
			got = &f.pub.events[i]
		}
	}
	if got == nil {
		t.Fatalf("Expected a status_updated event")
	}
	if got.PreviousStatus != models.StatusPending || got.Status != models.StatusProcessing {
		t.Fatalf("Expected pending -> processing, got %s -> %s", got.PreviousStatus, got.Status)
	}
}

func TestCreateOrderStoresCustomerEmail(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	form := shippingTo("Nairobi")
	form.Email = " buyer@example.com "
	o, err := f.svc.CreateOrder(ctx, "cust-1", []models.CartLine{{ProductID: f.dress, Quantity: 1}}, form)
	if err != nil {
		t.Fatalf("Expected order, got %v", err)
	}
	stored, err := f.store.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("Expected stored order, got %v", err)
	}
	if stored.CustomerEmail != "buyer@example.com" {
		t.Fatalf("Expected trimmed email, got %q", stored.CustomerEmail)
	}

	form.Email = "not-an-email"
	_, err = f.svc.CreateOrder(ctx, "cust-1", []models.CartLine{{ProductID: f.dress, Quantity: 1}}, form)
	if kindOf(err) != KindValidation {
		t.Fatalf("Expected validation error for bad email, got %v", err)
	}
}

func TestAdvanceRejectsSkipsAndTerminalStates(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	o := f.order(t, "cust-1", 1)

	for _, target := range []models.OrderStatus{models.StatusDelivered, models.StatusShipped, models.StatusPending, models.OrderStatus("lost")} {
		if _, err := f.svc.Advance(ctx, o.ID, target, "admin"); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("Expected ErrInvalidTransition for pending -> %s, got %v", target, err)
		}
	}
	if _, err := f.svc.Advance(ctx, o.ID+100, models.StatusProcessing, "admin"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("Expected ErrOrderNotFound, got %v", err)
	}

	if _, err := f.svc.Advance(ctx, o.ID, models.StatusCancelled, "admin"); err != nil {
		t.Fatalf("Expected cancel, got %v", err)
	}
	if _, err := f.svc.Advance(ctx, o.ID, models.StatusProcessing, "admin"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected cancelled to be terminal, got %v", err)
	}
	if n := f.pub.count(models.EventStatusUpdated); n != 1 {
		t.Fatalf("Expected one status event, got %d", n)
	}
}

func TestAdvanceRequirePaidPolicy(t *testing.T) {
	f := newFixture(t, Options{RequirePaid: true})
	ctx := context.Background()

	unpaid := f.order(t, "cust-1", 1)
	if _, err := f.svc.Advance(ctx, unpaid.ID, models.StatusProcessing, "admin"); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("Expected ErrPaymentRequired, got %v", err)
	}
	if _, err := f.svc.Advance(ctx, unpaid.ID, models.StatusCancelled, "admin"); err != nil {
		t.Fatalf("Expected cancellation regardless of payment, got %v", err)
	}

	_, h := f.initiated(t, "cust-2")
	f.gw.set(func(g *fakeGateway) { g.outcome = gateway.OutcomeCompleted })
	if _, err := f.svc.VerifyPayment(ctx, h.TrackingID, h.MerchantReference); err != nil {
		t.Fatalf("Expected verification, got %v", err)
	}
	if _, err := f.svc.Advance(ctx, h.OrderID, models.StatusProcessing, "admin"); err != nil {
		t.Fatalf("Expected paid order to advance, got %v", err)
	}
}

func TestAdvanceIndependentPolicyAllowsUnpaid(t *testing.T) {
	f := newFixture(t, Options{})
	o := f.order(t, "cust-1", 1)

	if _, err := f.svc.Advance(context.Background(), o.ID, models.StatusProcessing, "admin"); err != nil {
		t.Fatalf("Expected unpaid order to advance, got %v", err)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	o := f.order(t, "cust-1", 1)

	if _, err := f.svc.GetOrder(ctx, o.ID, Requester{ID: "cust-1"}); err != nil {
		t.Fatalf("Expected owner read, got %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, o.ID, Requester{ID: "admin-7", Operator: true}); err != nil {
		t.Fatalf("Expected operator read, got %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, o.ID, Requester{ID: "cust-2"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("Expected ErrOrderNotFound for a stranger, got %v", err)
	}

	mine, err := f.svc.ListCustomerOrders(ctx, "cust-2")
	if err != nil || len(mine) != 0 {
		t.Fatalf("Expected no orders for cust-2, got %d (%v)", len(mine), err)
	}
	if _, err := f.svc.ListOrders(ctx, "bogus"); !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation for a bogus filter, got %v", err)
	}
	pending, err := f.svc.ListOrders(ctx, "Pending")
	if err != nil || len(pending) != 1 {
		t.Fatalf("Expected one pending order, got %d (%v)", len(pending), err)
	}
}

func TestDashboardStatsAndExport(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.product(t, "Nearly Gone", "100", 2)

	_, h := f.initiated(t, "cust-1")
	f.order(t, "cust-2", 1)
	f.gw.set(func(g *fakeGateway) { g.outcome = gateway.OutcomeCompleted })
	if _, err := f.svc.VerifyPayment(ctx, h.TrackingID, h.MerchantReference); err != nil {
		t.Fatalf("Expected verification, got %v", err)
	}

	stats, err := f.svc.DashboardStats(ctx, time.Now())
	if err != nil {
		t.Fatalf("Expected stats, got %v", err)
	}
	if stats.TotalOrders != 2 || stats.PendingOrders != 2 || stats.TodayOrders != 2 {
		t.Fatalf("Expected 2/2/2 orders, got %+v", stats)
	}
	if !stats.TotalRevenue.Equal(decimal.NewFromInt(700)) || !stats.TodayRevenue.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("Expected paid revenue 700, got %s/%s", stats.TotalRevenue, stats.TodayRevenue)
	}
	if stats.LowStockItems != 1 {
		t.Fatalf("Expected one low-stock product, got %d", stats.LowStockItems)
	}

	file, err := f.svc.ExportOrders(ctx)
	if err != nil {
		t.Fatalf("Expected export, got %v", err)
	}
	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		t.Fatalf("Expected xlsx bytes, got %v", err)
	}
	reread, err := xlsx.OpenBinary(buf.Bytes())
	if err != nil {
		t.Fatalf("Expected readable xlsx, got %v", err)
	}
	sheet := reread.Sheets[0]
	if len(sheet.Rows) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d", len(sheet.Rows))
	}
	if got := sheet.Rows[0].Cells[0].Value; got != "Order ID" {
		t.Fatalf("Expected header Order ID, got %q", got)
	}
}
