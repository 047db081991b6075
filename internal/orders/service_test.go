package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fabricmart/go-fabric-market/internal/inventory"
	"github.com/fabricmart/go-fabric-market/internal/market"
)

// ---- fakes ----

type fakeRepo struct {
	mu         sync.Mutex
	orders     map[string]*market.Order
	failInsert bool
}

func newFakeRepo() *fakeRepo { return &fakeRepo{orders: map[string]*market.Order{}} }

func clone(o *market.Order) *market.Order {
	c := *o
	c.Items = append([]market.OrderItem(nil), o.Items...)
	return &c
}

func (r *fakeRepo) Insert(ctx context.Context, o *market.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert {
		return errors.New("db down")
	}
	r.orders[o.ID] = clone(o)
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, id string) (*market.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, market.ErrNotFound
	}
	return clone(o), nil
}

func (r *fakeRepo) Save(ctx context.Context, o *market.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; !ok {
		return market.ErrNotFound
	}
	r.orders[o.ID] = clone(o)
	return nil
}

type fakeCarts struct {
	items    []market.CartItem
	clearErr error
	cleared  bool
}

func (c *fakeCarts) Snapshot(ctx context.Context, customerID string) ([]market.CartItem, error) {
	return append([]market.CartItem(nil), c.items...), nil
}

func (c *fakeCarts) Clear(ctx context.Context, customerID string) error {
	if c.clearErr != nil {
		return c.clearErr
	}
	c.cleared = true
	return nil
}

type fakeNotify struct {
	placed, cancelled, shipped []string
}

func (n *fakeNotify) OrderPlaced(o *market.Order)    { n.placed = append(n.placed, o.ID) }
func (n *fakeNotify) OrderCancelled(o *market.Order) { n.cancelled = append(n.cancelled, o.ID) }
func (n *fakeNotify) OrderShipped(o *market.Order)   { n.shipped = append(n.shipped, o.ID) }

func newTestService(led *inventory.Mem) (*Service, *fakeRepo, *fakeCarts, *fakeNotify) {
	repo := newFakeRepo()
	carts := &fakeCarts{}
	n := &fakeNotify{}
	return &Service{
		Ledger:          led,
		Repo:            repo,
		Carts:           carts,
		Notify:          n,
		Log:             zap.NewNop(),
		TrackingBaseURL: "https://track.example/t",
	}, repo, carts, n
}

var customer = market.Principal{ID: "cust-1", Role: market.RoleCustomer}

// ---- creation ----

func TestCreatePricing(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 10, PriceCents: 250, Active: true})
	svc, _, _, n := newTestService(led)

	o, err := svc.Create(context.Background(), customer, CreateInput{
		Lines:          []Line{{FabricID: "f1", Qty: 4}},
		ShippingMethod: market.ShipStandard,
	})
	require.NoError(t, err)

	assert.Equal(t, 1000, o.SubtotalCents)
	assert.Equal(t, 100, o.ShippingCents)
	assert.Equal(t, 180, o.TaxCents, "tax = round(1000 * 0.18)")
	assert.Equal(t, 1280, o.TotalCents)
	assert.Equal(t, market.StatusPending, o.Status)
	assert.Equal(t, market.PaymentPaid, o.PaymentStatus)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 5), o.EstimatedDelivery, time.Minute)

	f, _ := led.Get("f1")
	assert.Equal(t, 6, f.Stock)
	assert.Equal(t, 4, f.TotalPurchases)
	assert.Equal(t, []string{o.ID}, n.placed)
}

func TestCreateShippingMethods(t *testing.T) {
	cases := []struct {
		method market.ShippingMethod
		cost   int
		days   int
	}{
		{market.ShipStandard, 100, 5},
		{market.ShipExpress, 100, 2},
		{market.ShipSameDay, 200, 0},
	}
	for _, tc := range cases {
		t.Run(string(tc.method), func(t *testing.T) {
			led := inventory.NewMem()
			led.Put(&market.Fabric{ID: "f1", Stock: 10, PriceCents: 100, Active: true})
			svc, _, _, _ := newTestService(led)

			o, err := svc.Create(context.Background(), customer, CreateInput{
				Lines:          []Line{{FabricID: "f1", Qty: 1}},
				ShippingMethod: tc.method,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.cost, o.ShippingCents)
			assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, tc.days), o.EstimatedDelivery, time.Minute)
		})
	}
}

func TestCreateEmptyOrder(t *testing.T) {
	svc, _, _, _ := newTestService(inventory.NewMem())
	_, err := svc.Create(context.Background(), customer, CreateInput{
		ShippingMethod: market.ShipStandard,
	})
	assert.ErrorIs(t, err, market.ErrEmptyOrder)
}

func TestCreateUnknownShippingMethod(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 10, PriceCents: 100, Active: true})
	svc, _, _, _ := newTestService(led)

	_, err := svc.Create(context.Background(), customer, CreateInput{
		Lines:          []Line{{FabricID: "f1", Qty: 1}},
		ShippingMethod: "carrier-pigeon",
	})
	assert.ErrorIs(t, err, market.ErrValidation)
}

func TestCreateRollsBackEarlierReservations(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 5, PriceCents: 100, Active: true})
	led.Put(&market.Fabric{ID: "f2", Stock: 1, PriceCents: 100, Active: true})
	svc, repo, _, n := newTestService(led)

	_, err := svc.Create(context.Background(), customer, CreateInput{
		Lines:          []Line{{FabricID: "f1", Qty: 2}, {FabricID: "f2", Qty: 3}},
		ShippingMethod: market.ShipStandard,
	})
	assert.ErrorIs(t, err, market.ErrInsufficientStock)

	f1, _ := led.Get("f1")
	assert.Equal(t, 5, f1.Stock, "earlier line must be released")
	assert.Equal(t, 0, f1.TotalPurchases)
	assert.Empty(t, repo.orders)
	assert.Empty(t, n.placed)
}

func TestCreateReleasesOnPersistFailure(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 5, PriceCents: 100, Active: true})
	svc, repo, _, _ := newTestService(led)
	repo.failInsert = true

	_, err := svc.Create(context.Background(), customer, CreateInput{
		Lines:          []Line{{FabricID: "f1", Qty: 2}},
		ShippingMethod: market.ShipStandard,
	})
	require.Error(t, err)

	f, _ := led.Get("f1")
	assert.Equal(t, 5, f.Stock)
}

func TestCreateFromCart(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 10, PriceCents: 300, Active: true})
	svc, _, carts, _ := newTestService(led)
	// cart carries a stale price; the order must freeze the ledger's price
	carts.items = []market.CartItem{{FabricID: "f1", Qty: 2, PriceCents: 50}}

	o, err := svc.Create(context.Background(), customer, CreateInput{
		ShippingMethod: market.ShipExpress,
	})
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 300, o.Items[0].PriceCents)
	assert.Equal(t, 600, o.SubtotalCents)
	assert.True(t, carts.cleared)
}

func TestCreateSurvivesCartClearFailure(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 10, PriceCents: 100, Active: true})
	svc, repo, carts, _ := newTestService(led)
	carts.items = []market.CartItem{{FabricID: "f1", Qty: 1, PriceCents: 100}}
	carts.clearErr = errors.New("redis sneezed")

	o, err := svc.Create(context.Background(), customer, CreateInput{
		ShippingMethod: market.ShipStandard,
	})
	require.NoError(t, err, "cart clear is best-effort cleanup")
	_, ok := repo.orders[o.ID]
	assert.True(t, ok)
}

// ---- cancellation ----

func placeOrder(t *testing.T, svc *Service) *market.Order {
	t.Helper()
	o, err := svc.Create(context.Background(), customer, CreateInput{
		Lines:          []Line{{FabricID: "f1", Qty: 2}},
		ShippingMethod: market.ShipStandard,
	})
	require.NoError(t, err)
	return o
}

func TestCancelPendingRestoresStock(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 5, PriceCents: 100, Active: true})
	svc, _, _, n := newTestService(led)
	o := placeOrder(t, svc)

	got, err := svc.Cancel(context.Background(), customer, o.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, market.StatusCancelled, got.Status)
	assert.Equal(t, "changed my mind", got.CancelReason)

	f, _ := led.Get("f1")
	assert.Equal(t, 5, f.Stock)
	assert.Equal(t, 0, f.TotalPurchases)
	assert.Equal(t, []string{o.ID}, n.cancelled)
}

func TestCancelShippedFails(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 5, PriceCents: 100, Active: true})
	svc, _, _, _ := newTestService(led)
	o := placeOrder(t, svc)

	admin := market.Principal{ID: "adm", Role: market.RoleAdmin}
	_, err := svc.SetStatus(context.Background(), admin, o.ID, market.StatusShipped)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), customer, o.ID, "too late")
	assert.ErrorIs(t, err, market.ErrInvalidTransition)

	f, _ := led.Get("f1")
	assert.Equal(t, 3, f.Stock, "failed cancel must not touch stock")
}

func TestCancelOwnership(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 5, PriceCents: 100, Active: true})
	svc, _, _, _ := newTestService(led)
	o := placeOrder(t, svc)

	stranger := market.Principal{ID: "cust-2", Role: market.RoleCustomer}
	_, err := svc.Cancel(context.Background(), stranger, o.ID, "not mine")
	assert.ErrorIs(t, err, market.ErrUnauthorized)

	admin := market.Principal{ID: "adm", Role: market.RoleAdmin}
	_, err = svc.Cancel(context.Background(), admin, o.ID, "fraud")
	assert.NoError(t, err, "admin may cancel on the customer's behalf")
}

// ---- status transitions ----

func TestShippedAssignsTrackingOnce(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 5, PriceCents: 100, Active: true})
	svc, _, _, n := newTestService(led)
	o := placeOrder(t, svc)

	shop := market.Principal{ID: "shop-1", Role: market.RoleShop}
	first, err := svc.SetStatus(context.Background(), shop, o.ID, market.StatusShipped)
	require.NoError(t, err)
	require.NotEmpty(t, first.TrackingNumber)
	assert.True(t, strings.HasPrefix(first.TrackingNumber, "FM"))
	assert.Equal(t, "https://track.example/t/"+first.TrackingNumber, svc.TrackingURL(first))
	assert.Equal(t, []string{o.ID}, n.shipped)

	again, err := svc.SetStatus(context.Background(), shop, o.ID, market.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, first.TrackingNumber, again.TrackingNumber)
	assert.Len(t, n.shipped, 1, "re-entering Shipped is idempotent")
}

func TestDeliveredStampsOnce(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 5, PriceCents: 100, Active: true})
	svc, _, _, _ := newTestService(led)
	o := placeOrder(t, svc)

	shop := market.Principal{ID: "shop-1", Role: market.RoleShop}
	first, err := svc.SetStatus(context.Background(), shop, o.ID, market.StatusDelivered)
	require.NoError(t, err)
	require.NotNil(t, first.DeliveredAt)

	again, err := svc.SetStatus(context.Background(), shop, o.ID, market.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, first.DeliveredAt, again.DeliveredAt)
}

func TestSetStatusGuards(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 5, PriceCents: 100, Active: true})
	svc, _, _, _ := newTestService(led)
	o := placeOrder(t, svc)

	_, err := svc.SetStatus(context.Background(), customer, o.ID, market.StatusConfirmed)
	assert.ErrorIs(t, err, market.ErrUnauthorized)

	shop := market.Principal{ID: "shop-1", Role: market.RoleShop}
	_, err = svc.SetStatus(context.Background(), shop, o.ID, market.StatusCancelled)
	assert.ErrorIs(t, err, market.ErrInvalidTransition)

	_, err = svc.SetStatus(context.Background(), shop, o.ID, "TELEPORTED")
	assert.ErrorIs(t, err, market.ErrValidation)

	_, err = svc.SetStatus(context.Background(), shop, "missing", market.StatusConfirmed)
	assert.ErrorIs(t, err, market.ErrNotFound)
}

func TestConcurrentOrdersLastUnit(t *testing.T) {
	led := inventory.NewMem()
	led.Put(&market.Fabric{ID: "f1", Stock: 1, PriceCents: 100, Active: true})
	svc, _, _, _ := newTestService(led)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), customer, CreateInput{
				Lines:          []Line{{FabricID: "f1", Qty: 1}},
				ShippingMethod: market.ShipStandard,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, market.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, wins)
}
