package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tastebud-backend/internal/discounts"
	"github.com/angelmondragon/tastebud-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
)

type failingStorage struct {
	*MemoryStorage
	failSave bool
	failLoad bool
}

func (f *failingStorage) Save(ctx context.Context, key string, data []byte) error {
	if f.failSave {
		return errors.New("storage offline")
	}
	return f.MemoryStorage.Save(ctx, key, data)
}

func (f *failingStorage) Load(ctx context.Context, key string) ([]byte, error) {
	if f.failLoad {
		return nil, errors.New("storage offline")
	}
	return f.MemoryStorage.Load(ctx, key)
}

func newTestService(t *testing.T, store Storage) *Service {
	t.Helper()
	svc, err := NewService(store, discounts.DefaultPolicy(), pricing.DefaultRates())
	require.NoError(t, err)
	return svc
}

func openCart(t *testing.T, svc *Service, customerID uuid.UUID) *Cart {
	t.Helper()
	c, err := svc.Open(context.Background(), customerID)
	require.NoError(t, err)
	return c
}

func testItem(restaurantID uuid.UUID, price int) Item {
	return Item{
		MenuItemID:     uuid.New(),
		RestaurantID:   restaurantID,
		Name:           "Masala Dosa",
		UnitPriceCents: price,
	}
}

func TestAddItemSetsAffinityAndIncrements(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, newTestService(t, NewMemoryStorage()), uuid.New())
	restaurant := uuid.New()
	item := testItem(restaurant, 10000)

	require.NoError(t, c.AddItem(ctx, item))
	require.NoError(t, c.AddItem(ctx, item))

	state := c.State()
	require.Len(t, state.Items, 1)
	assert.Equal(t, 2, state.Items[0].Quantity)
	require.NotNil(t, state.RestaurantID)
	assert.Equal(t, restaurant, *state.RestaurantID)

	q := c.Quote()
	assert.Equal(t, 20000, q.SubtotalCents)
	assert.Equal(t, 1000, q.TaxCents)
	assert.Equal(t, 25900, q.TotalCents)
}

func TestAddItemFromAnotherRestaurantIsRejected(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, newTestService(t, NewMemoryStorage()), uuid.New())
	require.NoError(t, c.AddItem(ctx, testItem(uuid.New(), 500)))
	before := c.State()

	err := c.AddItem(ctx, testItem(uuid.New(), 700))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCrossRestaurantItem))
	assert.Equal(t, before, c.State())
}

func TestRemovingLastItemResetsRestaurant(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, newTestService(t, NewMemoryStorage()), uuid.New())
	item := testItem(uuid.New(), 500)
	require.NoError(t, c.AddItem(ctx, item))

	require.NoError(t, c.RemoveItem(ctx, item.MenuItemID))
	state := c.State()
	assert.True(t, state.IsEmpty())
	assert.Nil(t, state.RestaurantID)

	err := c.RemoveItem(ctx, item.MenuItemID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, newTestService(t, NewMemoryStorage()), uuid.New())
	item := testItem(uuid.New(), 500)
	require.NoError(t, c.AddItem(ctx, item))

	require.NoError(t, c.UpdateQuantity(ctx, item.MenuItemID, 4))
	assert.Equal(t, 4, c.State().Items[0].Quantity)

	require.NoError(t, c.UpdateQuantity(ctx, item.MenuItemID, 0))
	assert.True(t, c.State().IsEmpty())
	assert.Nil(t, c.State().RestaurantID)
}

func TestLoyaltyTierDiscount(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, newTestService(t, NewMemoryStorage()), uuid.New())
	item := testItem(uuid.New(), 10000)
	require.NoError(t, c.AddItem(ctx, item))
	require.NoError(t, c.UpdateQuantity(ctx, item.MenuItemID, 2))

	require.NoError(t, c.ApplyLoyalty(ctx, 250))
	state := c.State()
	assert.Equal(t, 200, state.AppliedLoyaltyPoints)
	assert.Equal(t, 4000, state.LoyaltyDiscountCents)
	assert.Equal(t, 21900, c.Quote().TotalCents)

	require.NoError(t, c.UpdateQuantity(ctx, item.MenuItemID, 1))
	assert.Equal(t, 2000, c.State().LoyaltyDiscountCents)

	err := c.ApplyLoyalty(ctx, 50)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, 200, c.State().AppliedLoyaltyPoints)
}

func TestCouponThenLoyaltyConflicts(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, newTestService(t, NewMemoryStorage()), uuid.New())
	item := testItem(uuid.New(), 10000)
	require.NoError(t, c.AddItem(ctx, item))
	require.NoError(t, c.UpdateQuantity(ctx, item.MenuItemID, 2))

	require.NoError(t, c.ApplyCoupon(ctx, "tastebud10"))
	assert.Equal(t, 20900, c.Quote().TotalCents)
	before := c.State()

	err := c.ApplyLoyalty(ctx, 300)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflictingDiscount))
	assert.Equal(t, before, c.State())
	assert.Equal(t, 20900, c.Quote().TotalCents)

	require.NoError(t, c.RemoveCoupon(ctx))
	require.NoError(t, c.ApplyLoyalty(ctx, 300))
	err = c.ApplyCoupon(ctx, "FEAST25")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflictingDiscount))

	require.NoError(t, c.RemoveLoyalty(ctx))
	assert.Zero(t, c.State().LoyaltyDiscountCents)
}

func TestUnknownCouponLeavesCartUnchanged(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, newTestService(t, NewMemoryStorage()), uuid.New())
	require.NoError(t, c.AddItem(ctx, testItem(uuid.New(), 100)))
	before := c.State()

	err := c.ApplyCoupon(ctx, "FREEFOOD")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon))
	assert.Equal(t, before, c.State())
}

func TestClearResetsDiscounts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	svc := newTestService(t, store)
	customer := uuid.New()
	c := openCart(t, svc, customer)
	require.NoError(t, c.AddItem(ctx, testItem(uuid.New(), 100)))
	require.NoError(t, c.ApplyCoupon(ctx, "FIRSTBITE"))

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, State{}, c.State())

	reopened := openCart(t, svc, customer)
	assert.Equal(t, State{}, reopened.State())
}

func TestStateSurvivesReopenWithRecomputedDiscounts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	svc := newTestService(t, store)
	customer := uuid.New()

	c := openCart(t, svc, customer)
	item := testItem(uuid.New(), 10000)
	require.NoError(t, c.AddItem(ctx, item))
	require.NoError(t, c.ApplyLoyalty(ctx, 520))

	reopened := openCart(t, svc, customer)
	state := reopened.State()
	require.Len(t, state.Items, 1)
	assert.Equal(t, 500, state.AppliedLoyaltyPoints)
	assert.Equal(t, 3000, state.LoyaltyDiscountCents)
	assert.Equal(t, c.State(), state)
}

func TestCorruptBlobLoadsEmpty(t *testing.T) {
	store := NewMemoryStorage()
	customer := uuid.New()
	require.NoError(t, store.Save(context.Background(), customer.String(), []byte("{not json")))

	c := openCart(t, newTestService(t, store), customer)
	assert.True(t, c.State().IsEmpty())
}

func TestDecodeDropsInconsistentContent(t *testing.T) {
	policy := discounts.DefaultPolicy()
	restaurant := uuid.New()
	raw := []byte(`{
		"items":[
			{"menu_item_id":"` + uuid.NewString() + `","restaurant_id":"` + restaurant.String() + `","name":"a","unit_price_cents":100,"quantity":1},
			{"menu_item_id":"` + uuid.NewString() + `","restaurant_id":"` + uuid.NewString() + `","name":"b","unit_price_cents":100,"quantity":1},
			{"menu_item_id":"` + uuid.NewString() + `","restaurant_id":"` + restaurant.String() + `","name":"c","unit_price_cents":100,"quantity":0}
		],
		"coupon_code":"RETIRED",
		"loyalty_points":40
	}`)

	s := decode(raw, policy)
	require.Len(t, s.Items, 1)
	require.NotNil(t, s.RestaurantID)
	assert.Equal(t, restaurant, *s.RestaurantID)
	assert.Nil(t, s.AppliedCouponCode)
	assert.Zero(t, s.AppliedLoyaltyPoints)
}

func TestFailedSaveKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	store := &failingStorage{MemoryStorage: NewMemoryStorage()}
	c := openCart(t, newTestService(t, store), uuid.New())
	require.NoError(t, c.AddItem(ctx, testItem(uuid.New(), 100)))
	before := c.State()

	store.failSave = true
	err := c.AddItem(ctx, testItem(*before.RestaurantID, 300))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, before, c.State())
}

func TestOpenSurfacesStorageErrors(t *testing.T) {
	store := &failingStorage{MemoryStorage: NewMemoryStorage(), failLoad: true}
	_, err := newTestService(t, store).Open(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = newTestService(t, NewMemoryStorage()).Open(context.Background(), uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
