package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/internal/inventory"
	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/db/dbtest"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/outbox"
	"github.com/shopzen/shopzen-backend/pkg/types"
)

type fixture struct {
	conn *gorm.DB
	svc  Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(
		NewRepository(conn),
		db.NewFromGorm(conn),
		outbox.NewService(outbox.NewRepository(conn), nil),
		inventory.NewLedger(nil),
		"inr",
		nil,
	)
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc}
}

func (f fixture) product(t *testing.T, price, discount int64, stock int) models.Product {
	t.Helper()
	product := models.Product{
		Title:              "Trail Shoe",
		Category:           "footwear",
		SKU:                "SKU-" + uuid.NewString()[:8],
		Price:              decimal.NewFromInt(price),
		DiscountPercentage: decimal.NewFromInt(discount),
		Stock:              stock,
	}
	require.NoError(t, f.conn.Create(&product).Error)
	return product
}

func (f fixture) addToCart(t *testing.T, userID, productID uuid.UUID, qty int) {
	t.Helper()
	require.NoError(t, f.conn.Create(&models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}).Error)
}

func (f fixture) stock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	require.NoError(t, f.conn.First(&product, "id = ?", productID).Error)
	return product.Stock
}

func (f fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func (f fixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	return f.count(t, &models.OutboxEvent{}, "event_type = ?", eventType)
}

func (f fixture) createOrder(t *testing.T, userID uuid.UUID, qty int) (models.Product, *models.Order) {
	t.Helper()
	product := f.product(t, 100, 10, 5)
	f.addToCart(t, userID, product.ID, qty)
	order, err := f.svc.CreateFromCart(context.Background(), userID, nil)
	require.NoError(t, err)
	return product, order
}

func TestCreateFromCartComputesTotalAndConsumesCart(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	product := f.product(t, 100, 10, 5)
	f.addToCart(t, userID, product.ID, 2)

	order, err := f.svc.CreateFromCart(context.Background(), userID, &types.ShippingAddress{
		FullName:   " Asha Rao ",
		Phone:      "9999999999",
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
	})
	require.NoError(t, err)

	require.True(t, decimal.RequireFromString("180.00").Equal(order.TotalAmount), "total %s", order.TotalAmount)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Equal(t, "INR", order.Currency)
	require.Equal(t, 3, f.stock(t, product.ID))
	require.Zero(t, f.count(t, &models.CartItem{}, "user_id = ?", userID))
	require.Equal(t, int64(1), f.events(t, enums.EventOrderCreated))

	stored, err := f.svc.Get(context.Background(), order.ID, UserActor(userID, enums.UserRoleUser))
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	require.True(t, decimal.NewFromInt(100).Equal(stored.Items[0].UnitPrice))
	require.NotNil(t, stored.Address)
	require.Equal(t, "Asha Rao", stored.Address.FullName)
	require.Equal(t, "IN", stored.Address.Country)
}

func TestCreateFromCartRoundsTotal(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	product := models.Product{
		Title:              "Mug",
		Category:           "home",
		SKU:                "SKU-MUG",
		Price:              decimal.RequireFromString("33.33"),
		DiscountPercentage: decimal.RequireFromString("12.5"),
		Stock:              10,
	}
	require.NoError(t, f.conn.Create(&product).Error)
	f.addToCart(t, userID, product.ID, 3)

	order, err := f.svc.CreateFromCart(context.Background(), userID, nil)
	require.NoError(t, err)
	// 33.33 * 0.875 * 3 = 87.49125
	require.True(t, decimal.RequireFromString("87.49").Equal(order.TotalAmount), "total %s", order.TotalAmount)
}

func TestCreateFromCartRoundsTotalOnce(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	for _, sku := range []string{"SKU-PIN-A", "SKU-PIN-B"} {
		product := models.Product{
			Title:              "Pin",
			Category:           "misc",
			SKU:                sku,
			Price:              decimal.RequireFromString("0.01"),
			DiscountPercentage: decimal.RequireFromString("50"),
			Stock:              5,
		}
		require.NoError(t, f.conn.Create(&product).Error)
		f.addToCart(t, userID, product.ID, 1)
	}

	order, err := f.svc.CreateFromCart(context.Background(), userID, nil)
	require.NoError(t, err)
	// each line is 0.005: stored as 0.01, but the total sums before rounding
	stored, err := f.svc.Get(context.Background(), order.ID, UserActor(userID, enums.UserRoleUser))
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	for _, item := range stored.Items {
		require.True(t, decimal.RequireFromString("0.01").Equal(item.LineTotal), "line %s", item.LineTotal)
	}
	require.True(t, decimal.RequireFromString("0.01").Equal(order.TotalAmount), "total %s", order.TotalAmount)
}

func TestCreateFromCartEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateFromCart(context.Background(), uuid.New(), nil)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	require.Equal(t, ReasonCartEmpty, pkgerrors.Reason(err))
}

func TestCreateFromCartIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	plenty := f.product(t, 50, 0, 10)
	scarce := f.product(t, 80, 0, 1)
	f.addToCart(t, userID, plenty.ID, 2)
	f.addToCart(t, userID, scarce.ID, 2)

	_, err := f.svc.CreateFromCart(context.Background(), userID, nil)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	require.Equal(t, inventory.ReasonInsufficientStock, pkgerrors.Reason(err))

	require.Equal(t, 10, f.stock(t, plenty.ID))
	require.Equal(t, 1, f.stock(t, scarce.ID))
	require.Equal(t, int64(2), f.count(t, &models.CartItem{}, "user_id = ?", userID))
	require.Zero(t, f.count(t, &models.Order{}, "user_id = ?", userID))
	require.Zero(t, f.events(t, enums.EventOrderCreated))
}

func TestCancelPendingRestoresStock(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	product, order := f.createOrder(t, userID, 2)

	cancelled, err := f.svc.Cancel(context.Background(), order.ID, UserActor(userID, enums.UserRoleUser))
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.Equal(t, 5, f.stock(t, product.ID))
	require.Equal(t, int64(1), f.events(t, enums.EventOrderCanceled))

	_, err = f.svc.Cancel(context.Background(), order.ID, UserActor(userID, enums.UserRoleUser))
	require.Equal(t, ReasonCannotCancel, pkgerrors.Reason(err))
	require.Equal(t, 5, f.stock(t, product.ID))
}

func TestCancelShippedFailsWithoutChanges(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	product, order := f.createOrder(t, userID, 2)
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", enums.OrderStatusShipped).Error)

	_, err := f.svc.Cancel(context.Background(), order.ID, UserActor(userID, enums.UserRoleUser))
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	require.Equal(t, ReasonCannotCancel, pkgerrors.Reason(err))

	require.Equal(t, 3, f.stock(t, product.ID))
	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", order.ID).Error)
	require.Equal(t, enums.OrderStatusShipped, stored.Status)
}

func TestCancelByStrangerIsForbidden(t *testing.T) {
	f := newFixture(t)
	_, order := f.createOrder(t, uuid.New(), 1)

	_, err := f.svc.Cancel(context.Background(), order.ID, UserActor(uuid.New(), enums.UserRoleUser))
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestUpdateStatusFlow(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	owner := UserActor(userID, enums.UserRoleUser)
	admin := UserActor(uuid.New(), enums.UserRoleAdmin)
	_, order := f.createOrder(t, userID, 1)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped, admin)
	require.Equal(t, ReasonInvalidTransition, pkgerrors.Reason(err))

	_, err = f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusPaid, admin)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped, owner)
	require.Equal(t, ReasonAdminOnly, pkgerrors.Reason(err))

	shipped, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped, admin)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusShipped, shipped.Status)

	delivered, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusDelivered, admin)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, delivered.Status)
	require.Equal(t, int64(3), f.events(t, enums.EventOrderStatusChanged))
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateStatus(context.Background(), uuid.New(), enums.OrderStatusShipped, UserActor(uuid.New(), enums.UserRoleAdmin))
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	f := newFixture(t)
	_, order := f.createOrder(t, uuid.New(), 1)
	payment := &models.Payment{ID: uuid.New(), OrderID: order.ID, Provider: enums.PaymentProviderRazorpay, Amount: order.TotalAmount}
	runner := db.NewFromGorm(f.conn)

	for i, want := range []bool{true, false} {
		var changed bool
		err := runner.WithTx(context.Background(), func(tx *gorm.DB) error {
			var err error
			changed, err = f.svc.MarkPaid(context.Background(), tx, payment)
			return err
		})
		require.NoError(t, err, "attempt %d", i)
		require.Equal(t, want, changed, "attempt %d", i)
	}
	require.Equal(t, int64(1), f.events(t, enums.EventOrderPaid))
}

func TestMarkPaidRejectsCancelledOrder(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	_, order := f.createOrder(t, userID, 1)
	_, err := f.svc.Cancel(context.Background(), order.ID, UserActor(userID, enums.UserRoleUser))
	require.NoError(t, err)

	err = db.NewFromGorm(f.conn).WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := f.svc.MarkPaid(context.Background(), tx, &models.Payment{OrderID: order.ID})
		return err
	})
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestExpireStaleCancelsOldPendingOrders(t *testing.T) {
	f := newFixture(t)
	product, stale := f.createOrder(t, uuid.New(), 2)
	_, fresh := f.createOrder(t, uuid.New(), 1)
	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", stale.ID).Update("created_at", old).Error)

	expired, err := f.svc.ExpireStale(context.Background(), time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Equal(t, 1, expired)
	require.Equal(t, 5, f.stock(t, product.ID))
	require.Equal(t, int64(1), f.events(t, enums.EventOrderExpired))

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", fresh.ID).Error)
	require.Equal(t, enums.OrderStatusPending, stored.Status)
}

func TestListForUserScopesAndPaginates(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	for i := 0; i < 3; i++ {
		f.createOrder(t, userID, 1)
	}
	f.createOrder(t, uuid.New(), 1)

	page, err := f.svc.ListForUser(context.Background(), userID, ListInput{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Total)
	require.Len(t, page.Orders, 2)
	require.Equal(t, 2, page.Limit)

	defaults, err := f.svc.ListForUser(context.Background(), userID, ListInput{Limit: 500, Offset: -4})
	require.NoError(t, err)
	require.Equal(t, 100, defaults.Limit)
	require.Equal(t, 0, defaults.Offset)

	pending := enums.OrderStatusPaid
	all, err := f.svc.ListAll(context.Background(), ListInput{Status: &pending})
	require.NoError(t, err)
	require.Zero(t, all.Total)
	require.Equal(t, 20, all.Limit)
}

func TestGetRejectsStranger(t *testing.T) {
	f := newFixture(t)
	_, order := f.createOrder(t, uuid.New(), 1)

	_, err := f.svc.Get(context.Background(), order.ID, UserActor(uuid.New(), enums.UserRoleUser))
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	got, err := f.svc.Get(context.Background(), order.ID, UserActor(uuid.New(), enums.UserRoleAdmin))
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)
}

type failingInventory struct{}

func (failingInventory) Reserve(context.Context, *gorm.DB, uuid.UUID, int) error {
	return errors.New("ledger offline")
}

func (failingInventory) Release(context.Context, *gorm.DB, uuid.UUID, int) error { return nil }

func TestCreateFromCartRollsBackOnLedgerFailure(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.NewFromGorm(conn), outbox.NewService(outbox.NewRepository(conn), nil), failingInventory{}, "", nil)
	require.NoError(t, err)
	f := fixture{conn: conn, svc: svc}
	userID := uuid.New()
	product := f.product(t, 10, 0, 5)
	f.addToCart(t, userID, product.ID, 1)

	_, err = svc.CreateFromCart(context.Background(), userID, nil)
	require.Error(t, err)
	require.Equal(t, int64(1), f.count(t, &models.CartItem{}, "user_id = ?", userID))
	require.Zero(t, f.count(t, &models.Order{}, "user_id = ?", userID))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, "", nil)
	require.Error(t, err)
}
