package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/internal/inventory"
	"github.com/shopzen/shopzen-backend/internal/orders"
	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/db/dbtest"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/outbox"
	"github.com/shopzen/shopzen-backend/pkg/security"
)

const (
	testMockSecret     = "mock_secret"
	testWebhookSecret  = "whsec_razorpay"
	testStripeSecret   = "whsec_test"
	testRazorpaySecret = "rzp_secret"
)

type fakeGateway struct {
	mu     sync.Mutex
	calls  int
	err    error
	secret string
}

func (g *fakeGateway) CreateOrder(_ context.Context, req GatewayOrderRequest) (*GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &GatewayOrder{
		ProviderOrderID: "order_rzp_" + uuid.NewString()[:8],
		AmountMinor:     req.AmountMinor,
		Currency:        req.Currency,
		PublicKey:       "rzp_test_key",
	}, nil
}

func (g *fakeGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return security.VerifyHMACSHA256(g.secret, []byte(orderID+"|"+paymentID), signature)
}

type hmacVerifier struct {
	secret string
}

func (v hmacVerifier) VerifyWebhookSignature(body []byte, signature string) bool {
	return security.VerifyHMACSHA256(v.secret, body, signature)
}

type memoryReplayStore struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newMemoryReplayStore() *memoryReplayStore {
	return &memoryReplayStore{keys: map[string]bool{}}
}

func (m *memoryReplayStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryReplayStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func (m *memoryReplayStore) WebhookEventKey(provider, eventID string) string {
	return "webhook:" + provider + ":" + eventID
}

type fixture struct {
	conn    *gorm.DB
	svc     Service
	orders  orders.Service
	gateway *fakeGateway
	store   *memoryReplayStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	runner := db.NewFromGorm(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	orderSvc, err := orders.NewService(orders.NewRepository(conn), runner, emitter, inventory.NewLedger(nil), "INR", nil)
	require.NoError(t, err)

	gateway := &fakeGateway{secret: testRazorpaySecret}
	gateways := NewGateways(NewMockGateway(testMockSecret)).Register(enums.PaymentProviderRazorpay, gateway)
	store := newMemoryReplayStore()
	guard, err := NewWebhookGuard(store, time.Hour)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:             NewRepository(conn),
		TxRunner:         runner,
		Orders:           orderSvc,
		Outbox:           emitter,
		Gateways:         gateways,
		RazorpayWebhooks: hmacVerifier{secret: testWebhookSecret},
		StripeWebhooks:   stripeVerifier{secret: testStripeSecret},
		Guard:            guard,
		Config:           config.PaymentsConfig{Currency: "INR", MerchantName: "ShopZen", ThemeColor: "#3399cc"},
		MockEnabled:      true,
	})
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, orders: orderSvc, gateway: gateway, store: store}
}

func (f *fixture) user(t *testing.T) models.User {
	t.Helper()
	user := models.User{Email: uuid.NewString() + "@example.com", PasswordHash: "x", Name: "Asha"}
	require.NoError(t, f.conn.Create(&user).Error)
	return user
}

func (f *fixture) pendingOrder(t *testing.T, userID uuid.UUID) *models.Order {
	t.Helper()
	product := models.Product{
		Title:              "Kettle",
		Category:           "home",
		SKU:                "SKU-" + uuid.NewString()[:8],
		Price:              decimal.NewFromInt(100),
		DiscountPercentage: decimal.NewFromInt(10),
		Stock:              5,
	}
	require.NoError(t, f.conn.Create(&product).Error)
	require.NoError(t, f.conn.Create(&models.CartItem{UserID: userID, ProductID: product.ID, Quantity: 2}).Error)
	order, err := f.orders.CreateFromCart(context.Background(), userID, nil)
	require.NoError(t, err)
	return order
}

func (f *fixture) orderStatus(t *testing.T, orderID uuid.UUID) enums.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", orderID).Error)
	return order.Status
}

func (f *fixture) payments(t *testing.T, orderID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.Payment{}).Where("order_id = ?", orderID).Count(&n).Error)
	return n
}

func (f *fixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func (f *fixture) initiate(t *testing.T, userID, orderID uuid.UUID) *InitiateResult {
	t.Helper()
	res, err := f.svc.Initiate(context.Background(), InitiateInput{UserID: userID, OrderID: orderID, Provider: enums.PaymentProviderRazorpay})
	require.NoError(t, err)
	return res
}

func TestInitiateReturnsGatewayDetails(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)

	res := f.initiate(t, user.ID, order.ID)
	require.Equal(t, int64(18000), res.GatewayDetails.Amount)
	require.Equal(t, "INR", res.GatewayDetails.Currency)
	require.Equal(t, "ShopZen", res.GatewayDetails.Name)
	require.Equal(t, "rzp_test_key", res.GatewayDetails.Key)
	require.Equal(t, user.Email, res.GatewayDetails.Prefill.Email)
	require.Equal(t, "#3399cc", res.GatewayDetails.Theme.Color)
	require.Equal(t, enums.PaymentStatusPending, res.Payment.Status)
	require.Equal(t, res.GatewayDetails.OrderID, res.Payment.ProviderOrderID)
	require.True(t, decimal.RequireFromString("180").Equal(res.Payment.Amount))
}

func TestInitiateTwiceKeepsOnePaymentRow(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)

	first := f.initiate(t, user.ID, order.ID)
	second := f.initiate(t, user.ID, order.ID)

	require.Equal(t, int64(1), f.payments(t, order.ID))
	require.Equal(t, first.Payment.ID, second.Payment.ID)
	require.NotEqual(t, first.Payment.ProviderOrderID, second.Payment.ProviderOrderID)
	require.Equal(t, 2, f.gateway.calls)
}

func TestInitiateGuards(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)
	ctx := context.Background()

	_, err := f.svc.Initiate(ctx, InitiateInput{UserID: uuid.New(), OrderID: order.ID, Provider: enums.PaymentProviderRazorpay})
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	_, err = f.svc.Initiate(ctx, InitiateInput{UserID: user.ID, OrderID: uuid.New(), Provider: enums.PaymentProviderRazorpay})
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	_, err = f.svc.Initiate(ctx, InitiateInput{UserID: user.ID, OrderID: order.ID, Provider: enums.PaymentProviderMock})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = f.orders.Cancel(ctx, order.ID, orders.UserActor(user.ID, enums.UserRoleUser))
	require.NoError(t, err)
	_, err = f.svc.Initiate(ctx, InitiateInput{UserID: user.ID, OrderID: order.ID, Provider: enums.PaymentProviderRazorpay})
	require.Equal(t, ReasonOrderCancelled, pkgerrors.Reason(err))
}

func TestInitiateRejectsPaidOrder(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)
	res := f.initiate(t, user.ID, order.ID)
	_, err := f.svc.HandleSuccess(context.Background(), res.Payment.ProviderOrderID, "pay_1")
	require.NoError(t, err)

	_, err = f.svc.Initiate(context.Background(), InitiateInput{UserID: user.ID, OrderID: order.ID, Provider: enums.PaymentProviderRazorpay})
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	require.Equal(t, ReasonOrderAlreadyPaid, pkgerrors.Reason(err))
}

func TestInitiateGatewayFailure(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)
	f.gateway.err = errors.New("razorpay down")

	_, err := f.svc.Initiate(context.Background(), InitiateInput{UserID: user.ID, OrderID: order.ID, Provider: enums.PaymentProviderRazorpay})
	require.Equal(t, pkgerrors.CodeExternal, pkgerrors.As(err).Code())
	require.Equal(t, ReasonGatewayError, pkgerrors.Reason(err))
	require.Zero(t, f.payments(t, order.ID))
}

func TestInitiateFallsBackToMockGateway(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)

	res, err := f.svc.Initiate(context.Background(), InitiateInput{UserID: user.ID, OrderID: order.ID, Provider: enums.PaymentProviderPaypal})
	require.NoError(t, err)
	require.Regexp(t, `^order_[0-9a-f]{16}$`, res.GatewayDetails.OrderID)
	require.Equal(t, enums.PaymentProviderPaypal, res.Payment.Provider)

	signature := security.SignHMACSHA256(testMockSecret, []byte(res.GatewayDetails.OrderID+"|pay_paypal"))
	out, err := f.svc.Verify(context.Background(), VerifyInput{
		ProviderOrderID:   res.GatewayDetails.OrderID,
		ProviderPaymentID: "pay_paypal",
		Signature:         signature,
		Provider:          enums.PaymentProviderPaypal,
	})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusSuccess, out.Payment.Status)
}

func TestVerifySignature(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)
	res := f.initiate(t, user.ID, order.ID)
	providerOrderID := res.Payment.ProviderOrderID

	cases := []struct {
		name      string
		signature string
	}{
		{name: "wrong secret", signature: security.SignHMACSHA256("other", []byte(providerOrderID+"|pay_1"))},
		{name: "malformed", signature: "not-hex"},
		{name: "empty", signature: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Verify(context.Background(), VerifyInput{
				ProviderOrderID:   providerOrderID,
				ProviderPaymentID: "pay_1",
				Signature:         tc.signature,
				Provider:          enums.PaymentProviderRazorpay,
			})
			require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
			require.Equal(t, ReasonInvalidSignature, pkgerrors.Reason(err))
		})
	}
	require.Equal(t, enums.OrderStatusPending, f.orderStatus(t, order.ID))

	valid := security.SignHMACSHA256(testRazorpaySecret, []byte(providerOrderID+"|pay_1"))
	out, err := f.svc.Verify(context.Background(), VerifyInput{
		ProviderOrderID:   providerOrderID,
		ProviderPaymentID: "pay_1",
		Signature:         valid,
		Provider:          enums.PaymentProviderRazorpay,
	})
	require.NoError(t, err)
	require.False(t, out.AlreadyProcessed)
	require.Equal(t, enums.OrderStatusPaid, f.orderStatus(t, order.ID))
}

func TestHandleSuccessTwiceEqualsOnce(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)
	res := f.initiate(t, user.ID, order.ID)

	first, err := f.svc.HandleSuccess(context.Background(), res.Payment.ProviderOrderID, "pay_1")
	require.NoError(t, err)
	second, err := f.svc.HandleSuccess(context.Background(), res.Payment.ProviderOrderID, "pay_2")
	require.NoError(t, err)

	require.False(t, first.AlreadyProcessed)
	require.True(t, second.AlreadyProcessed)
	require.Equal(t, "pay_1", *second.Payment.ProviderPaymentID)
	require.Equal(t, enums.OrderStatusPaid, f.orderStatus(t, order.ID))
	require.Equal(t, int64(1), f.events(t, enums.EventOrderPaid))
	require.Equal(t, int64(1), f.events(t, enums.EventPaymentSucceeded))
}

func TestHandleSuccessLatchesAfterOrderShipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)
	res := f.initiate(t, user.ID, order.ID)

	for _, to := range []enums.OrderStatus{enums.OrderStatusPaid, enums.OrderStatusShipped} {
		_, err := f.orders.UpdateStatus(ctx, order.ID, to, ordersAdmin())
		require.NoError(t, err)
	}

	result, err := f.svc.HandleSuccess(ctx, res.Payment.ProviderOrderID, "pay_late")
	require.NoError(t, err)
	require.False(t, result.AlreadyProcessed)
	require.Equal(t, enums.PaymentStatusSuccess, result.Payment.Status)
	require.Equal(t, enums.OrderStatusShipped, result.OrderStatus)
	require.Equal(t, enums.OrderStatusShipped, f.orderStatus(t, order.ID))

	var stored models.Payment
	require.NoError(t, f.conn.First(&stored, "id = ?", res.Payment.ID).Error)
	require.Equal(t, enums.PaymentStatusSuccess, stored.Status)
	require.Equal(t, "pay_late", *stored.ProviderPaymentID)

	again, err := f.svc.HandleSuccess(ctx, res.Payment.ProviderOrderID, "pay_late")
	require.NoError(t, err)
	require.True(t, again.AlreadyProcessed)
}

func TestHandleSuccessUnknownPayment(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.HandleSuccess(context.Background(), "order_missing", "pay_1")
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	require.Equal(t, ReasonPaymentNotFound, pkgerrors.Reason(err))
}

func TestHandleFailureKeepsOrderAndLatch(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)
	res := f.initiate(t, user.ID, order.ID)

	failed, err := f.svc.HandleFailure(context.Background(), res.Payment.ProviderOrderID, "card declined")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, failed.Status)
	require.Equal(t, "card declined", *failed.FailureReason)
	require.Equal(t, enums.OrderStatusPending, f.orderStatus(t, order.ID))

	retry := f.initiate(t, user.ID, order.ID)
	_, err = f.svc.HandleSuccess(context.Background(), retry.Payment.ProviderOrderID, "pay_ok")
	require.NoError(t, err)
	latched, err := f.svc.HandleFailure(context.Background(), retry.Payment.ProviderOrderID, "late failure")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusSuccess, latched.Status)
}

func TestUpdateStatusAdminOverride(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)
	res := f.initiate(t, user.ID, order.ID)
	ctx := context.Background()
	providerPaymentID := "pay_manual"

	updated, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{
		PaymentID:         res.Payment.ID,
		Status:            enums.PaymentStatusSuccess,
		ProviderPaymentID: &providerPaymentID,
		ActorID:           uuid.New(),
	})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusSuccess, updated.Status)
	require.Equal(t, enums.OrderStatusPaid, f.orderStatus(t, order.ID))

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{PaymentID: res.Payment.ID, Status: enums.PaymentStatusFailed})
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	refunded, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{PaymentID: res.Payment.ID, Status: enums.PaymentStatusRefunded})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusRefunded, refunded.Status)

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{PaymentID: uuid.New(), Status: enums.PaymentStatusFailed})
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestMockSuccessSettlesPendingOrder(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)

	_, err := f.svc.MockSuccess(context.Background(), uuid.New(), order.ID)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	out, err := f.svc.MockSuccess(context.Background(), user.ID, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentProviderMock, out.Payment.Provider)
	require.Contains(t, out.Payment.ProviderOrderID, "mock_order_")
	require.Equal(t, enums.OrderStatusPaid, f.orderStatus(t, order.ID))

	_, err = f.svc.MockSuccess(context.Background(), user.ID, order.ID)
	require.Equal(t, ReasonOrderNotPending, pkgerrors.Reason(err))
}

func TestMockSuccessDisabled(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		TxRunner: db.NewFromGorm(conn),
		Orders:   stubPayer{},
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		Gateways: NewGateways(NewMockGateway("")),
	})
	require.NoError(t, err)
	_, err = svc.MockSuccess(context.Background(), uuid.New(), uuid.New())
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestGetByOrder(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	order := f.pendingOrder(t, user.ID)
	ctx := context.Background()

	_, err := f.svc.GetByOrder(ctx, order.ID, orders.UserActor(user.ID, enums.UserRoleUser))
	require.Equal(t, ReasonPaymentNotFound, pkgerrors.Reason(err))

	res := f.initiate(t, user.ID, order.ID)
	payment, err := f.svc.GetByOrder(ctx, order.ID, orders.UserActor(user.ID, enums.UserRoleUser))
	require.NoError(t, err)
	require.Equal(t, res.Payment.ID, payment.ID)

	_, err = f.svc.GetByOrder(ctx, order.ID, orders.UserActor(uuid.New(), enums.UserRoleUser))
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	_, err = f.svc.GetByOrder(ctx, order.ID, orders.UserActor(uuid.New(), enums.UserRoleAdmin))
	require.NoError(t, err)
}

func TestNewServiceRequiresFallbackGateway(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

type stubPayer struct{}

func (stubPayer) MarkPaid(context.Context, *gorm.DB, *models.Payment) (bool, error) {
	return true, nil
}

func ordersAdmin() orders.Actor {
	return orders.UserActor(uuid.New(), enums.UserRoleAdmin)
}
