package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/internal/orders"
	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/metrics"
	"github.com/shopzen/shopzen-backend/pkg/outbox"
	"github.com/shopzen/shopzen-backend/pkg/outbox/payloads"
	"github.com/shopzen/shopzen-backend/pkg/types"
)

const (
	successApplied        = "applied"
	successAlreadyApplied = "already_applied"
	successError          = "error"
)

type orderPayer interface {
	MarkPaid(ctx context.Context, tx *gorm.DB, payment *models.Payment) (bool, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service reconciles local payment records with provider callbacks.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error)
	Verify(ctx context.Context, input VerifyInput) (*SuccessResult, error)
	HandleSuccess(ctx context.Context, providerOrderID, providerPaymentID string) (*SuccessResult, error)
	HandleFailure(ctx context.Context, providerOrderID, reason string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Payment, error)
	MockSuccess(ctx context.Context, userID, orderID uuid.UUID) (*SuccessResult, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.Payment, error)
	HandleRazorpayWebhook(ctx context.Context, delivery RazorpayWebhook) (types.WebhookAck, error)
	HandleStripeWebhook(ctx context.Context, body []byte, signatureHeader string) (types.WebhookAck, error)
}

type ServiceParams struct {
	Repo             Repository
	TxRunner         db.TxRunner
	Orders           orderPayer
	Outbox           outboxPublisher
	Gateways         *Gateways
	RazorpayWebhooks razorpayWebhookVerifier
	StripeWebhooks   stripeEventConstructor
	Guard            *WebhookGuard
	Metrics          *metrics.PaymentMetrics
	Logger           *logger.Logger
	Config           config.PaymentsConfig
	MockEnabled      bool
}

type service struct {
	repo        Repository
	tx          db.TxRunner
	orders      orderPayer
	outbox      outboxPublisher
	gateways    *Gateways
	razorpay    razorpayWebhookVerifier
	stripe      stripeEventConstructor
	guard       *WebhookGuard
	metrics     *metrics.PaymentMetrics
	logg        *logger.Logger
	cfg         config.PaymentsConfig
	mockEnabled bool
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repository required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.Gateways == nil || params.Gateways.fallback == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateways with a fallback required")
	}
	cfg := params.Config
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.MerchantName == "" {
		cfg.MerchantName = "ShopZen"
	}
	return &service{
		repo:        params.Repo,
		tx:          params.TxRunner,
		orders:      params.Orders,
		outbox:      params.Outbox,
		gateways:    params.Gateways,
		razorpay:    params.RazorpayWebhooks,
		stripe:      params.StripeWebhooks,
		guard:       params.Guard,
		metrics:     params.Metrics,
		logg:        params.Logger,
		cfg:         cfg,
		mockEnabled: params.MockEnabled,
		now:         time.Now,
	}, nil
}

func (s *service) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Provider.IsClientSelectable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment provider").
			WithDetail("provider", string(input.Provider))
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		return nil, orderLookupError(err)
	}
	if err := checkPayable(order, input.UserID); err != nil {
		return nil, err
	}
	user, err := s.repo.FindUser(ctx, order.UserID)
	if err != nil && !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order owner")
	}

	currency := strings.ToUpper(order.Currency)
	if currency == "" {
		currency = s.cfg.Currency
	}
	gatewayOrder, err := s.gateways.For(input.Provider).CreateOrder(ctx, GatewayOrderRequest{
		OrderID:     order.ID.String(),
		UserID:      input.UserID.String(),
		AmountMinor: ToMinorUnits(order.TotalAmount),
		Currency:    currency,
		Description: "Payment for Order",
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "payment gateway order failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternal, err, "payment gateway error").
			WithDetail("provider", string(input.Provider)).
			WithReason(ReasonGatewayError)
	}

	var payment *models.Payment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return orderLookupError(err)
		}
		if err := checkPayable(locked, input.UserID); err != nil {
			return err
		}
		payment, err = s.upsertPending(ctx, repo, locked, input.Provider, gatewayOrder.ProviderOrderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	details := GatewayDetails{
		Key:          gatewayOrder.PublicKey,
		OrderID:      gatewayOrder.ProviderOrderID,
		Amount:       gatewayOrder.AmountMinor,
		Currency:     gatewayOrder.Currency,
		Name:         s.cfg.MerchantName,
		Description:  "Payment for Order",
		ClientSecret: gatewayOrder.ClientSecret,
		Theme:        Theme{Color: s.cfg.ThemeColor},
	}
	if user != nil {
		details.Prefill = Prefill{Name: user.Name, Email: user.Email, Contact: user.Phone}
	}
	if order.Address != nil {
		details.Prefill.Name = order.Address.FullName
		contact := order.Address.Phone
		details.Prefill.Contact = &contact
	}
	return &InitiateResult{Payment: ToDTO(payment), GatewayDetails: details}, nil
}

// upsertPending keeps one payment row per order; re-initiation overwrites any
// attempt that has not succeeded.
func (s *service) upsertPending(ctx context.Context, repo Repository, order *models.Order, provider enums.PaymentProvider, providerOrderID string) (*models.Payment, error) {
	existing := order.Payment
	if existing == nil {
		payment := &models.Payment{
			OrderID:         order.ID,
			Provider:        provider,
			ProviderOrderID: providerOrderID,
			Amount:          order.TotalAmount,
			Currency:        order.Currency,
			Status:          enums.PaymentStatusPending,
		}
		if err := repo.Create(ctx, payment); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		return payment, nil
	}

	existing.Provider = provider
	existing.ProviderOrderID = providerOrderID
	existing.ProviderPaymentID = nil
	existing.Amount = order.TotalAmount
	existing.Currency = order.Currency
	existing.Status = enums.PaymentStatusPending
	existing.FailureReason = nil
	if err := repo.Save(ctx, existing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}
	return existing, nil
}

func checkPayable(order *models.Order, userID uuid.UUID) error {
	if order.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	if order.Status.IsSettled() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid").WithReason(ReasonOrderAlreadyPaid)
	}
	if order.Status == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled").WithReason(ReasonOrderCancelled)
	}
	if order.Payment != nil && order.Payment.Status == enums.PaymentStatusSuccess {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already completed").WithReason(ReasonPaymentCompleted)
	}
	return nil
}

func (s *service) Verify(ctx context.Context, input VerifyInput) (*SuccessResult, error) {
	input.ProviderOrderID = strings.TrimSpace(input.ProviderOrderID)
	input.ProviderPaymentID = strings.TrimSpace(input.ProviderPaymentID)
	if input.ProviderOrderID == "" || input.ProviderPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and payment id required")
	}
	gateway := s.gateways.For(input.Provider)
	if !gateway.VerifyPaymentSignature(input.ProviderOrderID, input.ProviderPaymentID, input.Signature) {
		return nil, invalidSignature()
	}
	return s.HandleSuccess(ctx, input.ProviderOrderID, input.ProviderPaymentID)
}

func invalidSignature() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment signature").WithReason(ReasonInvalidSignature)
}

// HandleSuccess is the one-way SUCCESS latch. The order row is locked before
// the payment row, the same order Initiate uses, and the payment status is
// re-read under that lock so concurrent deliveries apply once.
func (s *service) HandleSuccess(ctx context.Context, providerOrderID, providerPaymentID string) (*SuccessResult, error) {
	payment, err := s.repo.FindByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		s.metrics.SuccessHandler(successError)
		return nil, paymentLookupError(err)
	}
	if payment.Status == enums.PaymentStatusSuccess {
		s.metrics.SuccessHandler(successAlreadyApplied)
		return &SuccessResult{Payment: ToDTO(payment), OrderStatus: enums.OrderStatusPaid, AlreadyProcessed: true}, nil
	}

	result := &SuccessResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderForUpdate(ctx, payment.OrderID)
		if err != nil {
			return orderLookupError(err)
		}
		locked, err := repo.FindByIDForUpdate(ctx, payment.ID)
		if err != nil {
			return paymentLookupError(err)
		}
		result.OrderStatus = paidStatus(order)
		if locked.Status == enums.PaymentStatusSuccess {
			result.Payment = ToDTO(locked)
			result.AlreadyProcessed = true
			return nil
		}
		if err := s.applySuccess(ctx, tx, repo, locked, providerPaymentID); err != nil {
			return err
		}
		result.Payment = ToDTO(locked)
		return nil
	})
	if err != nil {
		s.metrics.SuccessHandler(successError)
		return nil, err
	}
	if result.AlreadyProcessed {
		s.metrics.SuccessHandler(successAlreadyApplied)
		return result, nil
	}
	s.metrics.SuccessHandler(successApplied)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":          payment.OrderID.String(),
			"payment_id":        payment.ID.String(),
			"provider_order_id": providerOrderID,
			"order_status":      string(result.OrderStatus),
		})
		s.logg.Info(logCtx, "payment marked successful")
	}
	return result, nil
}

// paidStatus is the order status once a success is applied: PAID, or the
// later status of an order that moved past PAID before the capture arrived.
func paidStatus(order *models.Order) enums.OrderStatus {
	if order.Status.IsSettled() {
		return order.Status
	}
	return enums.OrderStatusPaid
}

// applySuccess writes SUCCESS and moves the order to PAID in tx. The caller
// holds the order lock.
func (s *service) applySuccess(ctx context.Context, tx *gorm.DB, repo Repository, payment *models.Payment, providerPaymentID string) error {
	payment.Status = enums.PaymentStatusSuccess
	if providerPaymentID != "" {
		id := providerPaymentID
		payment.ProviderPaymentID = &id
	}
	payment.FailureReason = nil
	if err := repo.Save(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}
	if _, err := s.orders.MarkPaid(ctx, tx, payment); err != nil {
		return err
	}
	return s.emitStatus(ctx, tx, payment, enums.EventPaymentSucceeded, "")
}

// HandleFailure records a failed attempt. A payment that already succeeded is
// left untouched.
func (s *service) HandleFailure(ctx context.Context, providerOrderID, reason string) (*models.Payment, error) {
	payment, err := s.repo.FindByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return nil, paymentLookupError(err)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(ctx, payment.ID)
		if err != nil {
			return paymentLookupError(err)
		}
		payment = locked
		if locked.Status == enums.PaymentStatusSuccess || locked.Status == enums.PaymentStatusFailed {
			return nil
		}
		locked.Status = enums.PaymentStatusFailed
		if reason = strings.TrimSpace(reason); reason != "" {
			locked.FailureReason = &reason
		}
		if err := repo.Save(ctx, locked); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		return s.emitStatus(ctx, tx, locked, enums.EventPaymentFailed, reason)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Payment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	current, err := s.repo.FindByID(ctx, input.PaymentID)
	if err != nil {
		return nil, paymentLookupError(err)
	}

	var updated *models.Payment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindOrderForUpdate(ctx, current.OrderID); err != nil {
			return orderLookupError(err)
		}
		payment, err := repo.FindByIDForUpdate(ctx, current.ID)
		if err != nil {
			return paymentLookupError(err)
		}
		updated = payment
		if payment.Status == input.Status {
			return nil
		}
		if payment.Status == enums.PaymentStatusSuccess && input.Status != enums.PaymentStatusRefunded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "successful payments can only be refunded").
				WithReason(ReasonSuccessIsTerminal)
		}

		var providerPaymentID string
		if input.ProviderPaymentID != nil {
			providerPaymentID = strings.TrimSpace(*input.ProviderPaymentID)
		}
		if input.Status == enums.PaymentStatusSuccess {
			return s.applySuccess(ctx, tx, repo, payment, providerPaymentID)
		}

		payment.Status = input.Status
		if providerPaymentID != "" {
			payment.ProviderPaymentID = &providerPaymentID
		}
		if err := repo.Save(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		if input.Status == enums.PaymentStatusFailed {
			return s.emitStatus(ctx, tx, payment, enums.EventPaymentFailed, "set by admin")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithPaymentID(ctx, input.PaymentID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"status":   string(input.Status),
			"actor_id": input.ActorID.String(),
		})
		s.logg.Info(logCtx, "payment status overridden")
	}
	return updated, nil
}

// MockSuccess settles a PENDING order without a provider. It is only wired
// outside production.
func (s *service) MockSuccess(ctx context.Context, userID, orderID uuid.UUID) (*SuccessResult, error) {
	if !s.mockEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "mock payments are disabled")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	stamp := s.now().UnixNano()
	providerOrderID := fmt.Sprintf("mock_order_%d", stamp)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			return orderLookupError(err)
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending").
				WithDetail("status", string(order.Status)).
				WithReason(ReasonOrderNotPending)
		}
		if err := checkPayable(order, userID); err != nil {
			return err
		}
		_, err = s.upsertPending(ctx, repo, order, enums.PaymentProviderMock, providerOrderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.HandleSuccess(ctx, providerOrderID, fmt.Sprintf("mock_pay_%d", stamp))
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, orderLookupError(err)
	}
	if actor.Role != enums.UserRoleAdmin && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	payment, err := s.repo.FindByOrderID(ctx, order.ID)
	if err != nil {
		return nil, paymentLookupError(err)
	}
	return payment, nil
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, payment *models.Payment, eventType enums.OutboxEventType, reason string) error {
	var providerPaymentID string
	if payment.ProviderPaymentID != nil {
		providerPaymentID = *payment.ProviderPaymentID
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         outbox.SystemActor(),
		Data: payloads.PaymentStatusEvent{
			PaymentID:         payment.ID,
			OrderID:           payment.OrderID,
			Provider:          payment.Provider,
			ProviderOrderID:   payment.ProviderOrderID,
			ProviderPaymentID: providerPaymentID,
			Status:            payment.Status,
			Reason:            reason,
		},
	})
}

func orderLookupError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func paymentLookupError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found").WithReason(ReasonPaymentNotFound)
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
}
