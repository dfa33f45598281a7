package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/internal/inventory"
	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/outbox"
	"github.com/shopzen/shopzen-backend/pkg/outbox/payloads"
	"github.com/shopzen/shopzen-backend/pkg/pagination"
	"github.com/shopzen/shopzen-backend/pkg/types"
)

const defaultCurrency = "INR"

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the order lifecycle. Every status change goes through Authorize.
type Service interface {
	CreateFromCart(ctx context.Context, userID uuid.UUID, address *types.ShippingAddress) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, actor Actor) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, payment *models.Payment) (bool, error)
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
	ListForUser(ctx context.Context, userID uuid.UUID, input ListInput) (*OrderList, error)
	ListAll(ctx context.Context, input ListInput) (*OrderList, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
}

type service struct {
	repo      Repository
	tx        db.TxRunner
	outbox    outboxPublisher
	inventory Inventory
	currency  string
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx db.TxRunner, outbox outboxPublisher, inventory Inventory, currency string, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = defaultCurrency
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outbox,
		inventory: inventory,
		currency:  currency,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) CreateFromCart(ctx context.Context, userID uuid.UUID, address *types.ShippingAddress) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindCartItems(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(cart) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty").WithReason(ReasonCartEmpty)
		}
		if err := checkStock(cart); err != nil {
			return err
		}

		order := buildOrder(userID, s.currency, cart, address)
		for _, item := range cart {
			if err := s.inventory.Reserve(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := repo.DeleteCartItems(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		lines := make([]payloads.OrderItemLine, 0, len(order.Items))
		for _, item := range order.Items {
			lines = append(lines, payloads.OrderItemLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}
		created = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.UserActor(userID, string(enums.UserRoleUser)),
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				UserID:      userID,
				TotalAmount: order.TotalAmount,
				Currency:    order.Currency,
				Items:       lines,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), created.ID.String())
		s.logg.Info(logCtx, "order created from cart")
	}
	return created, nil
}

// checkStock reports every short item at once so the client can fix the cart
// in one round trip.
func checkStock(cart []models.CartItem) error {
	var short []map[string]any
	for _, item := range cart {
		if item.Product == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetail("productId", item.ProductID.String())
		}
		if item.Product.Stock < item.Quantity {
			short = append(short, map[string]any{
				"productId": item.ProductID.String(),
				"title":     item.Product.Title,
				"available": item.Product.Stock,
				"requested": item.Quantity,
			})
		}
	}
	if len(short) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock for one or more items").
		WithDetail("items", short).
		WithReason(inventory.ReasonInsufficientStock)
}

func buildOrder(userID uuid.UUID, currency string, cart []models.CartItem, address *types.ShippingAddress) *models.Order {
	order := &models.Order{
		ID:       uuid.New(),
		UserID:   userID,
		Status:   enums.OrderStatusPending,
		Currency: currency,
		Items:    make([]models.OrderItem, 0, len(cart)),
	}
	total := decimal.Zero
	hundred := decimal.NewFromInt(100)
	for _, item := range cart {
		product := item.Product
		factor := decimal.NewFromInt(1).Sub(product.DiscountPercentage.Div(hundred))
		line := product.Price.Mul(factor).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
		order.Items = append(order.Items, models.OrderItem{
			OrderID:            order.ID,
			ProductID:          product.ID,
			Title:              product.Title,
			Quantity:           item.Quantity,
			UnitPrice:          product.Price,
			DiscountPercentage: product.DiscountPercentage,
			LineTotal:          line.Round(2),
		})
	}
	order.TotalAmount = total.Round(2)

	if address != nil {
		normalized := address.Normalized()
		order.Address = &models.OrderAddress{
			OrderID:    order.ID,
			FullName:   normalized.FullName,
			Phone:      normalized.Phone,
			Line1:      normalized.Line1,
			Line2:      normalized.Line2,
			City:       normalized.City,
			State:      normalized.State,
			PostalCode: normalized.PostalCode,
			Country:    normalized.Country,
		}
	}
	return order
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, actor Actor) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if to == enums.OrderStatusCancelled {
		return s.Cancel(ctx, orderID, actor)
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadForUpdate(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := Authorize(order, to, actor); err != nil {
			return err
		}
		if err := s.transition(ctx, tx, repo, order, to, actor); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadForUpdate(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := s.cancelLocked(ctx, tx, repo, order, actor, enums.EventOrderCanceled, ""); err != nil {
			return err
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":   orderID.String(),
			"actor_role": actor.role(),
		})
		s.logg.Info(logCtx, "order cancelled")
	}
	return cancelled, nil
}

// cancelLocked releases stock for every item and flips the status. The order
// row must already be locked by the caller's transaction.
func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, actor Actor, eventType enums.OutboxEventType, reason string) error {
	if err := Authorize(order, enums.OrderStatusCancelled, actor); err != nil {
		return err
	}
	previous := order.Status
	for _, item := range order.Items {
		if err := s.inventory.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	if err := s.transition(ctx, tx, repo, order, enums.OrderStatusCancelled, actor); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         eventActor(actor),
		Data: payloads.OrderCanceledEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			PreviousState: previous,
			CanceledAt:    s.now().UTC(),
			Reason:        reason,
		},
	})
}

// transition persists an authorized status change and records it in the outbox.
func (s *service) transition(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, to enums.OrderStatus, actor Actor) error {
	from := order.Status
	if err := repo.UpdateStatus(ctx, order.ID, from, to); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalidTransition(from, to)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	order.Status = to
	order.UpdatedAt = s.now().UTC()
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         eventActor(actor),
		Data: payloads.OrderStatusChangedEvent{
			OrderID: order.ID,
			UserID:  order.UserID,
			From:    from,
			To:      to,
		},
	})
}

// MarkPaid applies PENDING to PAID as the system actor inside the payment
// engine's transaction. An order already PAID, SHIPPED or DELIVERED reports
// false and keeps its status, so a late capture still latches the payment.
func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, payment *models.Payment) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeInvariant, "mark paid requires a transaction")
	}
	if payment == nil {
		return false, pkgerrors.New(pkgerrors.CodeInvariant, "payment required")
	}
	repo := s.repo.WithTx(tx)
	order, err := loadForUpdate(ctx, repo, payment.OrderID)
	if err != nil {
		return false, err
	}
	if order.Status.IsSettled() {
		return false, nil
	}
	actor := SystemActor()
	if err := Authorize(order, enums.OrderStatusPaid, actor); err != nil {
		return false, err
	}
	if err := s.transition(ctx, tx, repo, order, enums.OrderStatusPaid, actor); err != nil {
		return false, err
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.SystemActor(),
		Data: payloads.OrderPaidEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			PaymentID: payment.ID,
			Provider:  payment.Provider,
			Amount:    payment.Amount,
			PaidAt:    s.now().UTC(),
		},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ExpireStale cancels PENDING orders created before cutoff, one transaction
// per order. Orders paid in the meantime are skipped.
func (s *service) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	ids, err := s.repo.FindPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale orders")
	}

	var (
		expired int
		errs    error
	)
	for _, id := range ids {
		orderID := id
		var changed bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := loadForUpdate(ctx, repo, orderID)
			if err != nil {
				return err
			}
			if order.Status != enums.OrderStatusPending || !order.CreatedAt.Before(cutoff) {
				return nil
			}
			changed = true
			return s.cancelLocked(ctx, tx, repo, order, SystemActor(), enums.EventOrderExpired, "payment window elapsed")
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", orderID, err))
			continue
		}
		if changed {
			expired++
		}
	}
	return expired, errs
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, input ListInput) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.list(ctx, ListFilter{UserID: &userID, Status: input.Status}, input, defaultUserListLimit)
}

func (s *service) ListAll(ctx context.Context, input ListInput) (*OrderList, error) {
	return s.list(ctx, ListFilter{Status: input.Status}, input, defaultAdminListLimit)
}

func (s *service) list(ctx context.Context, filter ListFilter, input ListInput, def int) (*OrderList, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	params := pagination.Params{Limit: input.Limit, Offset: input.Offset}.Normalize(def)
	rows, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &OrderList{
		Orders: make([]OrderDTO, 0, len(rows)),
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	for i := range rows {
		out.Orders = append(out.Orders, ToDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if _, err := kindOf(order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func loadForUpdate(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func eventActor(actor Actor) *outbox.ActorRef {
	if actor.System {
		return outbox.SystemActor()
	}
	return outbox.UserActor(actor.UserID, actor.role())
}
