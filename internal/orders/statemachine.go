package orders

import (
	"github.com/google/uuid"

	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
)

const (
	ReasonCartEmpty         = "CART_EMPTY"
	ReasonCannotCancel      = "CANNOT_CANCEL_ORDER"
	ReasonAdminOnly         = "ADMIN_ONLY"
	ReasonInvalidTransition = "INVALID_TRANSITION"
)

// ActorKind is the relationship between the caller and the order being moved.
type ActorKind string

const (
	ActorOwner  ActorKind = "OWNER"
	ActorAdmin  ActorKind = "ADMIN"
	ActorSystem ActorKind = "SYSTEM"
)

// Actor identifies who asks for a transition. System actors carry no user.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
	System bool
}

// UserActor builds the actor for an authenticated caller.
func UserActor(userID uuid.UUID, role enums.UserRole) Actor {
	return Actor{UserID: userID, Role: role}
}

// SystemActor is used by the payment engine and scheduled jobs.
func SystemActor() Actor {
	return Actor{System: true}
}

func (a Actor) role() string {
	if a.System {
		return string(ActorSystem)
	}
	return string(a.Role)
}

type transition struct {
	from enums.OrderStatus
	to   enums.OrderStatus
}

var guardTable = map[transition][]ActorKind{
	{enums.OrderStatusPending, enums.OrderStatusPaid}:      {ActorSystem, ActorAdmin},
	{enums.OrderStatusPending, enums.OrderStatusCancelled}: {ActorOwner, ActorAdmin, ActorSystem},
	{enums.OrderStatusPaid, enums.OrderStatusShipped}:      {ActorAdmin},
	{enums.OrderStatusPaid, enums.OrderStatusCancelled}:    {ActorOwner, ActorAdmin},
	{enums.OrderStatusShipped, enums.OrderStatusDelivered}: {ActorAdmin},
}

// kindOf resolves the actor kind once per order. Admins act as admins even on
// their own orders.
func kindOf(order *models.Order, actor Actor) (ActorKind, error) {
	switch {
	case actor.System:
		return ActorSystem, nil
	case actor.Role == enums.UserRoleAdmin:
		return ActorAdmin, nil
	case actor.UserID != uuid.Nil && actor.UserID == order.UserID:
		return ActorOwner, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
}

// Authorize checks a status change against the guard table.
func Authorize(order *models.Order, to enums.OrderStatus, actor Actor) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeInvariant, "order required")
	}
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").WithDetail("status", string(to))
	}
	kind, err := kindOf(order, actor)
	if err != nil {
		return err
	}

	from := order.Status
	if to == enums.OrderStatusCancelled && from != enums.OrderStatusPending && from != enums.OrderStatusPaid {
		return CannotCancel(from)
	}
	if kind == ActorOwner && to != enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins can set this status").
			WithDetail("status", string(to)).
			WithReason(ReasonAdminOnly)
	}

	allowed, ok := guardTable[transition{from: from, to: to}]
	if !ok {
		return invalidTransition(from, to)
	}
	for _, candidate := range allowed {
		if candidate == kind {
			return nil
		}
	}
	return invalidTransition(from, to)
}

// CannotCancel is returned when an order has moved past cancellation.
func CannotCancel(current enums.OrderStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled in its current status").
		WithDetail("status", string(current)).
		WithReason(ReasonCannotCancel)
}

func invalidTransition(from, to enums.OrderStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
		WithDetail("from", string(from)).
		WithDetail("to", string(to)).
		WithReason(ReasonInvalidTransition)
}
