package payments

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shopzen/shopzen-backend/api/middleware"
	"github.com/shopzen/shopzen-backend/api/responses"
	"github.com/shopzen/shopzen-backend/api/validators"
	"github.com/shopzen/shopzen-backend/internal/orders"
	paymentsvc "github.com/shopzen/shopzen-backend/internal/payments"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/logger"
)

type initiateRequest struct {
	OrderID  uuid.UUID `json:"orderId" validate:"required"`
	Provider string    `json:"provider" validate:"omitempty,max=20"`
}

// confirmRequest carries the provider-side ids the checkout widget returned.
type confirmRequest struct {
	PaymentID string `json:"paymentId" validate:"required,max=255"`
	OrderID   string `json:"orderId" validate:"required,max=255"`
	Signature string `json:"signature" validate:"omitempty,max=512"`
	Provider  string `json:"provider" validate:"omitempty,max=20"`
}

type mockSuccessRequest struct {
	OrderID uuid.UUID `json:"orderId" validate:"required"`
}

type adminUpdateRequest struct {
	Status            string  `json:"status" validate:"required"`
	ProviderPaymentID *string `json:"providerPaymentId,omitempty" validate:"omitempty,max=255"`
}

// Initiate creates (or reuses) the pending payment and provider order for a
// PENDING order and returns the client checkout details.
func Initiate(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		userID, _, err := middleware.RequireCaller(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload initiateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		provider, err := parseProvider(payload.Provider)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), paymentsvc.InitiateInput{
			UserID:   userID,
			OrderID:  payload.OrderID,
			Provider: provider,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Confirm verifies the client-side checkout signature and applies success.
func Confirm(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		if _, _, err := middleware.RequireCaller(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		provider, err := parseProvider(payload.Provider)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), paymentsvc.VerifyInput{
			ProviderOrderID:   payload.OrderID,
			ProviderPaymentID: payload.PaymentID,
			Signature:         payload.Signature,
			Provider:          provider,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetByOrder(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		userID, role, err := middleware.RequireCaller(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.GetByOrder(r.Context(), orderID, orders.UserActor(userID, role))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentsvc.ToDTO(payment))
	}
}

// AdminUpdateStatus lets an admin correct a payment. SUCCESS routes through
// the same latch the webhooks use.
func AdminUpdateStatus(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		adminID, _, err := middleware.RequireCaller(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.ParseURLUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParsePaymentStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status").WithDetail("field", "status"))
			return
		}

		payment, err := svc.UpdateStatus(r.Context(), paymentsvc.UpdateStatusInput{
			PaymentID:         paymentID,
			Status:            status,
			ProviderPaymentID: payload.ProviderPaymentID,
			ActorID:           adminID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentsvc.ToDTO(payment))
	}
}

// MockSuccess marks a PENDING order paid without a gateway. Only routed
// outside production.
func MockSuccess(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		userID, _, err := middleware.RequireCaller(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload mockSuccessRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.MockSuccess(r.Context(), userID, payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// parseProvider defaults to Razorpay and refuses providers a client may not pick.
func parseProvider(raw string) (enums.PaymentProvider, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return enums.PaymentProviderRazorpay, nil
	}
	provider, err := enums.ParsePaymentProvider(raw)
	if err != nil || !provider.IsClientSelectable() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment provider").WithDetail("provider", raw)
	}
	return provider, nil
}
