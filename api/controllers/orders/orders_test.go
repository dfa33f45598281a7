package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/api/middleware"
	"github.com/shopzen/shopzen-backend/internal/inventory"
	internalorders "github.com/shopzen/shopzen-backend/internal/orders"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/types"
)

type stubOrderService struct {
	createFn      func(ctx context.Context, userID uuid.UUID, address *types.ShippingAddress) (*models.Order, error)
	updateFn      func(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, actor internalorders.Actor) (*models.Order, error)
	cancelFn      func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) (*models.Order, error)
	listForUserFn func(ctx context.Context, userID uuid.UUID, input internalorders.ListInput) (*internalorders.OrderList, error)
	listAllFn     func(ctx context.Context, input internalorders.ListInput) (*internalorders.OrderList, error)
	getFn         func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) (*models.Order, error)
}

func (s stubOrderService) CreateFromCart(ctx context.Context, userID uuid.UUID, address *types.ShippingAddress) (*models.Order, error) {
	return s.createFn(ctx, userID, address)
}

func (s stubOrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, actor internalorders.Actor) (*models.Order, error) {
	return s.updateFn(ctx, orderID, to, actor)
}

func (s stubOrderService) Cancel(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) (*models.Order, error) {
	return s.cancelFn(ctx, orderID, actor)
}

func (s stubOrderService) MarkPaid(ctx context.Context, tx *gorm.DB, payment *models.Payment) (bool, error) {
	return false, nil
}

func (s stubOrderService) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	return 0, nil
}

func (s stubOrderService) ListForUser(ctx context.Context, userID uuid.UUID, input internalorders.ListInput) (*internalorders.OrderList, error) {
	return s.listForUserFn(ctx, userID, input)
}

func (s stubOrderService) ListAll(ctx context.Context, input internalorders.ListInput) (*internalorders.OrderList, error) {
	return s.listAllFn(ctx, input)
}

func (s stubOrderService) Get(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) (*models.Order, error) {
	return s.getFn(ctx, orderID, actor)
}

func callerRequest(method, target, body string, userID uuid.UUID, role enums.UserRole) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(middleware.WithUser(req.Context(), userID.String(), role))
}

func withOrderID(req *http.Request, orderID uuid.UUID) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", orderID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func pendingOrder(userID uuid.UUID) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      enums.OrderStatusPending,
		TotalAmount: decimal.RequireFromString("180.00"),
		Currency:    "INR",
	}
}

func TestCreateOrder(t *testing.T) {
	userID := uuid.New()
	svc := stubOrderService{
		createFn: func(ctx context.Context, id uuid.UUID, address *types.ShippingAddress) (*models.Order, error) {
			if id != userID || address == nil || address.City != "Pune" {
				t.Fatalf("unexpected create args %s %+v", id, address)
			}
			return pendingOrder(userID), nil
		},
	}

	body := `{"address":{"fullName":"Asha","phone":"9876543210","line1":"1 Main","city":"Pune","state":"MH","postalCode":"411001"}}`
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, callerRequest(http.MethodPost, "/api/v1/orders", body, userID, enums.UserRoleUser))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data internalorders.OrderDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Status != enums.OrderStatusPending || !envelope.Data.TotalAmount.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("unexpected order %+v", envelope.Data)
	}
}

func TestCreateOrderRequiresAddress(t *testing.T) {
	resp := httptest.NewRecorder()
	Create(stubOrderService{}, nil).ServeHTTP(resp, callerRequest(http.MethodPost, "/api/v1/orders", `{}`, uuid.New(), enums.UserRoleUser))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCancelConflict(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	svc := stubOrderService{
		cancelFn: func(ctx context.Context, id uuid.UUID, actor internalorders.Actor) (*models.Order, error) {
			if actor.UserID != userID || actor.Role != enums.UserRoleUser {
				t.Fatalf("unexpected actor %+v", actor)
			}
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled")
		},
	}

	resp := httptest.NewRecorder()
	req := withOrderID(callerRequest(http.MethodPost, "/", "", userID, enums.UserRoleUser), orderID)
	Cancel(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestDomainReasonsReachTheClient(t *testing.T) {
	userID := uuid.New()
	shipped := pendingOrder(userID)
	shipped.Status = enums.OrderStatusShipped
	owner := internalorders.UserActor(userID, enums.UserRoleUser)

	cases := []struct {
		name   string
		err    error
		status int
		code   pkgerrors.Code
		reason string
	}{
		{"cannot cancel", internalorders.CannotCancel(enums.OrderStatusShipped), http.StatusConflict, pkgerrors.CodeStateConflict, internalorders.ReasonCannotCancel},
		{"insufficient stock", inventory.InsufficientStock(uuid.New(), 1, 2), http.StatusConflict, pkgerrors.CodeStateConflict, inventory.ReasonInsufficientStock},
		{"admin only", internalorders.Authorize(pendingOrder(userID), enums.OrderStatusShipped, owner), http.StatusForbidden, pkgerrors.CodeForbidden, internalorders.ReasonAdminOnly},
		{"invalid transition", internalorders.Authorize(shipped, enums.OrderStatusPaid, internalorders.SystemActor()), http.StatusConflict, pkgerrors.CodeStateConflict, internalorders.ReasonInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := stubOrderService{
				cancelFn: func(context.Context, uuid.UUID, internalorders.Actor) (*models.Order, error) {
					return nil, tc.err
				},
			}
			resp := httptest.NewRecorder()
			req := withOrderID(callerRequest(http.MethodPost, "/", "", userID, enums.UserRoleUser), uuid.New())
			Cancel(svc, nil).ServeHTTP(resp, req)

			if resp.Code != tc.status {
				t.Fatalf("expected %d got %d (%s)", tc.status, resp.Code, resp.Body.String())
			}
			var envelope struct {
				Error struct {
					Code    string         `json:"code"`
					Details map[string]any `json:"details"`
				} `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if envelope.Error.Code != string(tc.code) {
				t.Fatalf("expected code %s got %s", tc.code, envelope.Error.Code)
			}
			if envelope.Error.Details["reason"] != tc.reason {
				t.Fatalf("expected reason %s got %v", tc.reason, envelope.Error.Details)
			}
		})
	}
}

func TestUpdateStatusParsesStatus(t *testing.T) {
	adminID := uuid.New()
	orderID := uuid.New()
	svc := stubOrderService{
		updateFn: func(ctx context.Context, id uuid.UUID, to enums.OrderStatus, actor internalorders.Actor) (*models.Order, error) {
			if to != enums.OrderStatusShipped || actor.Role != enums.UserRoleAdmin {
				t.Fatalf("unexpected transition %s by %+v", to, actor)
			}
			order := pendingOrder(uuid.New())
			order.Status = to
			return order, nil
		},
	}

	resp := httptest.NewRecorder()
	req := withOrderID(callerRequest(http.MethodPatch, "/", `{"status":"shipped"}`, adminID, enums.UserRoleAdmin), orderID)
	UpdateStatus(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	req = withOrderID(callerRequest(http.MethodPatch, "/", `{"status":"LOST"}`, adminID, enums.UserRoleAdmin), orderID)
	UpdateStatus(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status got %d", resp.Code)
	}
}

func TestDetailForbidden(t *testing.T) {
	svc := stubOrderService{
		getFn: func(ctx context.Context, id uuid.UUID, actor internalorders.Actor) (*models.Order, error) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not your order")
		},
	}
	resp := httptest.NewRecorder()
	req := withOrderID(callerRequest(http.MethodGet, "/", "", uuid.New(), enums.UserRoleUser), uuid.New())
	Detail(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestListParsesPaging(t *testing.T) {
	userID := uuid.New()
	svc := stubOrderService{
		listForUserFn: func(ctx context.Context, id uuid.UUID, input internalorders.ListInput) (*internalorders.OrderList, error) {
			if input.Limit != 5 || input.Offset != 10 || input.Status == nil || *input.Status != enums.OrderStatusPaid {
				t.Fatalf("unexpected input %+v", input)
			}
			return &internalorders.OrderList{Orders: []internalorders.OrderDTO{}, Limit: 5, Offset: 10}, nil
		},
		listAllFn: func(ctx context.Context, input internalorders.ListInput) (*internalorders.OrderList, error) {
			return &internalorders.OrderList{Orders: []internalorders.OrderDTO{}}, nil
		},
	}

	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, callerRequest(http.MethodGet, "/api/v1/orders?limit=5&offset=10&status=paid", "", userID, enums.UserRoleUser))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	AdminList(svc, nil).ServeHTTP(resp, callerRequest(http.MethodGet, "/api/v1/admin/orders?status=bogus", "", userID, enums.UserRoleAdmin))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
