package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/api/middleware"
	cartsvc "github.com/shopzen/shopzen-backend/internal/cart"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
)

type stubCartService struct {
	cart        *cartsvc.CartDTO
	err         error
	lastAdd     cartsvc.AddItemInput
	lastProduct uuid.UUID
	lastQty     int
	cleared     bool
}

func (s *stubCartService) Get(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func (s *stubCartService) Add(ctx context.Context, userID uuid.UUID, input cartsvc.AddItemInput) (*cartsvc.CartDTO, error) {
	s.lastAdd = input
	return s.cart, s.err
}

func (s *stubCartService) AddWithTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input cartsvc.AddItemInput) error {
	s.lastAdd = input
	return s.err
}

func (s *stubCartService) Update(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.CartDTO, error) {
	s.lastProduct = productID
	s.lastQty = quantity
	return s.cart, s.err
}

func (s *stubCartService) Remove(ctx context.Context, userID, productID uuid.UUID) (*cartsvc.CartDTO, error) {
	s.lastProduct = productID
	return s.cart, s.err
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	s.cleared = true
	return s.err
}

func userRequest(method, target, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(middleware.WithUser(req.Context(), userID.String(), enums.UserRoleUser))
}

func withProductID(req *http.Request, productID uuid.UUID) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("productId", productID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCartFetchSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{cart: &cartsvc.CartDTO{UserID: userID, Total: decimal.RequireFromString("180")}}

	resp := httptest.NewRecorder()
	CartFetch(svc, nil).ServeHTTP(resp, userRequest(http.MethodGet, "/api/v1/cart", "", userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartsvc.CartDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.UserID != userID || !envelope.Data.Total.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("unexpected cart %+v", envelope.Data)
	}
}

func TestCartFetchRequiresUser(t *testing.T) {
	resp := httptest.NewRecorder()
	CartFetch(&stubCartService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItem(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	svc := &stubCartService{cart: &cartsvc.CartDTO{UserID: userID}}

	body := `{"productId":"` + productID.String() + `","quantity":2}`
	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, userRequest(http.MethodPost, "/api/v1/cart/items", body, userID))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.lastAdd.ProductID != productID || svc.lastAdd.Quantity != 2 {
		t.Fatalf("unexpected input %+v", svc.lastAdd)
	}
}

func TestCartAddItemInsufficientStock(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")}

	body := `{"productId":"` + uuid.NewString() + `","quantity":50}`
	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, userRequest(http.MethodPost, "/api/v1/cart/items", body, userID))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCartUpdateItemValidatesQuantity(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	svc := &stubCartService{cart: &cartsvc.CartDTO{}}

	resp := httptest.NewRecorder()
	req := withProductID(userRequest(http.MethodPatch, "/", `{"quantity":0}`, userID), productID)
	CartUpdateItem(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	req = withProductID(userRequest(http.MethodPatch, "/", `{"quantity":3}`, userID), productID)
	CartUpdateItem(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || svc.lastQty != 3 || svc.lastProduct != productID {
		t.Fatalf("unexpected update code=%d qty=%d", resp.Code, svc.lastQty)
	}
}

func TestCartRemoveAndClear(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	svc := &stubCartService{cart: &cartsvc.CartDTO{}}

	resp := httptest.NewRecorder()
	CartRemoveItem(svc, nil).ServeHTTP(resp, withProductID(userRequest(http.MethodDelete, "/", "", userID), productID))
	if resp.Code != http.StatusOK || svc.lastProduct != productID {
		t.Fatalf("unexpected remove code=%d", resp.Code)
	}

	resp = httptest.NewRecorder()
	CartClear(svc, nil).ServeHTTP(resp, userRequest(http.MethodDelete, "/api/v1/cart", "", userID))
	if resp.Code != http.StatusOK || !svc.cleared {
		t.Fatalf("expected cart cleared, code=%d", resp.Code)
	}
}
