package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	productsvc "github.com/shopzen/shopzen-backend/internal/products"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/logger"
)

type stubProductService struct {
	createFn func(ctx context.Context, input productsvc.CreateProductInput) (*productsvc.ProductDTO, error)
	listFn   func(ctx context.Context, input productsvc.ListProductsInput) (*productsvc.ProductListResult, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*productsvc.ProductDTO, error)
}

func (s stubProductService) Create(ctx context.Context, input productsvc.CreateProductInput) (*productsvc.ProductDTO, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &productsvc.ProductDTO{}, nil
}

func (s stubProductService) List(ctx context.Context, input productsvc.ListProductsInput) (*productsvc.ProductListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, input)
	}
	return &productsvc.ProductListResult{}, nil
}

func (s stubProductService) Get(ctx context.Context, id uuid.UUID) (*productsvc.ProductDTO, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, errors.New("not stubbed")
}

func (s stubProductService) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	return nil, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestListProductsParsesQuery(t *testing.T) {
	svc := stubProductService{
		listFn: func(ctx context.Context, input productsvc.ListProductsInput) (*productsvc.ProductListResult, error) {
			if input.Page != 2 || input.Limit != 5 || input.Query != "phone" || input.Category != "electronics" {
				t.Fatalf("unexpected input %+v", input)
			}
			return &productsvc.ProductListResult{Page: 2, Limit: 5}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?page=2&limit=5&q=%20phone%20&category=electronics", nil)
	rec := httptest.NewRecorder()
	ListProducts(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestListProductsRejectsBadLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=0", nil)
	rec := httptest.NewRecorder()
	ListProducts(stubProductService{}, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestGetProduct(t *testing.T) {
	productID := uuid.New()
	svc := stubProductService{
		getFn: func(ctx context.Context, id uuid.UUID) (*productsvc.ProductDTO, error) {
			if id != productID {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return &productsvc.ProductDTO{ProductSummary: productsvc.ProductSummary{ID: id, Title: "Lamp"}}, nil
		},
	}

	t.Run("found", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "productId", productID.String())
		rec := httptest.NewRecorder()
		GetProduct(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
		var envelope struct {
			Data productsvc.ProductDTO `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if envelope.Data.Title != "Lamp" {
			t.Fatalf("unexpected product %+v", envelope.Data)
		}
	})

	t.Run("missing", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "productId", uuid.NewString())
		rec := httptest.NewRecorder()
		GetProduct(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 got %d", rec.Code)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "productId", "nope")
		rec := httptest.NewRecorder()
		GetProduct(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})
}

func TestAdminCreateProduct(t *testing.T) {
	svc := stubProductService{
		createFn: func(ctx context.Context, input productsvc.CreateProductInput) (*productsvc.ProductDTO, error) {
			if !input.Price.Equal(decimal.RequireFromString("499.99")) {
				t.Fatalf("unexpected price %s", input.Price)
			}
			return &productsvc.ProductDTO{SKU: input.SKU}, nil
		},
	}
	body := `{"title":"Desk Lamp","category":"home","sku":"LAMP-1","price":"499.99","stock":10,"minimumOrderQuantity":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(body))
	rec := httptest.NewRecorder()
	AdminCreateProduct(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
}
