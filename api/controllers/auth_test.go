package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/shopzen/shopzen-backend/api/middleware"
	"github.com/shopzen/shopzen-backend/internal/auth"
	"github.com/shopzen/shopzen-backend/internal/users"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
)

type stubAuthService struct {
	loginFn   func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
	refreshFn func(ctx context.Context, accessToken, refreshToken string) (*auth.TokenPair, error)
	logoutFn  func(ctx context.Context, accessToken string) error
	meFn      func(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
}

func (s stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, req)
	}
	return &auth.LoginResponse{AccessToken: "access"}, nil
}

func (s stubAuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.TokenPair, error) {
	if s.refreshFn != nil {
		return s.refreshFn(ctx, accessToken, refreshToken)
	}
	return &auth.TokenPair{}, nil
}

func (s stubAuthService) Logout(ctx context.Context, accessToken string) error {
	if s.logoutFn != nil {
		return s.logoutFn(ctx, accessToken)
	}
	return nil
}

func (s stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	if s.meFn != nil {
		return s.meFn(ctx, userID)
	}
	return &users.UserDTO{ID: userID}, nil
}

type stubRegisterService struct {
	registerFn func(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error)
}

func (s stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, req)
	}
	return &users.UserDTO{Email: req.Email}, nil
}

func TestAuthLoginSetsTokenHeader(t *testing.T) {
	svc := stubAuthService{
		loginFn: func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
			if req.Email != "asha@example.com" {
				t.Fatalf("unexpected email %q", req.Email)
			}
			return &auth.LoginResponse{AccessToken: "tok", RefreshToken: "ref"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"asha@example.com","password":"secret123"}`))
	rec := httptest.NewRecorder()
	AuthLogin(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(tokenHeader) != "tok" {
		t.Fatalf("expected token header, got %q", rec.Header().Get(tokenHeader))
	}
}

func TestAuthLoginValidatesBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"not-an-email"}`))
	rec := httptest.NewRecorder()
	AuthLogin(stubAuthService{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAuthRegisterCreatesThenLogsIn(t *testing.T) {
	registered := false
	reg := stubRegisterService{
		registerFn: func(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
			registered = true
			return &users.UserDTO{Email: req.Email}, nil
		},
	}
	svc := stubAuthService{
		loginFn: func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
			if !registered {
				t.Fatal("login before register")
			}
			return &auth.LoginResponse{AccessToken: "tok", User: &users.UserDTO{Email: req.Email}}, nil
		},
	}

	body := `{"email":"asha@example.com","password":"longenough","name":"Asha"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	AuthRegister(reg, svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestAuthRegisterConflict(t *testing.T) {
	reg := stubRegisterService{
		registerFn: func(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		},
	}
	body := `{"email":"asha@example.com","password":"longenough","name":"Asha"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	AuthRegister(reg, stubAuthService{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
}

func TestAuthRefreshRequiresBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refreshToken":"r"}`))
	rec := httptest.NewRecorder()
	AuthRefresh(stubAuthService{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthRefreshPassesTokens(t *testing.T) {
	svc := stubAuthService{
		refreshFn: func(ctx context.Context, accessToken, refreshToken string) (*auth.TokenPair, error) {
			if accessToken != "old" || refreshToken != "r" {
				t.Fatalf("unexpected tokens %q %q", accessToken, refreshToken)
			}
			return &auth.TokenPair{AccessToken: "new", RefreshToken: "r2"}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refreshToken":"r"}`))
	req.Header.Set("Authorization", "Bearer old")
	rec := httptest.NewRecorder()
	AuthRefresh(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data auth.TokenPair `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.RefreshToken != "r2" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestAuthLogout(t *testing.T) {
	revoked := ""
	svc := stubAuthService{
		logoutFn: func(ctx context.Context, accessToken string) error {
			revoked = accessToken
			return nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	AuthLogout(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || revoked != "abc" {
		t.Fatalf("expected logout of abc, code=%d revoked=%q", rec.Code, revoked)
	}
}

func TestAuthMe(t *testing.T) {
	userID := uuid.New()

	rec := httptest.NewRecorder()
	AuthMe(stubAuthService{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without caller, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), userID.String(), enums.UserRoleUser))
	rec = httptest.NewRecorder()
	AuthMe(stubAuthService{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}
