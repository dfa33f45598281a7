package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shopzen/shopzen-backend/internal/users"
	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/db/dbtest"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/security"
)

func TestRegisterCreatesShopper(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.NewFromGorm(conn), PasswordConfig: config.PasswordConfig{}})
	require.NoError(t, err)

	dto, err := svc.Register(context.Background(), RegisterRequest{Email: "New@Example.com", Password: "long-enough", Name: "Neo"})
	require.NoError(t, err)
	require.Equal(t, "new@example.com", dto.Email)
	require.Equal(t, enums.UserRoleUser, dto.Role)

	stored, err := users.NewRepository(conn).FindByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	ok, err := security.VerifyPassword("long-enough", stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.NewFromGorm(conn)})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{Email: "dup@example.com", Password: "long-enough", Name: "A"})
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), RegisterRequest{Email: "DUP@example.com", Password: "long-enough", Name: "B"})
	require.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	require.Equal(t, ReasonUserExists, pkgerrors.Reason(err))
}

func TestRegisterRequiresName(t *testing.T) {
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.NewFromGorm(dbtest.Open(t))})
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), RegisterRequest{Email: "x@example.com", Password: "long-enough", Name: "  "})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestAdminRegisterCreatesAdmin(t *testing.T) {
	svc, err := NewAdminRegisterService(RegisterServiceParams{DB: db.NewFromGorm(dbtest.Open(t))})
	require.NoError(t, err)
	dto, err := svc.Register(context.Background(), RegisterRequest{Email: "ops@example.com", Password: "long-enough", Name: "Ops"})
	require.NoError(t, err)
	require.Equal(t, enums.UserRoleAdmin, dto.Role)
}

func TestNewRegisterServiceRequiresDB(t *testing.T) {
	_, err := NewRegisterService(RegisterServiceParams{})
	require.Error(t, err)
	_, err = NewAdminRegisterService(RegisterServiceParams{})
	require.Error(t, err)
}
