package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/internal/users"
	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/security"
)

// RegisterService creates shopper accounts.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             db.TxRunner
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          db.TxRunner
	passwordCfg config.PasswordConfig
	role        enums.UserRole
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
		role:        enums.UserRoleUser,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	account := users.CreateUserDTO{
		Email: users.NormalizeEmail(req.Email),
		Name:  strings.TrimSpace(req.Name),
		Phone: req.Phone,
		Role:  s.role,
	}
	switch {
	case account.Email == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	case account.Name == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	account.PasswordHash = hash

	var created *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)
		_, lookupErr := repo.FindByEmail(ctx, account.Email)
		switch {
		case lookupErr == nil:
			return userExists()
		case !errors.Is(lookupErr, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeInternal, lookupErr, "check user email")
		}

		var createErr error
		created, createErr = repo.Create(ctx, account)
		if db.IsUniqueViolation(createErr, "") {
			return userExists()
		}
		if createErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, createErr, "create user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users.FromModel(created), nil
}

func userExists() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "email already registered").WithReason(ReasonUserExists)
}
