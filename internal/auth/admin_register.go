package auth

import (
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
)

// NewAdminRegisterService builds the dev-only registration flow that creates
// ADMIN accounts. Routes expose it only outside production.
func NewAdminRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
		role:        enums.UserRoleAdmin,
	}, nil
}
