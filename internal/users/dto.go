package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
)

// UserDTO is the account as returned by /auth endpoints; the password hash
// never leaves the repository.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Phone       *string        `json:"phone,omitempty"`
	Role        enums.UserRole `json:"role"`
	LastLoginAt *time.Time     `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// CreateUserDTO is a new account. Email is normalised and an unknown role
// becomes USER when converted to a model.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	Name         string
	Phone        *string
	Role         enums.UserRole
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	dto := UserDTO{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
	dto.Phone, dto.LastLoginAt = u.Phone, u.LastLoginAt
	dto.CreatedAt, dto.UpdatedAt = u.CreatedAt, u.UpdatedAt
	return &dto
}

func (c CreateUserDTO) ToModel() *models.User {
	u := &models.User{
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		Name:         strings.TrimSpace(c.Name),
		Phone:        c.Phone,
		Role:         enums.UserRoleUser,
	}
	if c.Role.IsValid() {
		u.Role = c.Role
	}
	return u
}

// NormalizeEmail is the stored form used for uniqueness and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
