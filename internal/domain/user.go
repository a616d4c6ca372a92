package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID            uuid.UUID       `json:"id"`
	Email         string          `json:"email"`
	PasswordHash  string          `json:"-"`
	Name          string          `json:"name"`
	Role          Role            `json:"role"`
	ReferralCode  string          `json:"referralCode"`
	ReferredByID  *uuid.UUID      `json:"referredById,omitempty"`
	CreditBalance decimal.Decimal `json:"creditBalance"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
