package models

import (
	"time"

	"spendsnap/internal/domain"
)

// User represents the user model in the database
type User struct {
	Base
	Name                string     `gorm:"not null" json:"name"`
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	Password            string     `gorm:"not null" json:"-"`
	IsActive            bool       `gorm:"default:true" json:"-"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"lastLoginAt,omitempty"`
	Expenses            []Expense  `gorm:"foreignKey:UserID" json:"-"`
}

// ToDomain returns the public view of the user.
func (u *User) ToDomain() domain.User {
	return domain.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
