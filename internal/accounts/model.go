package accounts

import "strings"

// Role is the coarse routing attribute attached to an account. It gates the
// administrative surface only; data access is always scoped by owner.
type Role string

const (
	// RoleAdmin unlocks the administrative routes.
	RoleAdmin Role = "admin"
	// RoleUser is the default for every account after the first.
	RoleUser Role = "user"
)

// Account captures a registered identity and its credential hash.
type Account struct {
	AccountID        string `gorm:"column:account_id;primaryKey;size:190;not null" json:"account_id"`
	Email            string `gorm:"column:email;size:320;not null;uniqueIndex:idx_accounts_email" json:"email"`
	PasswordHash     string `gorm:"column:password_hash;size:190;not null" json:"password_hash"`
	Role             Role   `gorm:"column:role;size:32;not null;default:'user'" json:"role"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"created_at_s"`
}

// TableName exposes the table backing accounts.
func (Account) TableName() string {
	return "accounts"
}

// normalizeEmail canonicalizes an email address for storage and lookup.
func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
