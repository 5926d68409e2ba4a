package models

import (
	"time"
)

// Role defines which side of the marketplace a user acts on.
type Role string

const (
	RoleShipper Role = "embarcador"
	RoleCarrier Role = "transportador"
	RoleAdmin   Role = "admin"
)

// User represents a platform account. Registration and KYC approval happen
// outside this service; accounts arrive here already vetted.
type User struct {
	Base            `bson:",inline"`
	Name            string    `bson:"name" json:"name"`
	Email           string    `bson:"email" json:"email"`
	PasswordHash    string    `bson:"password" json:"-"` // Store hash, not plaintext
	Role            Role      `bson:"role" json:"role"`
	CompanyDocument string    `bson:"company_document,omitempty" json:"company_document,omitempty"` // CNPJ
	Suspended       bool      `bson:"suspended" json:"suspended"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
	Deleted         bool      `bson:"deleted" json:"-"` // Soft delete flag
}
