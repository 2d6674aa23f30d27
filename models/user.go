package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           int64     `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	MidName      string    `db:"mid_name" json:"mid_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Gender       int       `db:"gender" json:"gender"`
	DateOfBirth  string    `db:"date_of_birth" json:"date_of_birth"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	Verified     bool      `db:"verified" json:"verified"`
	CardholderID *string   `db:"cardholder_id" json:"cardholder_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Identity is what a verified bearer token resolves to.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type RegisterInput struct {
	FirstName   string `json:"first_name"`
	MidName     string `json:"mid_name"`
	LastName    string `json:"last_name"`
	Gender      int    `json:"gender"`
	DateOfBirth string `json:"date_of_birth"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
