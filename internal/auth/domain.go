package auth

import "time"

// User represents an application account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}
