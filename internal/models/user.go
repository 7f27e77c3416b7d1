package models

import "time"

type UserStatus string

const (
	UserStatusPendingVerify UserStatus = "pending_verify"
	UserStatusActive        UserStatus = "active"
	UserStatusLocked        UserStatus = "locked"
	UserStatusSuspended     UserStatus = "suspended"
)

type User struct {
	ID              string
	Email           string
	DisplayName     string
	Status          UserStatus
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Provider string

const (
	ProviderCredential Provider = "credential"
	ProviderGoogle     Provider = "google"
	ProviderGitHub     Provider = "github"
)

// Account binds a user to one identity provider. (provider,
// provider_account_id) is unique across the table; a user has at most one
// credential account.
type Account struct {
	ID                string
	UserID            string
	Provider          Provider
	ProviderAccountID string
	PasswordHash      []byte // credential provider only
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
