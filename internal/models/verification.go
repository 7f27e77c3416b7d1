package models

import "time"

type CodePurpose string

const (
	CodePurposeEmailVerify   CodePurpose = "email_verify"
	CodePurposePasswordReset CodePurpose = "password_reset"
)

// VerificationCode stores only the hash of an issued one-time code. A code
// is consumed at most once and is superseded by any newer code issued for
// the same user and purpose.
type VerificationCode struct {
	ID         string
	UserID     string
	Purpose    CodePurpose
	CodeHash   []byte
	Attempts   int
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}
