package entity

import "time"

// LoginToken is a persisted bearer token owned by one user.
type LoginToken struct {
	Token    string    `db:"token" json:"token"`
	User     string    `db:"user_name" json:"user"`
	ExpireAt time.Time `db:"expire_at" json:"expire_at"`
}

// Expired reports whether the token is no longer valid at now.
func (t *LoginToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpireAt)
}
