package entity

// User is a row of the users table. Name is the identity key; PasswordHash
// holds an encoded digest produced by a user.PasswordHasher, never plaintext.
type User struct {
	Name         string `db:"name" json:"name"`
	PasswordHash string `db:"password_hash" json:"-"`
}
