package domain

import (
	"strings"
	"time"
)

// User represents a registered account.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	IsVerified   bool       `json:"isVerified"`
	Role         string     `json:"role"`
	LastLogin    *time.Time `json:"lastLogin"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	// pendingPassword holds a plaintext set in this write until the store hashes it.
	pendingPassword string
}

// NewUser builds an unverified user with normalized name and email and a
// pending plaintext password. The store assigns id and timestamps.
func NewUser(name, email, password string) *User {
	u := &User{
		Name:  NormalizeName(name),
		Email: NormalizeEmail(email),
		Role:  RoleUser,
	}
	u.SetPassword(password)
	return u
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName trims and lowercases a display name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SetPassword marks plaintext as the new password. It is hashed on the next
// Create or Save.
func (u *User) SetPassword(plaintext string) {
	u.pendingPassword = plaintext
}

// PasswordModified reports whether a new password awaits hashing.
func (u *User) PasswordModified() bool {
	return u.pendingPassword != ""
}

// PendingPassword returns the plaintext awaiting hashing.
func (u *User) PendingPassword() string {
	return u.pendingPassword
}

// ApplyPasswordHash stores hash and clears the pending plaintext.
func (u *User) ApplyPasswordHash(hash string) {
	u.PasswordHash = hash
	u.pendingPassword = ""
}

// MarkVerified flips the verification flag. It reports false when the user
// was already verified.
func (u *User) MarkVerified() bool {
	if u.IsVerified {
		return false
	}
	u.IsVerified = true
	return true
}

// RecordLogin sets the last login time.
func (u *User) RecordLogin(at time.Time) {
	at = at.UTC()
	u.LastLogin = &at
}

// Summary is the user projection returned by register and login.
type Summary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Summary returns the short projection of u.
func (u *User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Profile is the full user projection without the password.
type Profile struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	IsVerified bool       `json:"isVerified"`
	Role       string     `json:"role"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Profile returns the full projection of u.
func (u *User) Profile() Profile {
	return Profile{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		IsVerified: u.IsVerified,
		Role:       u.Role,
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
