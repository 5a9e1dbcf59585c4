// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// Google is the identity provider, so the primary key is the OpenID Connect
// subject ("sub") Google returns. It is stable across logins and never
// reassigned, which lets us use it directly instead of minting our own ID.
//
// A User is created on first successful login and never updated afterwards.
type User struct {
	ID        string    `json:"id"        db:"id"`    // identity-provider subject
	Name      string    `json:"name"      db:"name"`  // display name from the provider
	Email     string    `json:"email"     db:"email"` // unique across users
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
