package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims carried by identity tokens. It embeds the
// standard claims plus the user fields every handler needs without a
// database round-trip.
type Payload struct {
	jwt.StandardClaims

	// ID is the account UUID of the token holder.
	ID string `json:"id"`

	// Username is the unique login name.
	Username string `json:"username"`

	// FullName is the display name.
	FullName string `json:"fullName"`
}
