/*
Package user defines the identity types shared by the REST layer and the
real-time chat core: the stored account record, the lightweight reference
embedded in conversations and events, and the availability status enum.
*/
package user

import "time"

// Ref is the immutable reference to a user that travels inside conversations
// and real-time events. The chat core never mutates it.
type Ref struct {
	// ID is the unique identifier of the user (UUID).
	ID string `json:"id"`

	// Username is the unique login name.
	Username string `json:"username"`

	// FullName is the display name shown in conversation headers.
	FullName string `json:"fullName"`
}

// User is the stored account record owned by the persistence layer.
type User struct {
	ID           string
	Username     string
	FullName     string
	PasswordHash string

	// Status is the stored default availability, used to seed the in-memory
	// presence entry on a user's first connection.
	Status Status

	// AvatarKey is the object storage key of the user's avatar, empty when
	// no avatar has been uploaded.
	AvatarKey string

	CreatedAt time.Time
}

// Ref returns the event-safe reference for this account.
func (u User) Ref() Ref {
	return Ref{ID: u.ID, Username: u.Username, FullName: u.FullName}
}
