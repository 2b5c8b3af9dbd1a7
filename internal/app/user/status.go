package user

import "fmt"

// Status is a user's availability. It is a closed enum; any other value is
// rejected at the presence boundary and never stored.
type Status string

const (
	StatusOnline  Status = "online"
	StatusHidden  Status = "hidden"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// ParseStatus validates a raw status string against the enum.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid user status %q", raw)
	}
	return s, nil
}

// Valid reports whether the status is one of the four enumerated values.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusHidden, StatusBusy, StatusOffline:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
