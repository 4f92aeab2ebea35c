package enums

import "fmt"

// UserStatus reflects a user's realtime presence.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
	UserStatusInGame  UserStatus = "in_game"
	UserStatusAway    UserStatus = "away"
)

var validUserStatuses = []UserStatus{
	UserStatusOnline,
	UserStatusOffline,
	UserStatusInGame,
	UserStatusAway,
}

// IsValid checks whether the given status matches the canonical enum.
func (s UserStatus) IsValid() bool {
	for _, candidate := range validUserStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseUserStatus converts raw strings into UserStatus.
func ParseUserStatus(value string) (UserStatus, error) {
	for _, candidate := range validUserStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user status %q", value)
}
