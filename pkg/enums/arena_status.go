package enums

import "fmt"

// ArenaStatus tracks the live-match lifecycle:
// waiting -> live -> {paused} -> finished. Finished is terminal.
type ArenaStatus string

const (
	ArenaStatusWaiting  ArenaStatus = "waiting"
	ArenaStatusLive     ArenaStatus = "live"
	ArenaStatusPaused   ArenaStatus = "paused"
	ArenaStatusFinished ArenaStatus = "finished"
)

var validArenaStatuses = []ArenaStatus{
	ArenaStatusWaiting,
	ArenaStatusLive,
	ArenaStatusPaused,
	ArenaStatusFinished,
}

// IsValid checks whether the given status matches the canonical enum.
func (s ArenaStatus) IsValid() bool {
	for _, candidate := range validArenaStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseArenaStatus converts raw strings into ArenaStatus.
func ParseArenaStatus(value string) (ArenaStatus, error) {
	for _, candidate := range validArenaStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid arena status %q", value)
}

// PlayerStatus tracks a single player inside an arena.
type PlayerStatus string

const (
	PlayerStatusWaiting      PlayerStatus = "waiting"
	PlayerStatusPlaying      PlayerStatus = "playing"
	PlayerStatusFinished     PlayerStatus = "finished"
	PlayerStatusDisconnected PlayerStatus = "disconnected"
)

var validPlayerStatuses = []PlayerStatus{
	PlayerStatusWaiting,
	PlayerStatusPlaying,
	PlayerStatusFinished,
	PlayerStatusDisconnected,
}

// IsValid checks whether the given status matches the canonical enum.
func (s PlayerStatus) IsValid() bool {
	for _, candidate := range validPlayerStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ChatKind tags arena chat log entries.
type ChatKind string

const (
	ChatKindUser    ChatKind = "user"
	ChatKindSystem  ChatKind = "system"
	ChatKindAdvisor ChatKind = "advisor"
)

var validChatKinds = []ChatKind{
	ChatKindUser,
	ChatKindSystem,
	ChatKindAdvisor,
}

// IsValid checks whether the given kind matches the canonical enum.
func (k ChatKind) IsValid() bool {
	for _, candidate := range validChatKinds {
		if candidate == k {
			return true
		}
	}
	return false
}
