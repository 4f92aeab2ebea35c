package arenas

import (
	"time"

	"github.com/google/uuid"

	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
)

// ArenaStateDTO is the full snapshot a joining spectator receives before any
// incremental events. Player and spectator entries carry resolved identities
// so clients can render them without a second lookup.
type ArenaStateDTO struct {
	ArenaID    uuid.UUID         `json:"arena_id"`
	ChartID    uuid.UUID         `json:"chart_id"`
	Status     enums.ArenaStatus `json:"status"`
	Round      int               `json:"round"`
	Players    []PlayerDTO       `json:"players"`
	Spectators []UserSummaryDTO  `json:"spectators"`
	Chat       []ChatMessageDTO  `json:"chat"`
	StartedAt  time.Time         `json:"started_at"`
}

// UserSummaryDTO is the public identity projection embedded in snapshots and
// spectator events.
type UserSummaryDTO struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
}

// PlayerDTO is a player's runtime line in the snapshot.
type PlayerDTO struct {
	UserID      uuid.UUID          `json:"user_id"`
	Username    string             `json:"username"`
	DisplayName string             `json:"display_name"`
	AvatarURL   *string            `json:"avatar_url,omitempty"`
	Score       int64              `json:"score"`
	Moves       int                `json:"moves"`
	Status      enums.PlayerStatus `json:"status"`
}

// ChatMessageDTO is one chat line as broadcast and as snapshotted.
type ChatMessageDTO struct {
	ID        uuid.UUID      `json:"id"`
	ArenaID   uuid.UUID      `json:"arena_id"`
	UserID    *uuid.UUID     `json:"user_id,omitempty"`
	Kind      enums.ChatKind `json:"kind"`
	Body      string         `json:"body"`
	CreatedAt time.Time      `json:"created_at"`
}

// SpectatorEventPayload announces a spectator joining or leaving, carrying the
// spectator's identity alongside the raw id.
type SpectatorEventPayload struct {
	ArenaID uuid.UUID      `json:"arena_id"`
	UserID  uuid.UUID      `json:"user_id"`
	User    UserSummaryDTO `json:"user"`
}

// ScoreUpdatePayload fans a persisted score report out to the audience.
type ScoreUpdatePayload struct {
	ArenaID  uuid.UUID `json:"arena_id"`
	PlayerID uuid.UUID `json:"player_id"`
	Score    int64     `json:"score"`
	Moves    int       `json:"moves"`
}

// ArenaCompletedPayload closes out an arena for its audience.
type ArenaCompletedPayload struct {
	ArenaID  uuid.UUID `json:"arena_id"`
	ChartID  uuid.UUID `json:"chart_id"`
	WinnerID uuid.UUID `json:"winner_id"`
	Prize    int64     `json:"prize"`
}

func chatDTO(msg *models.ArenaChatMessage) ChatMessageDTO {
	return ChatMessageDTO{
		ID:        msg.ID,
		ArenaID:   msg.ArenaID,
		UserID:    msg.UserID,
		Kind:      msg.Kind,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	}
}

// summaryFor resolves an identity from the lookup map, falling back to a bare
// id when the user row is missing.
func summaryFor(identities map[uuid.UUID]models.User, id uuid.UUID) UserSummaryDTO {
	if user, ok := identities[id]; ok {
		return UserSummaryDTO{
			UserID:      user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			AvatarURL:   user.AvatarURL,
		}
	}
	return UserSummaryDTO{UserID: id}
}

func stateDTO(arena *models.Arena, spectators []uuid.UUID, chat []models.ArenaChatMessage, identities map[uuid.UUID]models.User) *ArenaStateDTO {
	players := make([]PlayerDTO, 0, len(arena.Players))
	for _, p := range arena.Players {
		summary := summaryFor(identities, p.UserID)
		players = append(players, PlayerDTO{
			UserID:      p.UserID,
			Username:    summary.Username,
			DisplayName: summary.DisplayName,
			AvatarURL:   summary.AvatarURL,
			Score:       p.Score,
			Moves:       p.Moves,
			Status:      p.Status,
		})
	}
	spectatorDTOs := make([]UserSummaryDTO, 0, len(spectators))
	for _, id := range spectators {
		spectatorDTOs = append(spectatorDTOs, summaryFor(identities, id))
	}
	chatDTOs := make([]ChatMessageDTO, 0, len(chat))
	for i := range chat {
		chatDTOs = append(chatDTOs, chatDTO(&chat[i]))
	}
	return &ArenaStateDTO{
		ArenaID:    arena.ID,
		ChartID:    arena.ChartID,
		Status:     arena.Status,
		Round:      arena.Round,
		Players:    players,
		Spectators: spectatorDTOs,
		Chat:       chatDTOs,
		StartedAt:  arena.StartedAt,
	}
}
