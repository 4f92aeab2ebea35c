package charts

import (
	"time"

	"github.com/google/uuid"

	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
)

// ChartDTO is the transport shape for a chart.
type ChartDTO struct {
	ID               uuid.UUID         `json:"id"`
	CreatorID        uuid.UUID         `json:"creator_id"`
	Title            string            `json:"title"`
	Description      *string           `json:"description,omitempty"`
	EntryFee         int64             `json:"entry_fee"`
	PrizePool        int64             `json:"prize_pool"`
	ParticipantCount int               `json:"participant_count"`
	MaxParticipants  int               `json:"max_participants"`
	MinParticipants  int               `json:"min_participants"`
	WinScore         int64             `json:"win_score"`
	Status           enums.ChartStatus `json:"status"`
	WinnerID         *uuid.UUID        `json:"winner_id,omitempty"`
	TotalDonations   int64             `json:"total_donations"`
	Participants     []uuid.UUID       `json:"participants"`
	ScheduledAt      *time.Time        `json:"scheduled_at,omitempty"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	EndedAt          *time.Time        `json:"ended_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// CreateChartInput carries the boundary-validated fields for a new chart.
type CreateChartInput struct {
	Title           string     `json:"title" validate:"required,min=3,max=120"`
	Description     *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	EntryFee        int64      `json:"entry_fee" validate:"gte=0"`
	MaxParticipants int        `json:"max_participants" validate:"required,gte=2"`
	MinParticipants int        `json:"min_participants" validate:"omitempty,gte=2"`
	WinScore        int64      `json:"win_score" validate:"omitempty,gt=0"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
}

// JoinResult reports the post-join chart and, when the join filled the last
// slot, the arena that was created in the same transaction.
type JoinResult struct {
	Chart   *ChartDTO  `json:"chart"`
	ArenaID *uuid.UUID `json:"arena_id,omitempty"`
}

func FromModel(c *models.Chart) *ChartDTO {
	if c == nil {
		return nil
	}
	participants := make([]uuid.UUID, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, p.UserID)
	}
	return &ChartDTO{
		ID:               c.ID,
		CreatorID:        c.CreatorID,
		Title:            c.Title,
		Description:      c.Description,
		EntryFee:         c.EntryFee,
		PrizePool:        c.PrizePool,
		ParticipantCount: c.ParticipantCount,
		MaxParticipants:  c.MaxParticipants,
		MinParticipants:  c.MinParticipants,
		WinScore:         c.WinScore,
		Status:           c.Status,
		WinnerID:         c.WinnerID,
		TotalDonations:   c.TotalDonations,
		Participants:     participants,
		ScheduledAt:      c.ScheduledAt,
		StartedAt:        c.StartedAt,
		EndedAt:          c.EndedAt,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}
