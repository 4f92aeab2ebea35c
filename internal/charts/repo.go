package charts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
)

// Repository exposes chart persistence. The slot claim and the lifecycle
// transitions are single conditional statements so concurrent joins and
// repeated settlements resolve at write time.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, chart *models.Chart) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Chart, error)
	ClaimSlot(ctx context.Context, chartID uuid.UUID) (bool, error)
	AddParticipant(ctx context.Context, participant *models.ChartParticipant) error
	ParticipantIDs(ctx context.Context, chartID uuid.UUID) ([]uuid.UUID, error)
	MarkInProgress(ctx context.Context, chartID uuid.UUID, now time.Time) (bool, error)
	MarkCompleted(ctx context.Context, chartID, winnerID uuid.UUID, now time.Time) (bool, error)
	AddDonationTotal(ctx context.Context, chartID uuid.UUID, amount int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a chart repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, chart *models.Chart) error {
	return r.db.WithContext(ctx).Create(chart).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Chart, error) {
	var chart models.Chart
	if err := r.db.WithContext(ctx).
		Preload("Participants").
		First(&chart, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &chart, nil
}

// ClaimSlot bumps the participant count only while the chart is open and has
// room. Zero affected rows means the chart is full, already started, or does
// not exist; the caller distinguishes by reloading.
func (r *repository) ClaimSlot(ctx context.Context, chartID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Chart{}).
		Where("id = ? AND status = ? AND participant_count < max_participants", chartID, enums.ChartStatusOpen).
		UpdateColumns(map[string]any{
			"participant_count": gorm.Expr("participant_count + 1"),
			"prize_pool":        gorm.Expr("prize_pool + entry_fee"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AddParticipant(ctx context.Context, participant *models.ChartParticipant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

func (r *repository) ParticipantIDs(ctx context.Context, chartID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.ChartParticipant{}).
		Where("chart_id = ?", chartID).
		Order("joined_at ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkInProgress flips an open chart to in_progress when its slots filled.
func (r *repository) MarkInProgress(ctx context.Context, chartID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Chart{}).
		Where("id = ? AND status = ?", chartID, enums.ChartStatusOpen).
		UpdateColumns(map[string]any{
			"status":     enums.ChartStatusInProgress,
			"started_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkCompleted records the winner exactly once.
func (r *repository) MarkCompleted(ctx context.Context, chartID, winnerID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Chart{}).
		Where("id = ? AND status <> ?", chartID, enums.ChartStatusCompleted).
		UpdateColumns(map[string]any{
			"status":    enums.ChartStatusCompleted,
			"winner_id": winnerID,
			"ended_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AddDonationTotal(ctx context.Context, chartID uuid.UUID, amount int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Chart{}).
		Where("id = ?", chartID).
		UpdateColumn("total_donations", gorm.Expr("total_donations + ?", amount)).Error
}
