package arenas

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
)

// Repository exposes arena persistence. Mutations that race (spectator joins,
// the finished transition) are single conditional statements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, arena *models.Arena) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Arena, error)
	FindByChartID(ctx context.Context, chartID uuid.UUID) (*models.Arena, error)
	AddSpectator(ctx context.Context, arenaID, userID uuid.UUID) (bool, error)
	RemoveSpectator(ctx context.Context, arenaID, userID uuid.UUID) (bool, error)
	SpectatorIDs(ctx context.Context, arenaID uuid.UUID) ([]uuid.UUID, error)
	AudienceIDs(ctx context.Context, arenaID uuid.UUID) ([]uuid.UUID, error)
	UpdatePlayerScore(ctx context.Context, arenaID, playerID uuid.UUID, score int64, moves int) (bool, error)
	AppendChat(ctx context.Context, msg *models.ArenaChatMessage) error
	RecentChat(ctx context.Context, arenaID uuid.UUID, limit int) ([]models.ArenaChatMessage, error)
	MarkFinished(ctx context.Context, arenaID, winnerID uuid.UUID, prize int64, now time.Time) (bool, error)
	ChartWinScore(ctx context.Context, chartID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an arena repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, arena *models.Arena) error {
	return r.db.WithContext(ctx).Create(arena).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Arena, error) {
	var arena models.Arena
	if err := r.db.WithContext(ctx).
		Preload("Players").
		First(&arena, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &arena, nil
}

func (r *repository) FindByChartID(ctx context.Context, chartID uuid.UUID) (*models.Arena, error) {
	var arena models.Arena
	if err := r.db.WithContext(ctx).
		Preload("Players").
		First(&arena, "chart_id = ?", chartID).Error; err != nil {
		return nil, err
	}
	return &arena, nil
}

// AddSpectator inserts the watch row; a duplicate join is a no-op and reports
// false.
func (r *repository) AddSpectator(ctx context.Context, arenaID, userID uuid.UUID) (bool, error) {
	spectator := &models.ArenaSpectator{
		ID:      uuid.New(),
		ArenaID: arenaID,
		UserID:  userID,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "arena_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(spectator)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) RemoveSpectator(ctx context.Context, arenaID, userID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("arena_id = ? AND user_id = ?", arenaID, userID).
		Delete(&models.ArenaSpectator{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SpectatorIDs(ctx context.Context, arenaID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.ArenaSpectator{}).
		Where("arena_id = ?", arenaID).
		Order("joined_at ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// AudienceIDs returns players plus spectators, deduplicated.
func (r *repository) AudienceIDs(ctx context.Context, arenaID uuid.UUID) ([]uuid.UUID, error) {
	var playerIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.ArenaPlayer{}).
		Where("arena_id = ?", arenaID).
		Pluck("user_id", &playerIDs).Error; err != nil {
		return nil, err
	}
	spectatorIDs, err := r.SpectatorIDs(ctx, arenaID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(playerIDs)+len(spectatorIDs))
	audience := make([]uuid.UUID, 0, len(playerIDs)+len(spectatorIDs))
	for _, id := range append(playerIDs, spectatorIDs...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		audience = append(audience, id)
	}
	return audience, nil
}

// UpdatePlayerScore persists a score report; false means the player is not
// listed in the arena.
func (r *repository) UpdatePlayerScore(ctx context.Context, arenaID, playerID uuid.UUID, score int64, moves int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ArenaPlayer{}).
		Where("arena_id = ? AND user_id = ?", arenaID, playerID).
		UpdateColumns(map[string]any{
			"score": score,
			"moves": moves,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AppendChat(ctx context.Context, msg *models.ArenaChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// RecentChat returns the last limit messages in chronological order.
func (r *repository) RecentChat(ctx context.Context, arenaID uuid.UUID, limit int) ([]models.ArenaChatMessage, error) {
	var messages []models.ArenaChatMessage
	query := r.db.WithContext(ctx).
		Where("arena_id = ?", arenaID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkFinished flips the arena to finished exactly once. The status guard is
// evaluated at write time; zero affected rows means a concurrent settlement
// already won.
func (r *repository) MarkFinished(ctx context.Context, arenaID, winnerID uuid.UUID, prize int64, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Arena{}).
		Where("id = ? AND status <> ?", arenaID, enums.ArenaStatusFinished).
		UpdateColumns(map[string]any{
			"status":    enums.ArenaStatusFinished,
			"winner_id": winnerID,
			"prize":     prize,
			"ended_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ChartWinScore(ctx context.Context, chartID uuid.UUID) (int64, error) {
	var winScore int64
	if err := r.db.WithContext(ctx).
		Model(&models.Chart{}).
		Where("id = ?", chartID).
		Pluck("win_score", &winScore).Error; err != nil {
		return 0, err
	}
	return winScore, nil
}
