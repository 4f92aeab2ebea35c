package users

import (
	"context"

	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes user-related persistence operations. Balance mutations
// are conditional updates so concurrent debits can never drive a balance
// negative.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dto CreateUserDTO) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	DebitIfSufficient(ctx context.Context, id uuid.UUID, amount int64) (int64, bool, error)
	Credit(ctx context.Context, id uuid.UUID, amount int64) (int64, error)
	RecordChartJoined(ctx context.Context, id uuid.UUID) error
	RecordChartWon(ctx context.Context, id uuid.UUID, prize int64) error
	AddDonationReceived(ctx context.Context, id uuid.UUID, amount int64) error
	AddReputationCapped(ctx context.Context, id uuid.UUID, delta, cap float64) error
	SetStatus(ctx context.Context, id uuid.UUID, status enums.UserStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts a new user and returns the persisted model.
func (r *repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID loads a user by their UUID.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs loads the users matching the provided ids. Missing ids are simply
// absent from the result.
func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// FindByUsername retrieves the user matching the provided username.
func (r *repository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// DebitIfSufficient subtracts amount from the user's balance only when the
// current balance covers it. Returns the post-debit balance and whether the
// debit was applied.
func (r *repository) DebitIfSufficient(ctx context.Context, id uuid.UUID, amount int64) (int64, bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND balance >= ?", id, amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}
	balance, err := r.readBalance(ctx, id)
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

// Credit adds amount to the user's balance and returns the new balance.
func (r *repository) Credit(ctx context.Context, id uuid.UUID, amount int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return r.readBalance(ctx, id)
}

// RecordChartJoined bumps the charts_played counter.
func (r *repository) RecordChartJoined(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("charts_played", gorm.Expr("charts_played + 1")).Error
}

// RecordChartWon bumps the win counter and the lifetime earnings total.
func (r *repository) RecordChartWon(ctx context.Context, id uuid.UUID, prize int64) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"charts_won":   gorm.Expr("charts_won + 1"),
			"total_earned": gorm.Expr("total_earned + ?", prize),
		}).Error
}

// AddDonationReceived bumps the lifetime donations-received total.
func (r *repository) AddDonationReceived(ctx context.Context, id uuid.UUID, amount int64) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("total_donations_received", gorm.Expr("total_donations_received + ?", amount)).Error
}

// AddReputationCapped bumps reputation by delta without crossing cap. Two
// conditional statements keep the expression portable across dialects.
func (r *repository) AddReputationCapped(ctx context.Context, id uuid.UUID, delta, cap float64) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND reputation + ? <= ?", id, delta, cap).
		UpdateColumn("reputation", gorm.Expr("reputation + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND reputation < ?", id, cap).
		UpdateColumn("reputation", cap).Error
}

// SetStatus overwrites the user's presence status.
func (r *repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.UserStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("status", status).Error
}

func (r *repository) readBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	var balance int64
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Pluck("balance", &balance).Error; err != nil {
		return 0, err
	}
	return balance, nil
}
