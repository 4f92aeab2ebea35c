package donations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartduel/chartduel-backend/pkg/db/models"
)

// Repository persists donations and shoutouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateDonation(ctx context.Context, donation *models.Donation) error
	FindDonationByID(ctx context.Context, id uuid.UUID) (*models.Donation, error)
	ListDonationsByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]models.Donation, error)
	CreateShoutout(ctx context.Context, shoutout *models.Shoutout) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a donations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateDonation(ctx context.Context, donation *models.Donation) error {
	return r.db.WithContext(ctx).Create(donation).Error
}

func (r *repository) FindDonationByID(ctx context.Context, id uuid.UUID) (*models.Donation, error) {
	var donation models.Donation
	if err := r.db.WithContext(ctx).First(&donation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &donation, nil
}

func (r *repository) ListDonationsByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]models.Donation, error) {
	query := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var donations []models.Donation
	if err := query.Find(&donations).Error; err != nil {
		return nil, err
	}
	return donations, nil
}

func (r *repository) CreateShoutout(ctx context.Context, shoutout *models.Shoutout) error {
	return r.db.WithContext(ctx).Create(shoutout).Error
}
