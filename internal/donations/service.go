package donations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartduel/chartduel-backend/internal/charts"
	"github.com/chartduel/chartduel-backend/internal/ledger"
	"github.com/chartduel/chartduel-backend/internal/users"
	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
	pkgerrors "github.com/chartduel/chartduel-backend/pkg/errors"
	"github.com/chartduel/chartduel-backend/pkg/logger"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier persists a notification and attempts realtime delivery.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, notifType enums.NotificationType, title, message string) (*models.Notification, error)
}

// DonateInput carries a donation request.
type DonateInput struct {
	RecipientID uuid.UUID  `json:"recipient_id" validate:"required"`
	ChartID     *uuid.UUID `json:"chart_id,omitempty"`
	Amount      int64      `json:"amount" validate:"required,gt=0"`
	Message     *string    `json:"message,omitempty" validate:"omitempty,max=280"`
}

// ShoutInput carries a shoutout request.
type ShoutInput struct {
	RecipientID uuid.UUID  `json:"recipient_id" validate:"required"`
	ChartID     *uuid.UUID `json:"chart_id,omitempty"`
	Message     string     `json:"message" validate:"required,max=280"`
}

// Config bounds donation and shoutout behavior.
type Config struct {
	MinAmount      int64
	MaxShoutout    int
	ReputationBump float64
	ReputationCap  float64
}

// Service moves credits between users and records the endorsement surface.
type Service interface {
	Donate(ctx context.Context, donorID uuid.UUID, input DonateInput) (*models.Donation, error)
	Shout(ctx context.Context, senderID uuid.UUID, input ShoutInput) (*models.Shoutout, error)
}

type service struct {
	tx       TxRunner
	repo     Repository
	users    users.Repository
	ledger   ledger.Service
	charts   charts.Repository
	notifier Notifier
	logg     *logger.Logger
	cfg      Config
}

// NewService wires the donations service.
func NewService(tx TxRunner, repo Repository, usersRepo users.Repository, ledgerSvc ledger.Service, chartsRepo charts.Repository, notifier Notifier, logg *logger.Logger, cfg Config) (Service, error) {
	if tx == nil || repo == nil || usersRepo == nil || ledgerSvc == nil || chartsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "donations service dependencies missing")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if cfg.MinAmount <= 0 {
		cfg.MinAmount = 1
	}
	if cfg.MaxShoutout <= 0 {
		cfg.MaxShoutout = 280
	}
	if cfg.ReputationBump <= 0 {
		cfg.ReputationBump = 0.25
	}
	if cfg.ReputationCap <= 0 {
		cfg.ReputationCap = 100
	}
	return &service{
		tx:       tx,
		repo:     repo,
		users:    usersRepo,
		ledger:   ledgerSvc,
		charts:   chartsRepo,
		notifier: notifier,
		logg:     logg,
		cfg:      cfg,
	}, nil
}

// Donate transfers credits donor -> recipient in one transaction: a
// conditional debit that fails closed on insufficient balance, the matching
// credit, the donation row and its two ledger entries. Nothing mutates when
// the debit claims zero rows.
func (s *service) Donate(ctx context.Context, donorID uuid.UUID, input DonateInput) (*models.Donation, error) {
	if donorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "donor id required")
	}
	if input.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if donorID == input.RecipientID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot donate to yourself")
	}
	if input.Amount < s.cfg.MinAmount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount below minimum").
			WithDetails(map[string]any{"min_amount": s.cfg.MinAmount})
	}

	donation := &models.Donation{
		ID:          uuid.New(),
		DonorID:     donorID,
		RecipientID: input.RecipientID,
		ChartID:     input.ChartID,
		Amount:      input.Amount,
		Message:     input.Message,
		Status:      enums.DonationStatusCompleted,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		usersRepo := s.users.WithTx(tx)
		ledgerSvc := s.ledger.WithTx(tx)

		donorBalance, ok, err := usersRepo.DebitIfSufficient(ctx, donorID, input.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit donor")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance does not cover the donation").
				WithDetails(map[string]any{"amount": input.Amount})
		}

		recipientBalance, err := usersRepo.Credit(ctx, input.RecipientID, input.Amount)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "recipient not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit recipient")
		}

		if err := s.repo.WithTx(tx).CreateDonation(ctx, donation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create donation")
		}

		if _, err := ledgerSvc.Record(ctx, ledger.RecordTransactionInput{
			UserID:      donorID,
			Type:        enums.TransactionTypeDonationSent,
			Amount:      -input.Amount,
			Balance:     donorBalance,
			ReferenceID: &donation.ID,
			Description: "donation sent",
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record donor entry")
		}
		if _, err := ledgerSvc.Record(ctx, ledger.RecordTransactionInput{
			UserID:      input.RecipientID,
			Type:        enums.TransactionTypeDonationReceived,
			Amount:      input.Amount,
			Balance:     recipientBalance,
			ReferenceID: &donation.ID,
			Description: "donation received",
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record recipient entry")
		}

		if input.ChartID != nil {
			if err := s.charts.WithTx(tx).AddDonationTotal(ctx, *input.ChartID, input.Amount); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump chart donations")
			}
		}
		if err := usersRepo.AddDonationReceived(ctx, input.RecipientID, input.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump recipient counter")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, input.RecipientID, enums.NotificationTypeDonationReceived,
			"You received a donation",
			fmt.Sprintf("%d credits were donated to you.", input.Amount)); err != nil {
			s.logg.Error(s.logg.WithUserID(ctx, input.RecipientID.String()), "donation notification failed", err)
		}
	}
	return donation, nil
}

// Shout persists the endorsement, nudges the recipient's reputation and
// notifies them. No status is tracked; a persisted shoutout is done.
func (s *service) Shout(ctx context.Context, senderID uuid.UUID, input ShoutInput) (*models.Shoutout, error) {
	if senderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender id required")
	}
	if input.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message required")
	}
	if runes := []rune(message); len(runes) > s.cfg.MaxShoutout {
		message = string(runes[:s.cfg.MaxShoutout])
	}

	shoutout := &models.Shoutout{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: input.RecipientID,
		ChartID:     input.ChartID,
		Message:     message,
	}
	if err := s.repo.CreateShoutout(ctx, shoutout); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shoutout")
	}

	if err := s.users.AddReputationCapped(ctx, input.RecipientID, s.cfg.ReputationBump, s.cfg.ReputationCap); err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, input.RecipientID.String()), "reputation bump failed", err)
	}
	if s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, input.RecipientID, enums.NotificationTypeShoutoutReceived,
			"You got a shoutout", message); err != nil {
			s.logg.Error(s.logg.WithUserID(ctx, input.RecipientID.String()), "shoutout notification failed", err)
		}
	}
	return shoutout, nil
}
