package ledger

import (
	"context"
	"fmt"

	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service defines operations that record and read ledger transactions.
type Service interface {
	Record(ctx context.Context, input RecordTransactionInput) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)
	WithTx(tx *gorm.DB) Service
}

type service struct {
	repo Repository
}

// RecordTransactionInput captures the immutable data a ledger entry requires.
// Amount is signed: debits are negative, credits positive. Balance is the
// user's balance immediately after the operation was applied.
type RecordTransactionInput struct {
	UserID      uuid.UUID             `json:"user_id"`
	Type        enums.TransactionType `json:"type"`
	Amount      int64                 `json:"amount"`
	Balance     int64                 `json:"balance"`
	ReferenceID *uuid.UUID            `json:"reference_id"`
	Description string                `json:"description"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Record(ctx context.Context, input RecordTransactionInput) (*models.Transaction, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid transaction type %q", input.Type)
	}
	if input.Amount == 0 {
		return nil, fmt.Errorf("amount must be non-zero")
	}
	if err := checkSign(input.Type, input.Amount); err != nil {
		return nil, err
	}
	if input.Balance < 0 {
		return nil, fmt.Errorf("balance snapshot cannot be negative")
	}
	if input.Description == "" {
		return nil, fmt.Errorf("description is required")
	}

	txn := &models.Transaction{
		UserID:      input.UserID,
		Type:        input.Type,
		Amount:      input.Amount,
		Balance:     input.Balance,
		ReferenceID: input.ReferenceID,
		Description: input.Description,
	}
	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// checkSign enforces the debit/credit convention per transaction type so a
// user's balance can be replayed from the ledger alone.
func checkSign(t enums.TransactionType, amount int64) error {
	switch t {
	case enums.TransactionTypeChartEntry, enums.TransactionTypeDonationSent:
		if amount > 0 {
			return fmt.Errorf("%s entries must be debits", t)
		}
	case enums.TransactionTypePrizePayout, enums.TransactionTypeDonationReceived, enums.TransactionTypeRefund:
		if amount < 0 {
			return fmt.Errorf("%s entries must be credits", t)
		}
	}
	return nil
}
