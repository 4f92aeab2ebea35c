package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeRepository struct {
	createFn func(ctx context.Context, txn *models.Transaction) error
	listFn   func(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, txn *models.Transaction) error {
	if f.createFn != nil {
		return f.createFn(ctx, txn)
	}
	return nil
}

func (f *fakeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID, limit)
	}
	return nil, nil
}

func (f *fakeRepository) ListByReference(ctx context.Context, referenceID uuid.UUID) ([]models.Transaction, error) {
	return nil, nil
}

func TestService_Record(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	chartID := uuid.New()
	input := RecordTransactionInput{
		UserID:      uuid.New(),
		Type:        enums.TransactionTypeChartEntry,
		Amount:      -500,
		Balance:     1500,
		ReferenceID: &chartID,
		Description: "entry fee for chart duel",
	}

	var created *models.Transaction
	repo.createFn = func(ctx context.Context, txn *models.Transaction) error {
		created = txn
		return nil
	}

	got, err := svc.Record(context.Background(), input)
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if created == nil {
		t.Fatal("expected transaction to be created")
	}
	if created.UserID != input.UserID || created.Type != input.Type || created.Amount != input.Amount {
		t.Fatalf("unexpected transaction data: %+v", created)
	}
	if created.Balance != 1500 {
		t.Fatalf("balance snapshot not carried: %+v", created)
	}
	if created.ReferenceID == nil || *created.ReferenceID != chartID {
		t.Fatalf("reference id not carried: %+v", created)
	}
	if got != created {
		t.Fatalf("service should return created transaction")
	}
}

func TestService_RecordValidation(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name  string
		input RecordTransactionInput
	}{
		{
			name: "missing user id",
			input: RecordTransactionInput{
				Type:        enums.TransactionTypePrizePayout,
				Amount:      100,
				Balance:     100,
				Description: "prize",
			},
		},
		{
			name: "invalid type",
			input: RecordTransactionInput{
				UserID:      uuid.New(),
				Type:        enums.TransactionType("not_real"),
				Amount:      100,
				Balance:     100,
				Description: "prize",
			},
		},
		{
			name: "zero amount",
			input: RecordTransactionInput{
				UserID:      uuid.New(),
				Type:        enums.TransactionTypePrizePayout,
				Amount:      0,
				Balance:     100,
				Description: "prize",
			},
		},
		{
			name: "debit type with credit amount",
			input: RecordTransactionInput{
				UserID:      uuid.New(),
				Type:        enums.TransactionTypeChartEntry,
				Amount:      100,
				Balance:     100,
				Description: "entry",
			},
		},
		{
			name: "credit type with debit amount",
			input: RecordTransactionInput{
				UserID:      uuid.New(),
				Type:        enums.TransactionTypeDonationReceived,
				Amount:      -100,
				Balance:     100,
				Description: "donation",
			},
		},
		{
			name: "negative balance snapshot",
			input: RecordTransactionInput{
				UserID:      uuid.New(),
				Type:        enums.TransactionTypePrizePayout,
				Amount:      100,
				Balance:     -1,
				Description: "prize",
			},
		},
		{
			name: "missing description",
			input: RecordTransactionInput{
				UserID:  uuid.New(),
				Type:    enums.TransactionTypePrizePayout,
				Amount:  100,
				Balance: 100,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Record(context.Background(), tc.input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_RecordRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	expectedErr := errors.New("boom")
	repo.createFn = func(ctx context.Context, txn *models.Transaction) error {
		return expectedErr
	}

	if _, err := svc.Record(context.Background(), RecordTransactionInput{
		UserID:      uuid.New(),
		Type:        enums.TransactionTypeDonationSent,
		Amount:      -100,
		Balance:     900,
		Description: "tip",
	}); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}

func TestService_ListByUser(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	userID := uuid.New()
	repo.listFn = func(ctx context.Context, gotUser uuid.UUID, limit int) ([]models.Transaction, error) {
		if gotUser != userID {
			t.Fatalf("unexpected user id %s", gotUser)
		}
		if limit != 25 {
			t.Fatalf("unexpected limit %d", limit)
		}
		return []models.Transaction{{UserID: userID}}, nil
	}

	txns, err := svc.ListByUser(context.Background(), userID, 25)
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected one transaction, got %d", len(txns))
	}

	if _, err := svc.ListByUser(context.Background(), uuid.Nil, 25); err == nil {
		t.Fatal("expected error for nil user id")
	}
}
