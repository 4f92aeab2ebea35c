package notifications

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
	"github.com/chartduel/chartduel-backend/pkg/logger"
	"github.com/google/uuid"
)

type fakeDelivery struct {
	delivered []uuid.UUID
	online    bool
}

func (f *fakeDelivery) Deliver(ctx context.Context, userID uuid.UUID, notification *models.Notification) bool {
	f.delivered = append(f.delivered, userID)
	return f.online
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestDispatcher_NotifyPersistsAndDelivers(t *testing.T) {
	var created *models.Notification
	createRepo := &createRecordingRepo{
		fakeRepository: &fakeRepository{},
		onCreate:       func(n *models.Notification) { created = n },
	}
	delivery := &fakeDelivery{online: true}

	dispatcher, err := NewDispatcher(createRepo, delivery, newTestLogger(t))
	if err != nil {
		t.Fatalf("unexpected dispatcher error: %v", err)
	}

	userID := uuid.New()
	notification, err := dispatcher.Notify(context.Background(), userID, enums.NotificationTypePrizeWon, "You won!", "Prize credited.")
	if err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if created == nil || created.UserID != userID {
		t.Fatalf("expected persisted notification for %s, got %+v", userID, created)
	}
	if notification.Title != "You won!" {
		t.Fatalf("unexpected title %q", notification.Title)
	}
	if len(delivery.delivered) != 1 || delivery.delivered[0] != userID {
		t.Fatalf("expected realtime delivery attempt, got %v", delivery.delivered)
	}
}

func TestDispatcher_NotifyOfflineRecipient(t *testing.T) {
	delivery := &fakeDelivery{online: false}
	dispatcher, err := NewDispatcher(&fakeRepository{}, delivery, newTestLogger(t))
	if err != nil {
		t.Fatalf("unexpected dispatcher error: %v", err)
	}

	if _, err := dispatcher.Notify(context.Background(), uuid.New(), enums.NotificationTypeChartCompleted, "Chart over", "Better luck next time."); err != nil {
		t.Fatalf("offline recipient must not fail the caller: %v", err)
	}
	if len(delivery.delivered) != 1 {
		t.Fatalf("expected one delivery attempt, got %d", len(delivery.delivered))
	}
}

func TestDispatcher_NotifyValidation(t *testing.T) {
	dispatcher, err := NewDispatcher(&fakeRepository{}, nil, newTestLogger(t))
	if err != nil {
		t.Fatalf("unexpected dispatcher error: %v", err)
	}

	if _, err := dispatcher.Notify(context.Background(), uuid.Nil, enums.NotificationTypeSystem, "t", "m"); err == nil {
		t.Fatal("expected error for nil user id")
	}
	if _, err := dispatcher.Notify(context.Background(), uuid.New(), enums.NotificationType("bogus"), "t", "m"); err == nil {
		t.Fatal("expected error for invalid type")
	}
	if _, err := dispatcher.Notify(context.Background(), uuid.New(), enums.NotificationTypeSystem, "   ", "m"); err == nil {
		t.Fatal("expected error for blank title")
	}
}

func TestDispatcher_NotifyRepoError(t *testing.T) {
	repo := &createRecordingRepo{
		fakeRepository: &fakeRepository{},
		createErr:      errors.New("boom"),
	}
	dispatcher, err := NewDispatcher(repo, nil, newTestLogger(t))
	if err != nil {
		t.Fatalf("unexpected dispatcher error: %v", err)
	}

	if _, err := dispatcher.Notify(context.Background(), uuid.New(), enums.NotificationTypeSystem, "t", "m"); err == nil {
		t.Fatal("expected persistence error to surface")
	}
}

type createRecordingRepo struct {
	*fakeRepository
	onCreate  func(n *models.Notification)
	createErr error
}

func (r *createRecordingRepo) Create(ctx context.Context, notification *models.Notification) error {
	if r.createErr != nil {
		return r.createErr
	}
	if r.onCreate != nil {
		r.onCreate(notification)
	}
	return nil
}
