package notifications

import (
	"context"
	"strings"

	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
	pkgerrors "github.com/chartduel/chartduel-backend/pkg/errors"
	"github.com/chartduel/chartduel-backend/pkg/logger"
	"github.com/google/uuid"
)

// Delivery pushes a persisted notification to a live connection. Returning
// false means the recipient had no handle; that is not an error.
type Delivery interface {
	Deliver(ctx context.Context, userID uuid.UUID, notification *models.Notification) bool
}

// Dispatcher persists notifications and attempts immediate realtime delivery.
// Delivery failures never fail the caller; the row is the durable record.
type Dispatcher struct {
	repo     Repository
	delivery Delivery
	logg     *logger.Logger
}

// NewDispatcher wires a dispatcher. delivery may be nil when no realtime
// surface is attached (workers, tests).
func NewDispatcher(repo Repository, delivery Delivery, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Dispatcher{repo: repo, delivery: delivery, logg: logg}, nil
}

// Notify persists a notification row, then makes a best-effort push to the
// recipient's live connection if one exists.
func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, notifType enums.NotificationType, title, message string) (*models.Notification, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !notifType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}

	notification := &models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: strings.TrimSpace(message),
	}
	if err := d.repo.Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist notification")
	}

	if d.delivery != nil {
		logCtx := d.logg.WithUserID(ctx, userID.String())
		if delivered := d.delivery.Deliver(ctx, userID, notification); !delivered {
			d.logg.Debug(logCtx, "recipient offline, notification stored only")
		}
	}
	return notification, nil
}
