package realtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/logger"
)

// NotificationDelivery pushes persisted notifications to the recipient's live
// connection. Offline recipients are not an error; they read the row later.
type NotificationDelivery struct {
	registry *Registry
	logg     *logger.Logger
}

// NewNotificationDelivery wires the registry-backed delivery channel.
func NewNotificationDelivery(registry *Registry, logg *logger.Logger) *NotificationDelivery {
	return &NotificationDelivery{registry: registry, logg: logg}
}

// Deliver writes a notification envelope to the recipient's connection.
// Returns false when the user has no live handle or the write failed.
func (d *NotificationDelivery) Deliver(ctx context.Context, userID uuid.UUID, notification *models.Notification) bool {
	if d == nil || d.registry == nil || notification == nil {
		return false
	}
	online, err := d.registry.SendTo(userID, NewEnvelope(MessageNotification, notification))
	if err != nil {
		if d.logg != nil {
			d.logg.Error(d.logg.WithUserID(ctx, userID.String()), "notification delivery failed", err)
		}
		return false
	}
	return online
}
