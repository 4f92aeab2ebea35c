package enums

import "fmt"

// NotificationType classifies persisted notifications.
type NotificationType string

const (
	NotificationTypeChartCompleted   NotificationType = "chart_completed"
	NotificationTypePrizeWon         NotificationType = "prize_won"
	NotificationTypeDonationReceived NotificationType = "donation_received"
	NotificationTypeShoutoutReceived NotificationType = "shoutout_received"
	NotificationTypeSystem           NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeChartCompleted,
	NotificationTypePrizeWon,
	NotificationTypeDonationReceived,
	NotificationTypeShoutoutReceived,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
