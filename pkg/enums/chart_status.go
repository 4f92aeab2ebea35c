package enums

import "fmt"

// ChartStatus tracks the chart lifecycle. Transitions are monotonic:
// open -> in_progress -> completed|cancelled, terminal once completed or
// cancelled.
type ChartStatus string

const (
	ChartStatusOpen       ChartStatus = "open"
	ChartStatusInProgress ChartStatus = "in_progress"
	ChartStatusCompleted  ChartStatus = "completed"
	ChartStatusCancelled  ChartStatus = "cancelled"
)

var validChartStatuses = []ChartStatus{
	ChartStatusOpen,
	ChartStatusInProgress,
	ChartStatusCompleted,
	ChartStatusCancelled,
}

// IsValid checks whether the given status matches the canonical enum.
func (s ChartStatus) IsValid() bool {
	for _, candidate := range validChartStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s ChartStatus) IsTerminal() bool {
	return s == ChartStatusCompleted || s == ChartStatusCancelled
}

// ParseChartStatus converts raw strings into ChartStatus.
func ParseChartStatus(value string) (ChartStatus, error) {
	for _, candidate := range validChartStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid chart status %q", value)
}
