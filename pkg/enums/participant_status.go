package enums

// ParticipantStatus tracks a user's slot inside a chart.
type ParticipantStatus string

const (
	ParticipantStatusJoined    ParticipantStatus = "joined"
	ParticipantStatusForfeited ParticipantStatus = "forfeited"
	ParticipantStatusFinished  ParticipantStatus = "finished"
)

var validParticipantStatuses = []ParticipantStatus{
	ParticipantStatusJoined,
	ParticipantStatusForfeited,
	ParticipantStatusFinished,
}

// IsValid checks whether the given status matches the canonical enum.
func (s ParticipantStatus) IsValid() bool {
	for _, candidate := range validParticipantStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
