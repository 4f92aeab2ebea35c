package enums

import "fmt"

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TransactionTypeChartEntry       TransactionType = "chart_entry"
	TransactionTypePrizePayout      TransactionType = "prize_payout"
	TransactionTypeDonationSent     TransactionType = "donation_sent"
	TransactionTypeDonationReceived TransactionType = "donation_received"
	TransactionTypeRefund           TransactionType = "refund"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeChartEntry,
	TransactionTypePrizePayout,
	TransactionTypeDonationSent,
	TransactionTypeDonationReceived,
	TransactionTypeRefund,
}

// IsValid checks whether the given type matches the canonical enum.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw strings into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
