package enums

import "fmt"

// PendingPaymentEventStatus tracks a deferred gateway event awaiting its order.
type PendingPaymentEventStatus string

const (
	PendingPaymentEventQueued  PendingPaymentEventStatus = "queued"
	PendingPaymentEventApplied PendingPaymentEventStatus = "applied"
	PendingPaymentEventFailed  PendingPaymentEventStatus = "failed"
)

var validPendingPaymentEventStatuses = []PendingPaymentEventStatus{
	PendingPaymentEventQueued,
	PendingPaymentEventApplied,
	PendingPaymentEventFailed,
}

func (s PendingPaymentEventStatus) String() string {
	return string(s)
}

func (s PendingPaymentEventStatus) IsValid() bool {
	for _, candidate := range validPendingPaymentEventStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParsePendingPaymentEventStatus(value string) (PendingPaymentEventStatus, error) {
	for _, candidate := range validPendingPaymentEventStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pending payment event status %q", value)
}
