package order

// Order statuses.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusShipping  = "SHIPPING"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s string) bool {
	return statusRank(s) != -2
}

// CanTransition reports whether an order may move from one status to another.
// Fulfilment only moves forward; cancellation is possible until the order ships.
func CanTransition(from, to string) bool {
	if to == StatusCancelled {
		return from == StatusPending || from == StatusConfirmed
	}
	fromRank, toRank := statusRank(from), statusRank(to)
	if fromRank < 0 || toRank < 0 {
		return false
	}
	return toRank > fromRank
}

func statusRank(status string) int {
	switch status {
	case StatusPending:
		return 0
	case StatusConfirmed:
		return 1
	case StatusShipping:
		return 2
	case StatusDelivered:
		return 3
	case StatusCancelled:
		return -1
	default:
		return -2
	}
}
