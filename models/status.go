package models

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPacked         OrderStatus = "packed"
	StatusShipped        OrderStatus = "shipped"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// fulfilment order; cancelled sits outside the sequence
var statusSequence = []OrderStatus{
	StatusConfirmed,
	StatusPacked,
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
}

// AllStatuses lists every known status in display order.
func AllStatuses() []OrderStatus {
	out := make([]OrderStatus, 0, len(statusSequence)+1)
	out = append(out, statusSequence...)
	return append(out, StatusCancelled)
}

func (s OrderStatus) IsValid() bool {
	if s == StatusCancelled {
		return true
	}
	return s.position() >= 0
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s OrderStatus) position() int {
	for i, st := range statusSequence {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether an order in status from may move to status to.
// Forward skips are allowed, backwards moves are not, and cancelled is reachable
// from every non-terminal status. Orders carrying an unknown legacy status may
// move to any valid status.
func CanTransition(from, to OrderStatus) bool {
	if !to.IsValid() || from == to {
		return false
	}
	if !from.IsValid() {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return to.position() > from.position()
}

// NextStatuses returns the statuses an admin may choose for an order currently
// in status current, in display order. It lists exactly the targets
// CanTransition accepts.
func NextStatuses(current OrderStatus) []OrderStatus {
	if !current.IsValid() {
		return AllStatuses()
	}
	if current.IsTerminal() {
		return []OrderStatus{}
	}
	next := append([]OrderStatus(nil), statusSequence[current.position()+1:]...)
	return append(next, StatusCancelled)
}
