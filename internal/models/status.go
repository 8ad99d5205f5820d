package models

import "fmt"

// Status is the appointment lifecycle state. Consumers must switch
// exhaustively over these values; raw string comparisons are not allowed.
type Status string

const (
	StatusRequested Status = "requested"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus converts a stored value into a Status, rejecting unknown states.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusRequested, StatusConfirmed, StatusCancelled:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("unknown appointment status %q", raw)
	}
}

// Terminal reports whether no further lifecycle transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCancelled
}

// RequestStatus is the reschedule-request lifecycle state.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// ParseRequestStatus converts a stored value into a RequestStatus.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	switch RequestStatus(raw) {
	case RequestPending, RequestAccepted, RequestRejected:
		return RequestStatus(raw), nil
	default:
		return "", fmt.Errorf("unknown reschedule request status %q", raw)
	}
}

// Resolved reports whether the request has been accepted or rejected.
func (s RequestStatus) Resolved() bool {
	return s == RequestAccepted || s == RequestRejected
}
