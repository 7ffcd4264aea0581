package errors

import "errors"

var (
	// ErrHoldRejected: the slot is booked, contested or unknown. Callers
	// cannot tell which.
	ErrHoldRejected = errors.New("slot cannot be held")

	ErrHoldInvalid = errors.New("hold is missing, expired, not owned by caller or no longer active")

	ErrHoldNotFound = errors.New("hold not found")

	ErrSlotAlreadyBooked = errors.New("slot is already booked")
)
