package errors

import "errors"

var (
	ErrNotFound = errors.New("slot not found")

	ErrInvalidID = errors.New("invalid slot ID")

	ErrInvalidTimeRange = errors.New("end time must be after start time")

	ErrDuplicate = errors.New("slot already exists for this room and time window")
)
