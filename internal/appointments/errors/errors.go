package errors

import "errors"

var (
	ErrNotFound = errors.New("appointment not found")

	ErrInvalidID = errors.New("invalid appointment ID format")

	// ErrSlotTaken means a live appointment already holds the (doctor, date, slot) triple.
	ErrSlotTaken = errors.New("time slot is already taken")

	// ErrStatusChanged means the stored status no longer matches the expected one.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)
