package scheduling

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrConfiguration marks doctor or treatment data that cannot be scheduled
	// (non-positive interval or duration, malformed hours). Not retryable.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation marks missing or malformed selection input. Raised before any I/O.
	ErrValidation = errors.New("validation error")
	// ErrSlotConflict marks a slot taken by another booking between display and commit.
	ErrSlotConflict = errors.New("slot conflict")
	// ErrIO marks a failed call to a backing store. Retryable.
	ErrIO = errors.New("storage unavailable")
	// ErrNotFound marks a doctor, treatment or appointment id with no record.
	ErrNotFound = errors.New("not found")
)

// SlotConflictError is returned by a booking whose interval overlaps a
// non-cancelled appointment observed at commit time.
type SlotConflictError struct {
	Start         time.Time
	End           time.Time
	ConflictingID primitive.ObjectID
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot conflict: [%s, %s) overlaps appointment %s",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.ConflictingID.Hex())
}

func (e *SlotConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}
